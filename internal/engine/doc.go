// Package engine содержит логику DAG: валидацию, уровни и промпты.
//
// Включает:
//   - parser.go   — валидация JobSpec
//   - dag.go      — построение DAG и вычисление уровней (longest path)
//   - template.go — рендеринг промптов ({{ .Inputs.x }}, {{ .Nodes.a.Output }})
//
// Engine ничего не знает о модели и хранилище: он только решает,
// в каком порядке выполнять узлы и что отправить в каждый из них.
package engine
