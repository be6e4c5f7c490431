// Package llm — клиент модели для выполнения узлов DAG.
//
// Completer — единственная точка, через которую worker обращается к модели.
// Реализации:
//   - AnthropicCompleter — Anthropic Messages API (anthropic-sdk-go)
//   - EchoCompleter      — офлайн-режим для локальной разработки и тестов
package llm
