package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/skilldag/internal/domain"
)

// Context — контекст для рендеринга промптов.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Inputs.param_name }}
//   - {{ .Nodes.node_id.Output }}
//   - {{ index .Nodes "node-with-dash" "Output" }} — для ID с дефисами
type Context struct {
	// Inputs — входные параметры job.
	Inputs map[string]any `json:"inputs"`

	// Nodes — результаты уже выполненных узлов.
	Nodes map[string]*NodeContext `json:"nodes"`
}

// NodeContext — результат узла для использования в шаблонах.
type NodeContext struct {
	// Output — текст ответа модели.
	Output string `json:"output"`

	// Status — статус выполнения: "COMPLETED", "FAILED", "SKIPPED".
	Status string `json:"status"`
}

// NewContext создаёт новый контекст с входными параметрами.
func NewContext(inputs map[string]any) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Context{
		Inputs: inputs,
		Nodes:  make(map[string]*NodeContext),
	}
}

// AddNodeResult добавляет результат выполнения узла в контекст.
func (c *Context) AddNodeResult(nodeID, output string, status domain.NodeStatus) {
	c.Nodes[nodeID] = &NodeContext{
		Output: output,
		Status: string(status),
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
	"replace":  strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Отсутствующий ключ — ошибка: в промпт не должно попадать "<no value>".
func Render(tmpl string, ctx *Context) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// upstreamHeader — заголовок блока с выводами зависимостей.
const upstreamHeader = "Context from previous steps:"

// RenderPrompt собирает итоговый промпт узла.
//
// Сначала рендерится шаблон узла. Затем, если узел не отключил это
// через no_upstream_context, в конец добавляются выводы прямых
// зависимостей в порядке depends_on:
//
//	<prompt>
//
//	---
//	Context from previous steps:
//
//	### <label или id>
//	<output>
func RenderPrompt(node *Node, ctx *Context) (string, error) {
	prompt, err := Render(node.Def.Prompt, ctx)
	if err != nil {
		return "", err
	}

	if node.Def.NoUpstreamContext || len(node.DependsOn) == 0 {
		return prompt, nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(prompt, "\n"))
	b.WriteString("\n\n---\n")
	b.WriteString(upstreamHeader)
	b.WriteString("\n")

	for _, dep := range node.DependsOn {
		output := ""
		if nc, ok := ctx.Nodes[dep.ID]; ok {
			output = nc.Output
		}
		b.WriteString("\n### ")
		b.WriteString(dep.Def.DisplayName())
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(output))
		b.WriteString("\n")
	}

	return b.String(), nil
}
