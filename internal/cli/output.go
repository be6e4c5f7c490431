package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Job выводит job: сводку, таблицу узлов и, если showOutputs, ответы узлов.
func (o *Output) Job(job *JobResponse, showOutputs bool) {
	if o.jsonMode {
		o.JSON(job)
		return
	}

	fmt.Fprintf(o.w, "Job %s  %s  tokens in/out: %d/%d  duration: %dms\n",
		job.ID, job.Status, job.Usage.InputTokens, job.Usage.OutputTokens, job.DurationMs)
	if job.Error != "" {
		fmt.Fprintf(o.w, "Error: %s\n", job.Error)
	}
	fmt.Fprintln(o.w)

	headers := []string{"NODE", "LEVEL", "STATUS", "IN", "OUT", "MS", "ERROR"}
	rows := make([][]string, len(job.Nodes))
	for i, n := range job.Nodes {
		rows[i] = []string{
			n.ID,
			strconv.Itoa(n.Level),
			n.Status,
			strconv.FormatInt(n.InputTokens, 10),
			strconv.FormatInt(n.OutputTokens, 10),
			strconv.FormatInt(n.DurationMs, 10),
			truncate(n.Error, 60),
		}
	}
	o.Table(headers, rows)

	if !showOutputs {
		return
	}
	for _, n := range job.Nodes {
		if n.Output == "" {
			continue
		}
		name := n.ID
		if n.Label != "" {
			name = n.Label
		}
		fmt.Fprintf(o.w, "\n### %s\n%s\n", name, strings.TrimSpace(n.Output))
	}
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// truncate обрезает строку до n символов.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
