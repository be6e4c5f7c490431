package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDAG — в файле нет узлов.
var ErrEmptyDAG = errors.New("dag file has no nodes")

// LoadDAGFile читает DAG из файла. "-" — stdin.
func LoadDAGFile(path string) (*CreateJobRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read dag file: %w", err)
	}

	req, err := ParseDAG(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

// ParseDAG разбирает DAG из YAML или JSON.
//
// JSON выбирается по расширению .json или по первому символу '{';
// всё остальное разбирается как YAML. Неизвестные поля — ошибка.
func ParseDAG(data []byte, ext string) (*CreateJobRequest, error) {
	var req CreateJobRequest

	trimmed := bytes.TrimSpace(data)
	if strings.EqualFold(ext, ".json") || bytes.HasPrefix(trimmed, []byte("{")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, err
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(trimmed))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	if len(req.Nodes) == 0 {
		return nil, ErrEmptyDAG
	}
	return &req, nil
}

// ParseInputs разбирает значения --input KEY=VALUE.
func ParseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[key] = value
	}
	return inputs, nil
}

// MergeInputs добавляет значения из командной строки поверх значений из файла.
func (r *CreateJobRequest) MergeInputs(inputs map[string]any) {
	if len(inputs) == 0 {
		return
	}
	if r.Inputs == nil {
		r.Inputs = make(map[string]any, len(inputs))
	}
	for k, v := range inputs {
		r.Inputs[k] = v
	}
}
