package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/testgrade/internal/exam"
)

// readDocument reads a JSON or YAML file (by extension) and returns it as
// JSON, so that every input goes through the same decoding rules.
func readDocument(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v interface{}
		if err := yaml.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return json.Marshal(v)
	default:
		return b, nil
	}
}

func loadDefinition(path string) (exam.Definition, error) {
	b, err := readDocument(path)
	if err != nil {
		return exam.Definition{}, err
	}
	d, err := exam.Decode(b)
	if err != nil {
		return exam.Definition{}, err
	}
	if err := exam.Validate(d); err != nil {
		return exam.Definition{}, err
	}
	return d, nil
}

// loadAnswers accepts either a bare list or an object with an "answers"
// list.
func loadAnswers(path string) ([]interface{}, error) {
	b, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	var list []interface{}
	if err := json.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Answers []interface{} `json:"answers"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("%s: answers must be a list: %w", path, err)
	}
	return wrapped.Answers, nil
}
