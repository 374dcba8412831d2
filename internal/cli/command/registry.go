package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

const (
	executePath   = "/api/execute"
	languagesPath = "/api/v1/judge/languages"
)

type executePayload struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	QuestionID  string `json:"questionId,omitempty"`
	CustomInput string `json:"customInput,omitempty"`
}

// Registry returns all CLI commands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:    "run",
			Summary: "grade a source file against a question",
			Method:  http.MethodPost,
			Path:    executePath,
			Fields: []Field{
				{Name: "language", Prompt: "language", Type: FieldString, Required: true},
				{Name: "file", Prompt: "source file", Type: FieldFile, Required: true},
				{Name: "questionId", Prompt: "question id", Type: FieldString, Required: false},
			},
			Body: buildRunPayload,
		},
		{
			Name:    "custom",
			Summary: "run a source file once with custom stdin",
			Method:  http.MethodPost,
			Path:    executePath,
			Fields: []Field{
				{Name: "language", Prompt: "language", Type: FieldString, Required: true},
				{Name: "file", Prompt: "source file", Type: FieldFile, Required: true},
				{Name: "input", Prompt: "stdin (end with a single '.')", Type: FieldInput, Required: true},
			},
			Body: buildCustomPayload,
		},
		{
			Name:    "languages",
			Summary: "list supported languages",
			Method:  http.MethodGet,
			Path:    languagesPath,
		},
	}

	out := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		out[cmd.Name] = cmd
	}
	return out
}

// Names returns the registered command names in order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRequest resolves params into an HTTP request.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	req := RequestSpec{Method: cmd.Method, Path: cmd.Path}
	if cmd.Body == nil {
		return req, nil
	}
	payload, err := cmd.Body(params)
	if err != nil {
		return req, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("marshal request failed: %w", err)
	}
	req.Body = body
	return req, nil
}

func buildRunPayload(params Params) (interface{}, error) {
	code, err := Resolve(params, Field{Name: "file", Type: FieldFile})
	if err != nil {
		return nil, err
	}
	return executePayload{
		Language:   params.Get("language"),
		Code:       code,
		QuestionID: params.Get("questionId"),
	}, nil
}

func buildCustomPayload(params Params) (interface{}, error) {
	code, err := Resolve(params, Field{Name: "file", Type: FieldFile})
	if err != nil {
		return nil, err
	}
	input, err := Resolve(params, Field{Name: "input", Type: FieldInput})
	if err != nil {
		return nil, err
	}
	if input == "" {
		return nil, fmt.Errorf("custom input is empty")
	}
	return executePayload{
		Language:    params.Get("language"),
		Code:        code,
		CustomInput: input,
	}, nil
}
