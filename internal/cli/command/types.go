package command

import (
	"fmt"
	"os"
	"strings"
)

// FieldType describes how a positional argument is interpreted.
type FieldType int

const (
	FieldString FieldType = iota
	// FieldFile names a file whose contents are sent.
	FieldFile
	// FieldInput is a file like FieldFile, or "-" to type the text in the REPL.
	FieldInput
)

// PromptMarker in a FieldInput argument asks the REPL for inline text.
const PromptMarker = "-"

// Field defines one positional argument.
type Field struct {
	Name     string
	Prompt   string
	Type     FieldType
	Required bool
}

// Command defines a CLI command binding.
type Command struct {
	Name    string
	Summary string
	Method  string
	Path    string
	Fields  []Field
	// Body builds the JSON payload; nil means the request has no body.
	Body func(Params) (interface{}, error)
}

// Usage renders the argument synopsis.
func (c Command) Usage() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, field := range c.Fields {
		if field.Required {
			fmt.Fprintf(&b, " <%s>", field.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", field.Name)
		}
	}
	return b.String()
}

// RequestSpec is the built HTTP request.
type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Params holds parsed input params.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// InlineKey is the params key that carries text typed for a FieldInput.
func InlineKey(field string) string {
	return strings.ToLower(field) + "_inline"
}

// Bind maps positional args onto the command fields.
func Bind(cmd Command, args []string) (Params, error) {
	if len(args) > len(cmd.Fields) {
		return nil, fmt.Errorf("too many arguments, usage: %s", cmd.Usage())
	}
	params := Params{}
	for i, field := range cmd.Fields {
		if i < len(args) {
			params.Set(field.Name, args[i])
			continue
		}
		if field.Required {
			return nil, fmt.Errorf("missing %s, usage: %s", field.Name, cmd.Usage())
		}
	}
	return params, nil
}

// Resolve returns the text of a file-backed field.
func Resolve(params Params, field Field) (string, error) {
	value := params.Get(field.Name)
	switch field.Type {
	case FieldFile:
		if value == "" {
			return "", nil
		}
		return ReadFile(value)
	case FieldInput:
		if value == PromptMarker {
			return params.Get(InlineKey(field.Name)), nil
		}
		if value == "" {
			return "", nil
		}
		return ReadFile(value)
	default:
		return value, nil
	}
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}
