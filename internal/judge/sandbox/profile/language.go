// Package profile defines the immutable table of languages the sandbox can run.
package profile

import (
	"fmt"
	"sort"
	"strings"

	appErr "codejudge/pkg/errors"

	"github.com/google/shlex"
)

// LanguageSpec is the configuration form of a language.
// Command is split with shell quoting rules when the table is built.
type LanguageSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Image      string `yaml:"image"`
	SourceFile string `yaml:"sourceFile"`
	Command    string `yaml:"command"`
	Compiled   bool   `yaml:"compiled"`
}

// Language describes how to run one language inside a container image.
type Language struct {
	ID         string
	Name       string
	Image      string
	SourceFile string
	Command    []string
	// Compiled marks languages whose toolchain emits compiler diagnostics on stderr.
	Compiled bool
}

// Table is a read-only set of languages keyed by id.
type Table struct {
	languages map[string]Language
	ids       []string
}

// DefaultLanguages returns the built-in language definitions.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{ID: "cpp", Name: "C++", Image: "judge-cpp", SourceFile: "Main.cpp", Command: `bash -c "g++ Main.cpp -o main && ./main"`, Compiled: true},
		{ID: "python", Name: "Python 3", Image: "judge-python", SourceFile: "Main.py", Command: "python3 Main.py"},
		{ID: "java", Name: "Java", Image: "judge-java", SourceFile: "Main.java", Command: `bash -c "javac Main.java && java Main"`, Compiled: true},
		{ID: "javascript", Name: "JavaScript", Image: "node:20-alpine", SourceFile: "Main.js", Command: "node Main.js"},
	}
}

// DefaultTable builds the table from DefaultLanguages.
func DefaultTable() *Table {
	table, err := NewTable(DefaultLanguages())
	if err != nil {
		panic(fmt.Sprintf("default language table is invalid: %v", err))
	}
	return table
}

// NewTable validates specs and builds a table.
func NewTable(specs []LanguageSpec) (*Table, error) {
	if len(specs) == 0 {
		return nil, appErr.ValidationError("languages", "at least one language is required")
	}
	languages := make(map[string]Language, len(specs))
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		lang, err := buildLanguage(s)
		if err != nil {
			return nil, err
		}
		if _, exists := languages[lang.ID]; exists {
			return nil, appErr.Newf(appErr.InvalidParams, "duplicate language id: %s", lang.ID)
		}
		languages[lang.ID] = lang
		ids = append(ids, lang.ID)
	}
	sort.Strings(ids)
	return &Table{languages: languages, ids: ids}, nil
}

// Lookup returns a copy of the language registered under id.
func (t *Table) Lookup(id string) (Language, bool) {
	if t == nil {
		return Language{}, false
	}
	lang, ok := t.languages[id]
	if !ok {
		return Language{}, false
	}
	lang.Command = append([]string(nil), lang.Command...)
	return lang, true
}

// Get is Lookup with a coded error for unknown ids.
func (t *Table) Get(id string) (Language, error) {
	lang, ok := t.Lookup(id)
	if !ok {
		return Language{}, appErr.Unsupported(id)
	}
	return lang, nil
}

// IDs returns the registered ids in sorted order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.ids...)
}

// Languages returns all languages ordered by id.
func (t *Table) Languages() []Language {
	out := make([]Language, 0, len(t.ids))
	for _, id := range t.ids {
		lang, _ := t.Lookup(id)
		out = append(out, lang)
	}
	return out
}

func buildLanguage(s LanguageSpec) (Language, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		return Language{}, appErr.ValidationError("language_id", "required")
	}
	if strings.TrimSpace(s.Image) == "" {
		return Language{}, appErr.ValidationError("image", "required").WithDetail("language", id)
	}
	if s.SourceFile == "" || strings.ContainsAny(s.SourceFile, `/\`) || s.SourceFile == "." || s.SourceFile == ".." {
		return Language{}, appErr.ValidationError("source_file", "must be a bare file name").WithDetail("language", id)
	}
	if strings.TrimSpace(s.Command) == "" {
		return Language{}, appErr.ValidationError("command", "required").WithDetail("language", id)
	}
	cmd, err := shlex.Split(s.Command)
	if err != nil {
		return Language{}, appErr.Wrapf(err, appErr.InvalidParams, "parse command for %s failed", id)
	}
	if len(cmd) == 0 {
		return Language{}, appErr.Newf(appErr.InvalidParams, "command for %s is empty", id)
	}
	name := s.Name
	if name == "" {
		name = id
	}
	return Language{
		ID:         id,
		Name:       name,
		Image:      s.Image,
		SourceFile: s.SourceFile,
		Command:    cmd,
		Compiled:   s.Compiled,
	}, nil
}
