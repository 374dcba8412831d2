package model

// ArchitecturalTopic marks questions that have no checkable output.
const ArchitecturalTopic = "System Design"

// Question is the judge-facing view of a question record.
type Question struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Topic     string     `json:"topic" yaml:"topic"`
	TestCases []TestCase `json:"testCases" yaml:"testCases"`
}

// TestCase holds one input and an optional expected output.
// Input may be a string or a (nested) array of values.
type TestCase struct {
	Input  any `json:"input" yaml:"input"`
	Output any `json:"output" yaml:"output"`
}

// IsArchitectural reports whether the question cannot be graded automatically.
func (q *Question) IsArchitectural() bool {
	return q != nil && q.Topic == ArchitecturalTopic
}
