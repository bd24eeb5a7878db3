// Package parser turns raw note text into a structured Note: parsed
// frontmatter, ordered content blocks, and the valid cloze occurrences
// with resolved occurrence indices.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pvannier/recall/internal/model"
)

// Frontmatter represents parsed YAML frontmatter plus its position in
// the raw text, so callers can locate the note body.
type Frontmatter struct {
	Title string
	Tags  []string

	// Raw is the frontmatter content between the delimiters.
	Raw string

	// EndLine is the line of the closing delimiter (1-indexed).
	EndLine int
}

// frontmatterYAML is the decoded shape of the frontmatter document.
// Tags may be a YAML list or a single scalar.
type frontmatterYAML struct {
	Title string   `yaml:"title"`
	Tags  yamlTags `yaml:"tags"`
}

type yamlTags []string

func (t *yamlTags) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if s := strings.TrimSpace(value.Value); s != "" {
			*t = yamlTags{s}
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		out := make(yamlTags, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		*t = out
		return nil
	default:
		return nil
	}
}

// FrontmatterBounds returns the opening and closing frontmatter line
// indices. Frontmatter is only detected when the first line is "---".
// If frontmatter is present but unclosed, endLine is -1.
func FrontmatterBounds(lines []string) (startLine int, endLine int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, -1, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return 0, i, true
		}
	}
	return 0, -1, true
}

// ParseFrontmatter parses YAML frontmatter from raw note content.
// Returns nil if no closed frontmatter is found.
func ParseFrontmatter(content string) (*Frontmatter, error) {
	lines := strings.Split(content, "\n")

	_, endLine, ok := FrontmatterBounds(lines)
	if !ok || endLine == -1 {
		return nil, nil
	}

	raw := strings.Join(lines[1:endLine], "\n")

	var decoded frontmatterYAML
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parse frontmatter as YAML: %w", err)
	}

	return &Frontmatter{
		Title:   strings.TrimSpace(decoded.Title),
		Tags:    decoded.Tags,
		Raw:     raw,
		EndLine: endLine + 1,
	}, nil
}

// Model converts the parsed frontmatter to its model form. A nil
// receiver yields the zero value.
func (f *Frontmatter) Model() model.Frontmatter {
	if f == nil {
		return model.Frontmatter{}
	}
	return model.Frontmatter{Title: f.Title, Tags: f.Tags}
}

// Body returns the note content after the frontmatter block, along with
// the byte offset of the body within content.
func Body(content string, fm *Frontmatter) (body string, offset int) {
	if fm == nil {
		return content, 0
	}
	lines := strings.SplitAfter(content, "\n")
	if fm.EndLine >= len(lines) {
		return "", len(content)
	}
	for i := 0; i < fm.EndLine && i < len(lines); i++ {
		offset += len(lines[i])
	}
	return content[offset:], offset
}
