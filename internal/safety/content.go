package safety

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// IgnoreTag suppresses the truncation check for the line it appears on.
const IgnoreTag = "patchgate:ignore"

// ContentError reports rejected file content with one reason per finding.
type ContentError struct {
	Path    string
	Reasons []string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content rejected for %q: %s", e.Path, strings.Join(e.Reasons, "; "))
}

// RoadmapStore answers whether a path belongs to the structured task
// store, which must only be edited through roadmap commands. The store
// itself lives outside this module.
type RoadmapStore interface {
	IsStorePath(relPath string) bool
	CommandSurface() string
}

// truncationIndicators are regexes that catch the placeholder fragments
// models leave behind when they elide code. They are matched per line.
var truncationIndicators = []*regexp.Regexp{
	regexp.MustCompile(`^\s*//\s*\.\.\.\s*$`),
	regexp.MustCompile(`^\s*/\*\s*\.\.\.\s*\*/\s*$`),
	regexp.MustCompile(`^\s*#\s*\.\.\.\s*$`),
	regexp.MustCompile(`(?i)rest of (the )?(file|code|function|implementation)`),
	regexp.MustCompile(`(?i)remaining (code|implementation|logic)`),
	regexp.MustCompile(`(?i)\.\.\.\s*(existing|unchanged|omitted)`),
	regexp.MustCompile(`…`),
}

// fencePattern catches markdown code fences leaking into source files.
var fencePattern = regexp.MustCompile("^\\s*```")

// ContentValidator rejects truncated, placeholder, or syntax-invalid
// whole-file bodies before they reach the stage.
type ContentValidator struct {
	parsers map[string]func([]byte) error
	roadmap RoadmapStore
}

// NewContentValidator creates a validator with the built-in syntax
// parsers registered.
func NewContentValidator(roadmap RoadmapStore) *ContentValidator {
	v := &ContentValidator{
		parsers: make(map[string]func([]byte) error),
		roadmap: roadmap,
	}
	v.parsers[".go"] = validateGoSyntax
	v.parsers[".json"] = validateJSONSyntax
	v.parsers[".yaml"] = validateYAMLSyntax
	v.parsers[".yml"] = validateYAMLSyntax
	return v
}

// RegisterParser adds a custom parser for a file extension.
func (v *ContentValidator) RegisterParser(ext string, parserFunc func([]byte) error) {
	v.parsers[ext] = parserFunc
}

// Validate checks a whole-file body destined for relPath. A nil return
// means the content is plausible and safe to write.
func (v *ContentValidator) Validate(relPath, content string) error {
	if v.roadmap != nil && v.roadmap.IsStorePath(relPath) {
		return &ProtectedFileError{Path: relPath, Surface: v.roadmap.CommandSurface()}
	}

	var reasons []string

	if strings.TrimSpace(content) == "" {
		reasons = append(reasons, "content is empty or whitespace-only")
		return &ContentError{Path: relPath, Reasons: reasons}
	}

	isMarkdown := strings.EqualFold(path.Ext(relPath), ".md")

	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, IgnoreTag) {
			continue
		}
		for _, indicator := range truncationIndicators {
			if indicator.MatchString(line) {
				reasons = append(reasons, fmt.Sprintf("line %d looks truncated: %q", i+1, strings.TrimSpace(line)))
				break
			}
		}
		// Fences are legitimate inside markdown only.
		if !isMarkdown && fencePattern.MatchString(line) {
			reasons = append(reasons, fmt.Sprintf("line %d contains a markdown fence in a code file", i+1))
		}
	}

	if len(reasons) > 0 {
		return &ContentError{Path: relPath, Reasons: reasons}
	}

	ext := strings.ToLower(path.Ext(relPath))
	if parserFunc, ok := v.parsers[ext]; ok {
		if err := parserFunc([]byte(content)); err != nil {
			return &ContentError{
				Path:    relPath,
				Reasons: []string{fmt.Sprintf("syntax error: %v", err)},
			}
		}
	}

	return nil
}
