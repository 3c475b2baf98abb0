package generation

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// contentPlaceholders are replaced with the content in user prompts.
var contentPlaceholders = []string{
	"{{CONTENT}}",
	"{{CHUNK_CONTENT}}",
	"{{ANALYSIS_CONTENT}}",
	"{{DATA}}",
}

// InjectContent places content into prompt at every placeholder, or appends
// it after a blank line when the prompt has none. Substitution is a single
// pass, so placeholders inside content are left as written.
func InjectContent(prompt, content string) string {
	pairs := make([]string, 0, 2*len(contentPlaceholders))
	for _, placeholder := range contentPlaceholders {
		if strings.Contains(prompt, placeholder) {
			pairs = append(pairs, placeholder, content)
		}
	}
	if len(pairs) == 0 {
		return prompt + "\n\n" + content
	}
	return strings.NewReplacer(pairs...).Replace(prompt)
}

// renderPrompt executes the named embedded template with data.
func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
