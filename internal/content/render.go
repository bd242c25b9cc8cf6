package content

import (
	"bytes"
	"fmt"
	"html"
	"mime"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns fetched bodies into sanitized HTML
type Renderer struct {
	policy   *bluemonday.Policy
	strict   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewRenderer creates a renderer with a user-generated-content policy
func NewRenderer() *Renderer {
	return &Renderer{
		policy:   bluemonday.UGCPolicy(),
		strict:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render converts raw according to its content type and sanitizes the result
func (r *Renderer) Render(contentType string, raw []byte) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/html"
	}

	switch mediaType {
	case "text/markdown", "text/x-markdown":
		var buf bytes.Buffer
		if err := r.markdown.Convert(raw, &buf); err != nil {
			return "", fmt.Errorf("failed to render markdown: %w", err)
		}
		raw = buf.Bytes()
	case "text/plain":
		raw = []byte("<pre>" + html.EscapeString(string(raw)) + "</pre>")
	}

	return string(r.policy.SanitizeBytes(raw)), nil
}

// Summary renders a feed summary, which may be markdown or HTML, to safe HTML
func (r *Renderer) Summary(summary string) string {
	if strings.TrimSpace(summary) == "" {
		return ""
	}
	if strings.Contains(summary, "<") {
		return r.policy.Sanitize(summary)
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(summary), &buf); err != nil {
		return r.policy.Sanitize(summary)
	}
	return string(r.policy.SanitizeBytes(buf.Bytes()))
}

// PlainText strips all markup
func (r *Renderer) PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(s)))
}
