// Package card renders the HTML shown in a post's result surface.
package card

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

// Builder renders result cards. It is safe for concurrent use.
type Builder struct {
	template *template.Template
	policy   *bluemonday.Policy
}

// New parses the card templates.
func New() (*Builder, error) {
	tmpl, err := template.New("card").Parse(cardTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		template: tmpl,
		policy:   bluemonday.UGCPolicy(),
	}, nil
}

// markdownEscaper neutralises every character blackfriday gives meaning to.
// '=' has no backslash escape, so it becomes an entity to rule out setext
// headings.
var markdownEscaper = func() *strings.Replacer {
	var pairs []string
	for _, c := range "\\`*_{}[]()#+-.!:|&<>~" {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(append(pairs, "=", "&#61;")...)
}()

// textHTML renders s as paragraphs and line breaks whose visible text is s.
func (b *Builder) textHTML(s string) template.HTML {
	out := blackfriday.Run([]byte(markdownEscaper.Replace(s)),
		blackfriday.WithNoExtensions(),
		blackfriday.WithExtensions(blackfriday.HardLineBreak),
	)
	return template.HTML(b.policy.SanitizeBytes(out))
}

type errorData struct {
	Kind    types.ErrorKind
	Message string
}

type successData struct {
	Image     template.URL
	Reasoning template.HTML
	Keywords  string
}

// Loading renders the in-progress card.
func (b *Builder) Loading() (string, error) {
	return b.execute("loading", nil)
}

// Error renders the guidance for kind.
func (b *Builder) Error(kind types.ErrorKind) (string, error) {
	return b.execute("error", errorData{Kind: kind, Message: kind.Guidance()})
}

// Success renders a completed analysis. The reasoning and keywords are shown
// verbatim as text; blank lines and newlines in the reasoning become
// paragraphs and line breaks.
func (b *Builder) Success(res types.AnalysisResult) (string, error) {
	if !res.OK {
		return "", fmt.Errorf("post %s: result is not successful", res.TweetID)
	}
	if _, err := base64.StdEncoding.DecodeString(res.ImageBase64); err != nil {
		return "", fmt.Errorf("post %s: invalid image data: %w", res.TweetID, err)
	}

	return b.execute("success", successData{
		Image:     template.URL("data:image/png;base64," + res.ImageBase64),
		Reasoning: b.textHTML(res.Reasoning),
		Keywords:  res.Keywords,
	})
}

// Result renders whichever card res calls for.
func (b *Builder) Result(res types.AnalysisResult) (string, error) {
	if res.OK {
		return b.Success(res)
	}
	kind := res.ErrorKind
	if kind == "" {
		kind = types.KindProviderUnavailable
	}
	return b.Error(kind)
}

func (b *Builder) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := b.template.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s card: %w", name, err)
	}
	return buf.String(), nil
}

// PlainText renders res for a terminal.
func PlainText(res types.AnalysisResult) string {
	var buf strings.Builder
	if !res.OK {
		buf.WriteString(fmt.Sprintf("Post %s: %s\n", res.TweetID, res.ErrorKind.Guidance()))
		return buf.String()
	}
	buf.WriteString(fmt.Sprintf("Post %s\n\n", res.TweetID))
	buf.WriteString(fmt.Sprintf("Reasoning: %s\n", strings.TrimSpace(res.Reasoning)))
	buf.WriteString(fmt.Sprintf("Keywords: %s\n", res.Keywords))
	return buf.String()
}
