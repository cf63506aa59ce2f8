// Package pagetest builds X-shaped post markup for tests and replays.
package pagetest

import (
	"fmt"
	"html"
	"strings"
)

// Tweet describes one post to render.
type Tweet struct {
	ID          string
	Name        string
	Handle      string
	Text        string
	DateISO     string
	DateDisplay string
	// ImageSrc renders an <img> inside the photo container.
	ImageSrc string
	// BackgroundURL renders the photo as a CSS background instead.
	BackgroundURL string
	// EmptyPhoto renders a photo container with nothing loaded yet.
	EmptyPhoto bool
	// NoPermalink omits every /status/ link.
	NoPermalink bool
	// NoActionBar omits the engagement row.
	NoActionBar bool
}

// HTML renders t the way the X timeline does, reduced to the parts the
// overlay reads.
func (t Tweet) HTML() string {
	var b strings.Builder
	b.WriteString(`<article data-testid="tweet" role="article">`)

	b.WriteString(`<div data-testid="User-Name">`)
	if t.Name != "" {
		fmt.Fprintf(&b, `<a href="/%s" role="link"><span>%s</span></a>`, html.EscapeString(t.Handle), html.EscapeString(t.Name))
	}
	if t.Handle != "" {
		fmt.Fprintf(&b, `<a href="/%s" role="link" tabindex="-1"><span>@%s</span></a>`, html.EscapeString(t.Handle), html.EscapeString(t.Handle))
	}
	if !t.NoPermalink && t.ID != "" {
		fmt.Fprintf(&b, `<a href="/%s/status/%s" role="link">`, html.EscapeString(t.Handle), html.EscapeString(t.ID))
		if t.DateISO != "" {
			fmt.Fprintf(&b, `<time datetime="%s">%s</time>`, html.EscapeString(t.DateISO), html.EscapeString(t.DateDisplay))
		}
		b.WriteString(`</a>`)
	}
	b.WriteString(`</div>`)

	fmt.Fprintf(&b, `<div data-testid="tweetText" lang="en"><span>%s</span></div>`, html.EscapeString(t.Text))

	switch {
	case t.ImageSrc != "":
		fmt.Fprintf(&b, `<div data-testid="tweetPhoto"><img alt="Image" src="%s"></div>`, html.EscapeString(t.ImageSrc))
	case t.BackgroundURL != "":
		fmt.Fprintf(&b, `<div data-testid="tweetPhoto"><div style="background-image: url(&quot;%s&quot;);"></div></div>`, html.EscapeString(t.BackgroundURL))
	case t.EmptyPhoto:
		b.WriteString(`<div data-testid="tweetPhoto"></div>`)
	}

	if !t.NoActionBar {
		b.WriteString(`<div><div role="group" aria-label="engagement">`)
		b.WriteString(`<div><button data-testid="reply"></button></div>`)
		b.WriteString(`<div><button data-testid="retweet"></button></div>`)
		b.WriteString(`<div><button data-testid="like"></button></div>`)
		b.WriteString(`</div></div>`)
	}

	b.WriteString(`</article>`)
	return b.String()
}

// Timeline wraps posts in the primary column of an otherwise empty page.
func Timeline(tweets ...Tweet) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Home / X</title></head><body><main><div data-testid="primaryColumn">`)
	for _, t := range tweets {
		b.WriteString(`<div data-testid="cellInnerDiv">`)
		b.WriteString(t.HTML())
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></main></body></html>`)
	return b.String()
}
