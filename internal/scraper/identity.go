package scraper

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/stereotweet/internal/page"
)

var statusPattern = regexp.MustCompile(`/status/(\d+)`)

// UnitID derives a post's id from the first permalink inside it, falling
// back to the location path for a single-post detail view. It returns ""
// when neither yields an id.
func UnitID(unit *goquery.Selection, location string) string {
	var id string
	unit.Find(page.TweetLink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if m := statusPattern.FindStringSubmatch(a.AttrOr("href", "")); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id != "" {
		return id
	}
	return idFromLocation(location)
}

func idFromLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	if m := statusPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}
