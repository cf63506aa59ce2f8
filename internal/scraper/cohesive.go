package scraper

import (
	"strings"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

// FormatCohesive flattens a record into the human-readable block sent to
// the analysis context.
func FormatCohesive(r types.Record) string {
	lines := []string{
		"Twitter post info",
		"",
		"- Author: " + author(r),
		"- Post text: " + orDefault(r.BodyText, types.NoneFound),
		"- Image: " + orDefault(r.ImageURL, "(none)"),
		"- Date: " + orDefault(present(r.TimestampDisplay, r.TimestampISO), "(unknown)"),
	}
	return strings.Join(lines, "\n")
}

func author(r types.Record) string {
	name, handle := present(r.AuthorName), present(r.AuthorHandle)
	switch {
	case name != "" && handle != "":
		return name + " (@" + handle + ")"
	case handle != "":
		return "@" + handle
	case name != "":
		return name
	default:
		return types.NoneFound
	}
}

// present returns the first value that is neither empty nor the sentinel.
func present(values ...string) string {
	for _, v := range values {
		if v != "" && v != types.NoneFound {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v = present(v); v == "" {
		return def
	}
	return v
}
