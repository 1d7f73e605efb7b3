// Package htmlsanitize cleans user-supplied text before it is stored or pushed.
//
// Task descriptions may carry light formatting and go through Sanitize.
// Titles, comment bodies and notification text are plain text and go
// through PlainText; clients must still render those as text, not HTML.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcOnce   sync.Once
	ugc       *bluemonday.Policy
	stripOnce sync.Once
	strip     *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	ugcOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("u", "s", "mark")
		p.RequireNoFollowOnLinks(true)
		ugc = p
	})
	return ugc
}

func stripPolicy() *bluemonday.Policy {
	stripOnce.Do(func() {
		strip = bluemonday.StrictPolicy()
	})
	return strip
}

// Sanitize keeps safe formatting (paragraphs, emphasis, lists, links, code)
// and drops scripts, event handlers, frames and forms.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugcPolicy().Sanitize(s)
}

// PlainText removes every tag (and the content of script and style
// elements), decodes entities, and trims surrounding space.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(stripPolicy().Sanitize(s)))
}

// IsPlainText reports whether s looks free of markup.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}
