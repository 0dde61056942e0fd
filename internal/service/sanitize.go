package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainText strips markup from user input and returns it as plain text.
// The policy escapes the characters it keeps, so entities are decoded again
// before the value is stored.
func plainText(policy *bluemonday.Policy, text string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(text)))
}
