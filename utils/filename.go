// utils/filename.go
package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// AttachmentFilename builds an ASCII-safe download name such as
// "Vollmacht-Juergen-Mueller.pdf" from the given name parts.
func AttachmentFilename(prefix string, parts ...string) string {
	s := slug.MakeLang(strings.Join(parts, " "), "de")
	if s == "" {
		return prefix + ".pdf"
	}
	words := strings.Split(s, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return prefix + "-" + strings.Join(words, "-") + ".pdf"
}

// SuggestTrackingID derives an upper-case tracking id from a partner name.
func SuggestTrackingID(name string) string {
	s := slug.MakeLang(name, "de")
	return strings.ToUpper(strings.ReplaceAll(s, "-", ""))
}
