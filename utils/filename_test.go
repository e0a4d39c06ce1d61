package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttachmentFilename(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"plain", []string{"Max", "Mustermann"}, "Vollmacht-Max-Mustermann.pdf"},
		{"umlauts", []string{"Jürgen", "Müller"}, "Vollmacht-Juergen-Mueller.pdf"},
		{"quotes stripped", []string{`Eve"`, "O'Neil"}, "Vollmacht-Eve-O-Neil.pdf"},
		{"empty", []string{""}, "Vollmacht.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, AttachmentFilename("Vollmacht", tt.parts...))
		})
	}
}

func TestSuggestTrackingID(t *testing.T) {
	require.Equal(t, "MIMIKAMA", SuggestTrackingID("Mimikama"))
	require.Equal(t, "VERBRAUCHERPORTALKOELN", SuggestTrackingID("Verbraucherportal Köln"))
}
