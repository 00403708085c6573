package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Analgesics", "analgesics"},
		{"spaces become hyphens", "Dose Forms", "dose-forms"},
		{"punctuation collapses", "Anti-inflammatory / Antirheumatic", "anti-inflammatory-antirheumatic"},
		{"digits kept", "Vitamin B12", "vitamin-b12"},
		{"leading junk dropped", "  (NSAIDs)", "nsaids"},
		{"trailing junk dropped", "Opioids!!", "opioids"},
		{"empty", "", ""},
		{"only junk", "***", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}
