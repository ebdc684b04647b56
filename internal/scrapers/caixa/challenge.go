package caixa

import (
	"strings"
	"unicode/utf8"
)

const (
	challengeScanLimit = 2048
	challengeMarker    = "radware bot manager"
	challengeVendor    = "radware"
)

// IsChallenge reports whether body is a bot-manager interstitial. Only the
// leading characters are inspected, real pages mention neither marker there.
func IsChallenge(body []byte) bool {
	head := strings.ToLower(leadingChars(body, challengeScanLimit))
	if strings.Contains(head, challengeMarker) {
		return true
	}
	return strings.Contains(head, "captcha") && strings.Contains(head, challengeVendor)
}

func leadingChars(body []byte, limit int) string {
	count := 0
	for i := range len(body) {
		if !utf8.RuneStart(body[i]) {
			continue
		}
		if count == limit {
			return string(body[:i])
		}
		count++
	}
	return string(body)
}
