package caixa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsChallenge(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected bool
	}{
		{name: "fixture", body: string(challengeFixture), expected: true},
		{name: "marker any case", body: "<title>RADWARE BOT MANAGER</title>", expected: true},
		{name: "captcha with vendor", body: "please solve the Captcha, powered by radware", expected: true},
		{name: "captcha alone", body: "<p>captcha</p>", expected: false},
		{name: "vendor alone", body: "<p>radware</p>", expected: false},
		{name: "listing", body: string(searchPage1Fixture), expected: false},
		{name: "empty", body: "", expected: false},
		{name: "marker past the scan limit", body: strings.Repeat("a", challengeScanLimit) + "radware bot manager", expected: false},
		{name: "marker straddling the scan limit", body: strings.Repeat("a", challengeScanLimit-6) + "radware bot manager", expected: false},
		{name: "marker inside the scan limit", body: strings.Repeat("a", challengeScanLimit-19) + "Radware Bot Manager", expected: true},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, IsChallenge([]byte(test.body)))
		})
	}
}

func TestLeadingCharsCountsRunes(t *testing.T) {
	body := []byte(strings.Repeat("ã", 10))
	require.Equal(t, strings.Repeat("ã", 4), leadingChars(body, 4))
	require.Equal(t, string(body), leadingChars(body, 50))
}
