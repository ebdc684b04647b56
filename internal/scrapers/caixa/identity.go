package caixa

import (
	"strings"

	browser "github.com/EDDYCJY/fake-useragent"
)

// FallbackIdentity is used whenever a random identity cannot be produced.
const FallbackIdentity = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// IdentityProvider supplies the user agent of a new session.
//
// note: fault injection point
type IdentityProvider interface {
	Identity() string
}

// RandomIdentity draws a random real-world browser user agent.
type RandomIdentity struct{}

func (RandomIdentity) Identity() (identity string) {
	defer func() {
		if r := recover(); r != nil {
			identity = FallbackIdentity
		}
	}()
	identity = strings.TrimSpace(browser.Random())
	if identity == "" {
		return FallbackIdentity
	}
	return identity
}

// StaticIdentity always returns the same user agent.
type StaticIdentity string

func (s StaticIdentity) Identity() string {
	if s == "" {
		return FallbackIdentity
	}
	return string(s)
}

// SequenceIdentity cycles through a fixed list, tests use it to observe renewals.
type SequenceIdentity struct {
	Identities []string
	next       int
}

func (s *SequenceIdentity) Identity() string {
	if len(s.Identities) == 0 {
		return FallbackIdentity
	}
	identity := s.Identities[s.next%len(s.Identities)]
	s.next++
	return identity
}
