package caixa

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransientNetwork is a transport failure or a 5xx/429 response, it is retried.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrBotChallenge is a bot-manager interstitial served instead of content,
	// it is retried after the session is renewed.
	ErrBotChallenge = errors.New("bot challenge")
	// ErrCityNotFound is fatal for the job, see CityNotFoundError.
	ErrCityNotFound = errors.New("city not found")
	// ErrParseDegraded marks one extraction strategy not matching, the next is tried.
	ErrParseDegraded = errors.New("parse degraded")
	// ErrSessionEstablishment is returned when the bootstrap visit could not complete.
	ErrSessionEstablishment = errors.New("session establishment failure")
	// ErrRequestFailed is returned once the retry policy has given up.
	ErrRequestFailed = errors.New("request failed")
	// ErrInvalidTransition is a navigation step called out of order.
	ErrInvalidTransition = errors.New("invalid navigation transition")
)

type CityNotFoundError struct {
	State string
	City  string
	// Suggestion is the most similar listed city, empty when the listing was empty.
	Suggestion string
}

func (e *CityNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("city not found: %s/%s (did you mean %q?)", e.State, e.City, e.Suggestion)
	}
	return fmt.Sprintf("city not found: %s/%s", e.State, e.City)
}

func (e *CityNotFoundError) Is(target error) bool {
	return target == ErrCityNotFound
}

// StatusError is a non-retryable HTTP status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTransient ErrorKind = "transient"
	KindChallenge ErrorKind = "challenge"
	KindPermanent ErrorKind = "permanent"
)

func kindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBotChallenge):
		return KindChallenge
	case errors.Is(err, ErrTransientNetwork):
		return KindTransient
	default:
		return KindPermanent
	}
}

func (k ErrorKind) retryable() bool {
	return k == KindTransient || k == KindChallenge
}

// RetryContext is the state of one logical request across its attempts.
type RetryContext struct {
	Attempt       int
	LastErrorKind ErrorKind
	Delay         time.Duration
}
