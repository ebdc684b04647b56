package caixa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Form   map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
}

// RequestFunc is a plain request function, policies (rate gate, retry,
// classification) are layered on top of it by wrapping.
type RequestFunc func(ctx context.Context, req Request) (Response, error)

// Classify turns raw outcomes into the error taxonomy the retry policy acts on.
func Classify(next RequestFunc) RequestFunc {
	return func(ctx context.Context, req Request) (Response, error) {
		res, err := next(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if errors.Is(err, ErrSessionEstablishment) {
				return res, err
			}
			return res, fmt.Errorf("%w: %s %s: %w", ErrTransientNetwork, req.Method, req.Path, err)
		}
		if IsChallenge(res.Body) {
			return res, fmt.Errorf("%w: %s %s (status %d)", ErrBotChallenge, req.Method, req.Path, res.StatusCode)
		}
		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return res, fmt.Errorf("%w: %s %s: status %d", ErrTransientNetwork, req.Method, req.Path, res.StatusCode)
		}
		if res.StatusCode >= http.StatusBadRequest {
			return res, &StatusError{Method: req.Method, Path: req.Path, StatusCode: res.StatusCode}
		}
		return res, nil
	}
}
