package caixa

import (
	"context"
	"net/http"
)

// Requester is what the navigation protocol needs from the network.
type Requester interface {
	Get(ctx context.Context, path string, query map[string]string) ([]byte, error)
	Post(ctx context.Context, path string, form map[string]string) ([]byte, error)
}

// Executor is the rate-limited, retrying request pipeline of one job:
//
//	retry(rate gate(classify(session.send)))
//
// bot challenges renew the session before the next attempt.
type Executor struct {
	do RequestFunc
}

var _ Requester = (*Executor)(nil)

func NewExecutor(sessions *SessionManager, gate *RateGate, retry RetryPolicy) *Executor {
	return &Executor{
		do: retry.Wrap(gate.Wrap(Classify(sessions.Send)), sessions.Renew),
	}
}

func (e *Executor) Get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	res, err := e.do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (e *Executor) Post(ctx context.Context, path string, form map[string]string) ([]byte, error) {
	res, err := e.do(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}
