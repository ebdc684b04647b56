package caixa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestRetryPolicy(clock chrono.API, tel telemetry.API) RetryPolicy {
	return NewRetryPolicy(DefaultConfig().Retry, clock, tel)
}

func TestRetryDelay(t *testing.T) {
	policy := newTestRetryPolicy(chrono.NewFakeImpl(time.Time{}), &telemetry.Recorder{})

	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 0},
		{attempt: 2, expected: 500 * time.Millisecond},
		{attempt: 3, expected: time.Second},
		{attempt: 4, expected: 2 * time.Second},
		{attempt: 5, expected: 4 * time.Second},
		{attempt: 6, expected: 6 * time.Second},
		{attempt: 40, expected: 6 * time.Second},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, policy.Delay(test.attempt), "attempt %d", test.attempt)
	}
}

// flakyFunc fails with the given errors in order, then succeeds.
func flakyFunc(calls *int, failures ...error) RequestFunc {
	return func(ctx context.Context, req Request) (Response, error) {
		*calls++
		if *calls <= len(failures) {
			return Response{}, failures[*calls-1]
		}
		return Response{StatusCode: http.StatusOK, Body: []byte("ok")}, nil
	}
}

func transient(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = fmt.Errorf("%w: connection reset", ErrTransientNetwork)
	}
	return out
}

func TestRetryBackoffSequence(t *testing.T) {
	clock := chrono.NewFakeImpl(time.Time{})
	policy := newTestRetryPolicy(clock, &telemetry.Recorder{})

	calls := 0
	do := policy.Wrap(flakyFunc(&calls, transient(4)...), nil)
	res, err := do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, "ok", string(res.Body))
	require.Equal(t, 5, calls)

	expected := []time.Duration{}
	for attempt := 2; attempt <= 5; attempt++ {
		expected = append(expected, policy.Delay(attempt))
	}
	require.Equal(t, expected, clock.Sleeps())
}

func TestRetryExhausted(t *testing.T) {
	clock := chrono.NewFakeImpl(time.Time{})
	tel := &telemetry.Recorder{}
	policy := newTestRetryPolicy(clock, tel)

	calls := 0
	do := policy.Wrap(flakyFunc(&calls, transient(10)...), nil)
	_, err := do(context.Background(), Request{Method: http.MethodPost, Path: "/sistema/carregaListaImoveis.asp"})
	require.ErrorIs(t, err, ErrRequestFailed)
	require.ErrorIs(t, err, ErrTransientNetwork)
	require.Equal(t, 5, calls)
	require.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
	}, clock.Sleeps())
	require.Equal(t, 4, tel.CountSuffix("warning", report_retry))
}

func TestRetryChallengeRenewsFirst(t *testing.T) {
	clock := chrono.NewFakeImpl(time.Time{})
	policy := newTestRetryPolicy(clock, &telemetry.Recorder{})

	var order []string
	calls := 0
	next := flakyFunc(&calls, fmt.Errorf("%w: interstitial", ErrBotChallenge))
	recorded := func(ctx context.Context, req Request) (Response, error) {
		order = append(order, "attempt")
		return next(ctx, req)
	}
	renew := func(ctx context.Context) error {
		order = append(order, "renew")
		return nil
	}

	_, err := policy.Wrap(recorded, renew)(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, []string{"attempt", "renew", "attempt"}, order)
}

func TestRetryChallengeExhausted(t *testing.T) {
	policy := newTestRetryPolicy(chrono.NewFakeImpl(time.Time{}), &telemetry.Recorder{})

	renewals := 0
	calls := 0
	failures := make([]error, 10)
	for i := range failures {
		failures[i] = ErrBotChallenge
	}
	_, err := policy.Wrap(flakyFunc(&calls, failures...), func(ctx context.Context) error {
		renewals++
		return nil
	})(context.Background(), Request{Method: http.MethodGet, Path: "/"})

	require.ErrorIs(t, err, ErrRequestFailed)
	require.ErrorIs(t, err, ErrBotChallenge)
	require.Equal(t, 5, calls)
	require.Equal(t, 4, renewals)
}

func TestRetryRenewFailureAborts(t *testing.T) {
	policy := newTestRetryPolicy(chrono.NewFakeImpl(time.Time{}), &telemetry.Recorder{})

	calls := 0
	renewErr := errors.New("bootstrap refused")
	_, err := policy.Wrap(flakyFunc(&calls, ErrBotChallenge), func(ctx context.Context) error {
		return renewErr
	})(context.Background(), Request{Method: http.MethodGet, Path: "/"})

	require.ErrorIs(t, err, renewErr)
	require.NotErrorIs(t, err, ErrRequestFailed)
	require.Equal(t, 1, calls)
}

func TestRetryPermanentNotRetried(t *testing.T) {
	clock := chrono.NewFakeImpl(time.Time{})
	policy := newTestRetryPolicy(clock, &telemetry.Recorder{})

	calls := 0
	notFound := &StatusError{Method: http.MethodGet, Path: "/missing", StatusCode: http.StatusNotFound}
	_, err := policy.Wrap(flakyFunc(&calls, notFound), nil)(context.Background(), Request{Method: http.MethodGet, Path: "/missing"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.NotErrorIs(t, err, ErrRequestFailed)
	require.Equal(t, 1, calls)
	require.Empty(t, clock.Sleeps())
}

func TestRetryCancelled(t *testing.T) {
	policy := newTestRetryPolicy(chrono.NewFakeImpl(time.Time{}), &telemetry.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	next := func(c context.Context, req Request) (Response, error) {
		calls++
		cancel()
		return Response{}, ErrTransientNetwork
	}
	_, err := policy.Wrap(next, nil)(ctx, Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestClassifyOutcome(t *testing.T) {
	respond := func(status int, body string, err error) RequestFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			return Response{StatusCode: status, Body: []byte(body)}, err
		}
	}
	ctx := context.Background()
	req := Request{Method: http.MethodPost, Path: "/x"}

	_, err := Classify(respond(0, "", errors.New("dial tcp: refused")))(ctx, req)
	require.ErrorIs(t, err, ErrTransientNetwork)

	_, err = Classify(respond(http.StatusBadGateway, "", nil))(ctx, req)
	require.ErrorIs(t, err, ErrTransientNetwork)

	_, err = Classify(respond(http.StatusTooManyRequests, "", nil))(ctx, req)
	require.ErrorIs(t, err, ErrTransientNetwork)

	_, err = Classify(respond(http.StatusOK, string(challengeFixture), nil))(ctx, req)
	require.ErrorIs(t, err, ErrBotChallenge)

	_, err = Classify(respond(http.StatusForbidden, "forbidden", nil))(ctx, req)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, KindPermanent, kindOf(err))

	res, err := Classify(respond(http.StatusOK, "<html></html>", nil))(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(res.Body))
}
