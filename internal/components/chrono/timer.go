package chrono

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffTimer adapts an API into a backoff.Timer so retry delays go through
// the same clock as every other wait.
type BackoffTimer struct {
	api    API
	ctx    context.Context
	cancel context.CancelFunc
	c      chan time.Time
}

var _ backoff.Timer = (*BackoffTimer)(nil)

func NewBackoffTimer(ctx context.Context, api API) *BackoffTimer {
	return &BackoffTimer{api: api, ctx: ctx}
}

func (t *BackoffTimer) Start(d time.Duration) {
	t.Stop()

	ctx, cancel := context.WithCancel(t.ctx)
	c := make(chan time.Time, 1)
	t.cancel = cancel
	t.c = c

	go func() {
		if err := t.api.Sleep(ctx, d); err != nil {
			return
		}
		c <- t.api.Now()
	}()
}

func (t *BackoffTimer) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *BackoffTimer) C() <-chan time.Time {
	return t.c
}
