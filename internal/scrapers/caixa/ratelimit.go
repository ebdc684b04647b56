package caixa

import (
	"context"
	"fmt"
	"time"

	"caixa-imoveis/internal/components/chrono"

	"golang.org/x/time/rate"
)

// RateGate admits at most `perSecond` calls in any rolling one-second window.
// Calls over the quota block until admitted, nothing is dropped. It is safe
// for concurrent use, several jobs may share one gate.
type RateGate struct {
	limiter *rate.Limiter
	clock   chrono.API
}

func NewRateGate(perSecond int, clock chrono.API) *RateGate {
	if perSecond <= 0 {
		perSecond = 1
	}
	// burst of 1 with the spacing padded by a millisecond, so perSecond+1
	// consecutive admissions always span more than one second.
	interval := time.Second/time.Duration(perSecond) + time.Millisecond
	return &RateGate{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		clock:   clock,
	}
}

// Wait blocks until the caller is admitted or ctx is done.
func (g *RateGate) Wait(ctx context.Context) error {
	now := g.clock.Now()
	reservation := g.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return fmt.Errorf("rate gate: reservation refused")
	}
	err := g.clock.Sleep(ctx, reservation.DelayFrom(now))
	if err != nil {
		reservation.CancelAt(g.clock.Now())
		return err
	}
	return nil
}

func (g *RateGate) Wrap(next RequestFunc) RequestFunc {
	return func(ctx context.Context, req Request) (Response, error) {
		err := g.Wait(ctx)
		if err != nil {
			return Response{}, err
		}
		return next(ctx, req)
	}
}
