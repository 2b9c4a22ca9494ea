package adc

import (
	"context"
	"errors"
)

// ErrConversionTimeout is returned by Bounded when the completion flag never
// appeared.
var ErrConversionTimeout = errors.New("adc: conversion did not complete")

// Waiter blocks until ready reports true. It is the only place a conversion
// is waited on, so the strategy can be swapped without touching callers.
type Waiter interface {
	Wait(ctx context.Context, ready func() bool) error
}

// Spin polls ready with no limit. This matches the hardware contract: the
// completion flag has no natural timeout. Only a cancelled ctx ends the wait
// early.
type Spin struct{}

func (Spin) Wait(ctx context.Context, ready func() bool) error {
	done := ctx.Done()
	for !ready() {
		if done == nil {
			continue
		}
		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Bounded polls ready at most MaxPolls times. A MaxPolls below 1 still
// polls once, so the zero value checks the flag without waiting.
type Bounded struct {
	MaxPolls int
}

func (b Bounded) Wait(ctx context.Context, ready func() bool) error {
	polls := max(b.MaxPolls, 1)
	for i := 0; i < polls; i++ {
		if ready() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrConversionTimeout
}
