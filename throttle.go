// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"context"
	"sync"
	"sync/atomic"
)

// throttle limits the number of concurrently running workers and
// remembers the first error reported by any of them.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	err       atomic.Value
	setupOnce sync.Once
	errorOnce sync.Once
}

// Acquire blocks until a worker slot is free. It returns an error
// without acquiring a slot if ctx is done first, or if a previous
// worker has already reported an error.
func (t *throttle) Acquire(ctx context.Context) error {
	t.setupOnce.Do(func() {
		if t.Max < 1 {
			t.Max = 1
		}
		t.ch = make(chan bool, t.Max)
	})
	if err := t.Err(); err != nil {
		return err
	}
	select {
	case t.ch <- true:
		t.wg.Add(1)
		return nil
	case <-ctx.Done():
		t.Report(ctx.Err())
		return ctx.Err()
	}
}

func (t *throttle) Release() {
	<-t.ch
	t.wg.Done()
}

func (t *throttle) Report(err error) {
	if err != nil {
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

func (t *throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

// Wait waits for all acquired slots to be released, and returns the
// first reported error.
func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}
