// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"context"
	"flag"
	"fmt"
)

// batchArgs split the input sequences into batches, so a large input
// can be processed by several containers at once.
type batchArgs struct {
	batch   int
	batches int
}

func (b *batchArgs) Flags(flags *flag.FlagSet) {
	flags.IntVar(&b.batches, "batches", 1, "number of batches")
	flags.IntVar(&b.batch, "batch", -1, "only do `N`th batch (-1 = all)")
}

func (b *batchArgs) Args(batch int) []string {
	return []string{
		fmt.Sprintf("-batches=%d", b.batches),
		fmt.Sprintf("-batch=%d", batch),
	}
}

func (b *batchArgs) check() error {
	if b.batches < 1 {
		return fmt.Errorf("invalid -batches=%d", b.batches)
	}
	if b.batch >= b.batches {
		return fmt.Errorf("invalid -batch=%d with -batches=%d", b.batch, b.batches)
	}
	return nil
}

// RunBatches calls runFunc once per batch, concurrently, and returns
// a slice of return values and the first returned error, if any. The
// first error cancels the context passed to the remaining calls.
func (b *batchArgs) RunBatches(ctx context.Context, runFunc func(context.Context, int) (string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	outputs := make([]string, b.batches)
	thr := throttle{Max: b.batches}
	for batch := 0; batch < b.batches; batch++ {
		if b.batch >= 0 && b.batch != batch {
			continue
		}
		if thr.Acquire(ctx) != nil {
			break
		}
		batch := batch
		go func() {
			defer thr.Release()
			out, err := runFunc(ctx, batch)
			outputs[batch] = out
			if err != nil {
				thr.Report(err)
				cancel()
			}
		}()
	}
	err := thr.Wait()
	if b.batch >= 0 {
		outputs = outputs[b.batch : b.batch+1]
	}
	return outputs, err
}

// Slice returns the part of in that belongs to the selected batch,
// or all of in if no batch is selected.
func (b *batchArgs) Slice(in []Sequence) []Sequence {
	if b.batches == 0 || b.batch < 0 {
		return in
	}
	batchsize := (len(in) + b.batches - 1) / b.batches
	if batchsize*b.batch >= len(in) {
		return nil
	}
	out := in[batchsize*b.batch:]
	if len(out) > batchsize {
		out = out[:batchsize]
	}
	return out
}
