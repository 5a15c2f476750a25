// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// A mismatch describes a sequence on which the engines disagree, or
// on which the reconstructed subsequence is not valid.
type mismatch struct {
	Sequence  Sequence
	Quadratic int
	LogLinear int
	Problem   string
}

// crossCheck compares the log-linear engine against the quadratic
// one on seq, and returns nil if they agree.
func crossCheck(seq Sequence) *mismatch {
	m := &mismatch{
		Sequence:  seq,
		Quadratic: LengthQuadratic(seq.Values),
		LogLinear: Length(seq.Values),
	}
	if m.Quadratic != m.LogLinear {
		m.Problem = "lengths differ"
		return m
	}
	idx := Indices(seq.Values)
	if len(idx) != m.Quadratic {
		m.Problem = fmt.Sprintf("reconstructed subsequence has %d elements", len(idx))
		return m
	}
	if err := validSubsequence(seq.Values, idx); err != nil {
		m.Problem = err.Error()
		return m
	}
	return nil
}

// validSubsequence returns an error unless idx are ascending
// positions in seq whose values are strictly increasing.
func validSubsequence[T cmp.Ordered](seq []T, idx []int) error {
	for k, i := range idx {
		if i < 0 || i >= len(seq) {
			return fmt.Errorf("index %d out of range", i)
		}
		if k == 0 {
			continue
		}
		if i <= idx[k-1] {
			return fmt.Errorf("indices not ascending at position %d", k)
		}
		if !(seq[idx[k-1]] < seq[i]) {
			return fmt.Errorf("values not strictly increasing at position %d", k)
		}
	}
	return nil
}

type crosscheckcmd struct{}

func (cmd *crosscheckcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var input inputArgs
	flags.StringVar(&input.filename, "i", "", "input `file` (default: generate random sequences)")
	flags.StringVar(&input.format, "format", "", "input `format`: text, gob, or npy (default: from file extension)")
	n := flags.Int("n", 1000, "number of random sequences per duplicate density")
	minLen := flags.Int("min-len", 0, "minimum random sequence length")
	maxLen := flags.Int("max-len", 200, "maximum random sequence length")
	distinctList := flags.String("distinct", "2,16,256,0", "comma-separated number of distinct values in random sequences (0 = int32 range)")
	seed := flags.Uint64("seed", 0, "random `seed` (0 = choose one)")
	workers := flags.Int("j", runtime.NumCPU(), "number of concurrent workers")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if *n < 0 || *minLen < 0 {
		err = fmt.Errorf("-n and -min-len must not be negative")
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	var seqs []Sequence
	if input.filename != "" {
		seqs, err = input.Load(nil, stdin)
		if err != nil {
			return 1
		}
	} else {
		var distincts []int64
		distincts, err = parseInt64List(*distinctList)
		if err != nil {
			return 2
		}
		if *seed == 0 {
			*seed = rand.Uint64()
		}
		log.Printf("generating %d sequences per density, seed %d", *n, *seed)
		for i, distinct := range distincts {
			gen := Generator{MinLen: *minLen, MaxLen: *maxLen, Distinct: distinct, Src: rand.NewSource(*seed + uint64(i))}
			for _, seq := range gen.Generate(*n) {
				seq.Name = fmt.Sprintf("d%d.%s", distinct, seq.Name)
				seqs = append(seqs, seq)
			}
		}
	}

	mismatches, err := crossCheckAll(context.Background(), seqs, *workers)
	if err != nil {
		return 1
	}
	log.Printf("checked %d sequences, %d mismatches", len(seqs), len(mismatches))
	bufw := bufio.NewWriter(stdout)
	for _, m := range mismatches {
		fmt.Fprintf(bufw, "# %s: %s (quadratic %d, loglinear %d)\n", m.Sequence.Name, m.Problem, m.Quadratic, m.LogLinear)
	}
	if len(mismatches) > 0 {
		failed := make([]Sequence, len(mismatches))
		for i, m := range mismatches {
			failed[i] = m.Sequence
		}
		err = writeText(bufw, failed)
		if err != nil {
			return 1
		}
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

// crossCheckAll runs crossCheck on each sequence, using up to
// workers goroutines, and returns the mismatches in input order.
func crossCheckAll(ctx context.Context, seqs []Sequence, workers int) ([]mismatch, error) {
	found := make([]*mismatch, len(seqs))
	thr := throttle{Max: workers}
	for i := range seqs {
		if thr.Acquire(ctx) != nil {
			break
		}
		i := i
		go func() {
			defer thr.Release()
			if m := crossCheck(seqs[i]); m != nil {
				log.Debugf("%s: %s", m.Sequence.Name, m.Problem)
				found[i] = m
			}
		}()
	}
	if err := thr.Wait(); err != nil {
		return nil, err
	}
	var ret []mismatch
	for _, m := range found {
		if m != nil {
			ret = append(ret, *m)
		}
	}
	return ret, nil
}

func parseInt64List(s string) ([]int64, error) {
	var ret []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q: %w", field, err)
		}
		ret = append(ret, v)
	}
	return ret, nil
}
