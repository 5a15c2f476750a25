// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"flag"
	"fmt"
	"io"
)

// lengthcmd prints the LIS length (and, if reconstruct is true, one
// LIS) of each input sequence.
type lengthcmd struct {
	reconstruct bool
}

func (cmd *lengthcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [options] [-- value ...]\n", prog)
		flags.PrintDefaults()
	}
	var input inputArgs
	input.Flags(flags)
	engine := flags.String("engine", engineLogLinear, "LIS engine: "+engineLogLinear+" or "+engineQuadratic)
	indices := false
	if cmd.reconstruct {
		flags.BoolVar(&indices, "indices", false, "print positions of subsequence elements instead of values")
	}
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	err = checkEngine(*engine, cmd.reconstruct)
	if err != nil {
		return 2
	}
	seqs, err := input.Load(flags.Args(), stdin)
	if err != nil {
		return 1
	}
	results := make([]Result, len(seqs))
	for i, seq := range seqs {
		results[i] = solve(seq, *engine, cmd.reconstruct)
	}
	err = writeResults(stdout, results, indices)
	if err != nil {
		return 1
	}
	return 0
}
