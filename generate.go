// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"flag"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

type generatecmd struct{}

func (cmd *generatecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	n := flags.Int("n", 100, "number of sequences")
	minLen := flags.Int("min-len", 0, "minimum sequence length")
	maxLen := flags.Int("max-len", 100, "maximum sequence length")
	distinct := flags.Int64("distinct", 0, "number of distinct values (0 = int32 range)")
	seed := flags.Uint64("seed", 0, "random `seed` (0 = choose one)")
	outputFilename := flags.String("o", "-", "output `file`")
	format := flags.String("format", "", "output `format`: text, gob, or npy (default: from file extension)")
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
	*format, err = formatFor(*outputFilename, *format)
	if err != nil {
		return 2
	}
	if *format == formatNpy && *minLen != *maxLen {
		err = fmt.Errorf("npy output requires equal sequence lengths (-min-len=%d, -max-len=%d)", *minLen, *maxLen)
		return 2
	}
	if *seed == 0 {
		*seed = rand.Uint64()
	}
	log.Debugf("generating %d sequences with seed %d", *n, *seed)
	gen := Generator{MinLen: *minLen, MaxLen: *maxLen, Distinct: *distinct, Src: rand.NewSource(*seed)}
	seqs := gen.Generate(*n)

	output, err := zcreate(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	err = WriteSequences(output, *format, seqs)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
