// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type EditOp int

const (
	EditEqual EditOp = iota
	EditDelete
	EditInsert
)

// An Edit is a run of lines that are common to both inputs
// (EditEqual), only in the first (EditDelete), or only in the second
// (EditInsert).
type Edit struct {
	Op    EditOp
	Lines []string
}

// PatienceDiff returns the edits that transform a into b.
//
// Lines that occur exactly once in each input are candidate anchors.
// The anchors kept are those on a longest increasing subsequence of
// their positions in b (taken in a's order), so they match up without
// crossing. Gaps between anchors are diffed recursively; a gap with
// no candidate anchors is handed to a conventional line diff.
func PatienceDiff(a, b []string) []Edit {
	var d differ
	d.diff(a, b)
	return d.edits
}

type differ struct {
	edits []Edit
}

func (d *differ) emit(op EditOp, lines []string) {
	if len(lines) == 0 {
		return
	}
	if n := len(d.edits); n > 0 && d.edits[n-1].Op == op {
		d.edits[n-1].Lines = append(d.edits[n-1].Lines, lines...)
		return
	}
	d.edits = append(d.edits, Edit{Op: op, Lines: append([]string(nil), lines...)})
}

func (d *differ) diff(a, b []string) {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	d.emit(EditEqual, a[:prefix])
	a, b = a[prefix:], b[prefix:]

	suffix := 0
	for suffix < len(a) && suffix < len(b) && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	common := a[len(a)-suffix:]
	a, b = a[:len(a)-suffix], b[:len(b)-suffix]

	switch {
	case len(a) == 0:
		d.emit(EditInsert, b)
	case len(b) == 0:
		d.emit(EditDelete, a)
	default:
		anchors := uniqueAnchors(a, b)
		if len(anchors) == 0 {
			d.lineDiff(a, b)
			break
		}
		ai, bi := 0, 0
		for _, an := range anchors {
			d.diff(a[ai:an.a], b[bi:an.b])
			d.emit(EditEqual, a[an.a:an.a+1])
			ai, bi = an.a+1, an.b+1
		}
		d.diff(a[ai:], b[bi:])
	}
	d.emit(EditEqual, common)
}

type anchor struct {
	a, b int
}

// uniqueAnchors returns the non-crossing pairs of positions (in a
// and b) of lines that appear exactly once in each of a and b.
func uniqueAnchors(a, b []string) []anchor {
	type count struct {
		na, nb int
		ib     int
	}
	counts := make(map[string]*count, len(a))
	for _, line := range a {
		c := counts[line]
		if c == nil {
			c = &count{}
			counts[line] = c
		}
		c.na++
	}
	for i, line := range b {
		if c := counts[line]; c != nil {
			c.nb++
			c.ib = i
		}
	}
	var matches []anchor
	for i, line := range a {
		if c := counts[line]; c.na == 1 && c.nb == 1 {
			matches = append(matches, anchor{a: i, b: c.ib})
		}
	}
	keep := IndicesFunc(len(matches), func(i, j int) bool { return matches[i].b < matches[j].b })
	anchors := make([]anchor, len(keep))
	for k, i := range keep {
		anchors[k] = matches[i]
	}
	return anchors
}

func (d *differ) lineDiff(a, b []string) {
	dmp := diffmatchpatch.New()
	ra, rb, lines := dmp.DiffLinesToRunes(strings.Join(a, "\n")+"\n", strings.Join(b, "\n")+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(ra, rb, false), lines)
	for _, df := range diffs {
		if df.Text == "" {
			continue
		}
		text := strings.Split(strings.TrimSuffix(df.Text, "\n"), "\n")
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			d.emit(EditEqual, text)
		case diffmatchpatch.DiffDelete:
			d.emit(EditDelete, text)
		case diffmatchpatch.DiffInsert:
			d.emit(EditInsert, text)
		}
	}
}

// writeEdits writes edits to w, one line per input line, prefixed
// with " ", "-", or "+".
func writeEdits(w io.Writer, edits []Edit) error {
	bufw := bufio.NewWriter(w)
	for _, e := range edits {
		prefix := " "
		switch e.Op {
		case EditDelete:
			prefix = "-"
		case EditInsert:
			prefix = "+"
		}
		for _, line := range e.Lines {
			bufw.WriteString(prefix)
			bufw.WriteString(line)
			bufw.WriteByte('\n')
		}
	}
	return bufw.Flush()
}

// splitLines splits text into lines, dropping the newline at the end
// of the last line, if any.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

type diffcmd struct{}

func (cmd *diffcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [options] file1 file2\n", prog)
		flags.PrintDefaults()
	}
	quiet := flags.Bool("q", false, "report only whether the files differ")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() != 2 {
		flags.Usage()
		return 2
	}
	var text [2][]string
	for i, fnm := range flags.Args() {
		text[i], err = readLines(fnm, stdin)
		if err != nil {
			return 2
		}
	}
	edits := PatienceDiff(text[0], text[1])
	if len(edits) == 0 || (len(edits) == 1 && edits[0].Op == EditEqual) {
		return 0
	}
	if *quiet {
		fmt.Fprintf(stdout, "files %s and %s differ\n", flags.Arg(0), flags.Arg(1))
		return 1
	}
	err = writeEdits(stdout, edits)
	if err != nil {
		return 2
	}
	return 1
}

func readLines(fnm string, stdin io.Reader) ([]string, error) {
	var rdr io.ReadCloser
	if fnm == "-" {
		rdr = io.NopCloser(stdin)
	} else {
		var err error
		rdr, err = zopen(fnm)
		if err != nil {
			return nil, err
		}
	}
	defer rdr.Close()
	buf, err := io.ReadAll(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return splitLines(string(buf)), nil
}
