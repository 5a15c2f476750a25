// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"encoding/gob"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
)

const (
	formatText = "text"
	formatGob  = "gob"
	formatNpy  = "npy"
)

type Sequence struct {
	Name   string
	Values []int64
}

// SequenceEntry is the unit of a gob-encoded sequence file. A file
// is a stream of entries, terminated by EOF.
type SequenceEntry struct {
	Sequences []Sequence
}

const gobEntrySize = 1000

// formatFor returns explicit if it is non-empty, otherwise the
// format implied by the file extension (ignoring a trailing ".gz").
func formatFor(path, explicit string) (string, error) {
	switch explicit {
	case formatText, formatGob, formatNpy:
		return explicit, nil
	case "":
	default:
		return "", fmt.Errorf("unknown format %q (expected %s, %s, or %s)", explicit, formatText, formatGob, formatNpy)
	}
	path = strings.TrimSuffix(path, ".gz")
	switch {
	case strings.HasSuffix(path, ".gob"):
		return formatGob, nil
	case strings.HasSuffix(path, ".npy"):
		return formatNpy, nil
	default:
		return formatText, nil
	}
}

// ReadSequences reads all sequences from r.
func ReadSequences(r io.Reader, format string) ([]Sequence, error) {
	switch format {
	case formatText:
		return readText(r)
	case formatGob:
		return readGob(r)
	case formatNpy:
		return readNpy(r)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// WriteSequences writes seqs to w. The npy format requires all
// sequences to have the same length.
func WriteSequences(w io.Writer, format string, seqs []Sequence) error {
	switch format {
	case formatText:
		return writeText(w, seqs)
	case formatGob:
		return writeGob(w, seqs)
	case formatNpy:
		return writeNpy(w, seqs)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

func readText(r io.Reader) ([]Sequence, error) {
	var seqs []Sequence
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		seq := Sequence{Name: fmt.Sprintf("seq%d", lineno)}
		if colon := strings.IndexByte(line, ':'); colon >= 0 {
			seq.Name = strings.TrimSpace(line[:colon])
			line = line[colon+1:]
		}
		fields := strings.FieldsFunc(line, isSeparator)
		seq.Values = make([]int64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: cannot parse %q: %w", lineno, field, err)
			}
			seq.Values[i] = v
		}
		seqs = append(seqs, seq)
	}
	return seqs, scanner.Err()
}

func writeText(w io.Writer, seqs []Sequence) error {
	bufw := bufio.NewWriter(w)
	for _, seq := range seqs {
		fmt.Fprintf(bufw, "%s:", seq.Name)
		for _, v := range seq.Values {
			bufw.WriteByte(' ')
			bufw.WriteString(strconv.FormatInt(v, 10))
		}
		bufw.WriteByte('\n')
	}
	return bufw.Flush()
}

func readGob(r io.Reader) ([]Sequence, error) {
	dec := gob.NewDecoder(bufio.NewReaderSize(r, 1<<20))
	var ret []Sequence
	for {
		var ent SequenceEntry
		err := dec.Decode(&ent)
		if err == io.EOF {
			return ret, nil
		} else if err != nil {
			return nil, fmt.Errorf("gob decode: %w", err)
		}
		ret = append(ret, ent.Sequences...)
	}
}

func writeGob(w io.Writer, seqs []Sequence) error {
	enc := gob.NewEncoder(w)
	for len(seqs) > 0 {
		n := len(seqs)
		if n > gobEntrySize {
			n = gobEntrySize
		}
		err := enc.Encode(SequenceEntry{Sequences: seqs[:n]})
		if err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
		seqs = seqs[n:]
	}
	return nil
}

func readNpy(r io.Reader) ([]Sequence, error) {
	npy, err := gonpy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gonpy.NewReader: %w", err)
	}
	var rows, cols int
	switch len(npy.Shape) {
	case 1:
		rows, cols = 1, npy.Shape[0]
	case 2:
		rows, cols = npy.Shape[0], npy.Shape[1]
	default:
		return nil, fmt.Errorf("npy: cannot use %d-dimensional array as sequences", len(npy.Shape))
	}
	var data []int64
	switch strings.TrimLeft(npy.Dtype, "<>|=") {
	case "i8":
		data, err = npy.GetInt64()
	case "i4":
		var d []int32
		d, err = npy.GetInt32()
		data = make([]int64, len(d))
		for i, v := range d {
			data[i] = int64(v)
		}
	case "i2":
		var d []int16
		d, err = npy.GetInt16()
		data = make([]int64, len(d))
		for i, v := range d {
			data[i] = int64(v)
		}
	case "u2":
		var d []uint16
		d, err = npy.GetUint16()
		data = make([]int64, len(d))
		for i, v := range d {
			data[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("npy: unsupported dtype %q", npy.Dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("npy: shape %v does not match %d elements", npy.Shape, len(data))
	}
	seqs := make([]Sequence, rows)
	for row := range seqs {
		seqs[row].Name = fmt.Sprintf("row%d", row)
		seqs[row].Values = make([]int64, cols)
		for col := 0; col < cols; col++ {
			if npy.ColumnMajor {
				seqs[row].Values[col] = data[col*rows+row]
			} else {
				seqs[row].Values[col] = data[row*cols+col]
			}
		}
	}
	return seqs, nil
}

func writeNpy(w io.Writer, seqs []Sequence) error {
	rows := len(seqs)
	cols := 0
	if rows > 0 {
		cols = len(seqs[0].Values)
	}
	data := make([]int64, 0, rows*cols)
	for _, seq := range seqs {
		if len(seq.Values) != cols {
			return fmt.Errorf("npy: cannot write sequences of different lengths (%q has %d values, expected %d)", seq.Name, len(seq.Values), cols)
		}
		data = append(data, seq.Values...)
	}
	return writeNpyInt64(w, data, rows, cols)
}

func writeNpyInt64(w io.Writer, data []int64, shape ...int) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return fmt.Errorf("gonpy.NewWriter: %w", err)
	}
	npw.Shape = shape
	return npw.WriteInt64(data)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// zcreate returns a writer for the given file ("-" for stdout),
// compressing the output if fnm ends with ".gz".
func zcreate(fnm string, stdout io.Writer) (io.WriteCloser, error) {
	if fnm == "-" {
		return nopCloser{stdout}, nil
	}
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	bufw := bufio.NewWriterSize(f, 4*1024*1024)
	return &gzipw{Writer: pgzip.NewWriter(bufw), bufw: bufw, f: f}, nil
}

// gzipw flushes and closes the gzip stream, the buffer, and the
// underlying file, in that order.
type gzipw struct {
	*pgzip.Writer
	bufw *bufio.Writer
	f    *os.File
}

func (gw *gzipw) Close() error {
	err := gw.Writer.Close()
	if err == nil {
		err = gw.bufw.Flush()
	}
	if e := gw.f.Close(); err == nil {
		err = e
	}
	return err
}

// inputArgs are the flags shared by subcommands that read sequences.
type inputArgs struct {
	filename string
	format   string
}

func (ia *inputArgs) Flags(flags *flag.FlagSet) {
	flags.StringVar(&ia.filename, "i", "-", "input `file` (\"-\" for stdin)")
	flags.StringVar(&ia.format, "format", "", "input `format`: text, gob, or npy (default: from file extension)")
}

// Load reads the input sequences. If values is non-empty, they are
// parsed as a single sequence named "args" and the input file is
// ignored.
func (ia *inputArgs) Load(values []string, stdin io.Reader) ([]Sequence, error) {
	if len(values) > 0 {
		seqs, err := readText(strings.NewReader("args: " + strings.Join(values, " ")))
		if err != nil {
			return nil, fmt.Errorf("command line: %w", err)
		}
		return seqs, nil
	}
	format, err := formatFor(ia.filename, ia.format)
	if err != nil {
		return nil, err
	}
	var input io.ReadCloser
	if ia.filename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = zopen(ia.filename)
		if err != nil {
			return nil, err
		}
	}
	defer input.Close()
	seqs, err := ReadSequences(input, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ia.filename, err)
	}
	return seqs, nil
}
