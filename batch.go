// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"gonum.org/v1/gonum/stat"
)

const (
	engineLogLinear = "loglinear"
	engineQuadratic = "quadratic"
)

type Result struct {
	Name        string
	Length      int
	Indices     []int
	Subsequence []int64
}

func checkEngine(engine string, reconstruct bool) error {
	switch engine {
	case engineLogLinear:
		return nil
	case engineQuadratic:
		if reconstruct {
			return errors.New("the quadratic engine computes lengths only; use -engine=" + engineLogLinear + " to reconstruct")
		}
		return nil
	default:
		return fmt.Errorf("unknown engine %q (expected %s or %s)", engine, engineLogLinear, engineQuadratic)
	}
}

// solve computes the result for a single sequence.
func solve(seq Sequence, engine string, reconstruct bool) Result {
	res := Result{Name: seq.Name}
	switch {
	case engine == engineQuadratic:
		res.Length = LengthQuadratic(seq.Values)
	case reconstruct:
		res.Indices = Indices(seq.Values)
		res.Length = len(res.Indices)
		res.Subsequence = make([]int64, len(res.Indices))
		for k, i := range res.Indices {
			res.Subsequence[k] = seq.Values[i]
		}
	default:
		res.Length = Length(seq.Values)
	}
	return res
}

// batchRunner computes results for many sequences concurrently.
// Identical sequences are computed only once.
type batchRunner struct {
	Workers     int
	Engine      string
	Reconstruct bool

	// If not nil, progress is reported to Progress.
	Progress io.Writer
}

func (br *batchRunner) Run(ctx context.Context, seqs []Sequence) ([]Result, int, error) {
	if err := checkEngine(br.Engine, br.Reconstruct); err != nil {
		return nil, 0, err
	}
	groups := groupIdentical(seqs)
	log.Debugf("batch: %d sequences, %d distinct", len(seqs), len(groups))

	var bar progressBar
	if br.Progress != nil {
		bar = newProgress(br.Progress, "batch", len(seqs), 10*time.Second)
		defer bar.Done()
	}

	results := make([]Result, len(seqs))
	thr := throttle{Max: br.Workers}
	for _, group := range groups {
		if thr.Acquire(ctx) != nil {
			break
		}
		group := group
		go func() {
			defer thr.Release()
			res := solve(seqs[group[0]], br.Engine, br.Reconstruct)
			for _, i := range group {
				results[i] = res
				results[i].Name = seqs[i].Name
			}
			if bar != nil {
				bar.Incr(len(group))
			}
		}()
	}
	if err := thr.Wait(); err != nil {
		return nil, 0, err
	}
	return results, len(groups), nil
}

// groupIdentical returns the indices of seqs grouped by content, in
// order of first appearance.
func groupIdentical(seqs []Sequence) [][]int {
	var groups [][]int
	seen := map[[blake2b.Size256]byte]int{}
	buf := make([]byte, 8)
	for i, seq := range seqs {
		h, _ := blake2b.New256(nil)
		for _, v := range seq.Values {
			binary.LittleEndian.PutUint64(buf, uint64(v))
			h.Write(buf)
		}
		var sum [blake2b.Size256]byte
		h.Sum(sum[:0])
		if g, ok := seen[sum]; ok {
			groups[g] = append(groups[g], i)
		} else {
			seen[sum] = len(groups)
			groups = append(groups, []int{i})
		}
	}
	return groups
}

type Summary struct {
	Sequences    int
	Distinct     int
	MeanLength   float64
	StdDevLength float64
	MedianLength float64
	MaxLength    int

	// Mean of (LIS length / sequence length) over non-empty
	// sequences.
	MeanRatio float64
}

func summarize(seqs []Sequence, results []Result, distinct int) Summary {
	s := Summary{Sequences: len(results), Distinct: distinct}
	if len(results) == 0 {
		return s
	}
	lengths := make([]float64, len(results))
	var ratios []float64
	for i, res := range results {
		lengths[i] = float64(res.Length)
		if res.Length > s.MaxLength {
			s.MaxLength = res.Length
		}
		if n := len(seqs[i].Values); n > 0 {
			ratios = append(ratios, float64(res.Length)/float64(n))
		}
	}
	if len(lengths) > 1 {
		s.MeanLength, s.StdDevLength = stat.MeanStdDev(lengths, nil)
	} else {
		s.MeanLength = lengths[0]
	}
	if len(ratios) > 0 {
		s.MeanRatio = stat.Mean(ratios, nil)
	}
	sort.Float64s(lengths)
	s.MedianLength = stat.Quantile(0.5, stat.Empirical, lengths, nil)
	return s
}

type batchcmd struct{}

func (cmd *batchcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var input inputArgs
	input.Flags(flags)
	var container containerArgs
	container.Flags(flags)
	var batches batchArgs
	batches.Flags(flags)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	profileDir := flags.String("profile-dir", "", "write cpu.prof and mem.prof to `directory` every minute")
	outputFilename := flags.String("o", "-", "output `file` (text, or lengths only if name ends in .npy)")
	summaryFilename := flags.String("summary", "", "write summary statistics (JSON) to `file`")
	engine := flags.String("engine", engineLogLinear, "LIS engine: "+engineLogLinear+" or "+engineQuadratic)
	reconstruct := flags.Bool("reconstruct", false, "output one longest increasing subsequence for each input sequence")
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
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)
	err = checkEngine(*engine, *reconstruct)
	if err != nil {
		return 2
	}
	err = batches.check()
	if err != nil {
		return 2
	}
	servePprof(*pprof)

	if !container.runlocal {
		if input.filename == "-" {
			err = errors.New("cannot read stdin in container mode: specify -i or use -local")
			return 2
		}
		if *outputFilename != "-" || *summaryFilename != "" {
			err = errors.New("cannot specify output files in container mode: not implemented")
			return 2
		}
		runner := arvadosContainerRunner{
			Client:      arvados.NewClientFromEnv(),
			ProjectUUID: container.projectUUID,
			RAM:         8 << 30,
			VCPUs:       *workers,
			Priority:    container.priority,
		}
		err = runner.TranslatePaths(&input.filename)
		if err != nil {
			return 1
		}
		var outputs []string
		outputs, err = batches.RunBatches(context.Background(), func(ctx context.Context, batch int) (string, error) {
			runner := runner
			runner.Name = fmt.Sprintf("lis batch %d/%d", batch, batches.batches)
			runner.Args = append([]string{"batch", "-local=true",
				"-i", input.filename,
				"-format", input.format,
				"-engine", *engine,
				fmt.Sprintf("-reconstruct=%v", *reconstruct),
				fmt.Sprintf("-j=%d", *workers),
				"-loglevel", *loglevel,
				"-o", "/mnt/output/results.txt",
				"-summary", "/mnt/output/summary.json",
			}, batches.Args(batch)...)
			output, err := runner.RunContext(ctx)
			if err != nil {
				return "", err
			}
			return output + "/results.txt", nil
		})
		if err != nil {
			return 1
		}
		for _, output := range outputs {
			fmt.Fprintln(stdout, output)
		}
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *profileDir != "" {
		go writeProfilesPeriodically(ctx, *profileDir, time.Minute)
	}

	seqs, err := input.Load(nil, stdin)
	if err != nil {
		return 1
	}
	log.Printf("loaded %d sequences from %s", len(seqs), input.filename)
	if batches.batch >= 0 {
		seqs = batches.Slice(seqs)
		log.Printf("batch %d/%d: %d sequences", batches.batch, batches.batches, len(seqs))
	}
	br := batchRunner{
		Workers:     *workers,
		Engine:      *engine,
		Reconstruct: *reconstruct,
		Progress:    stderr,
	}
	results, distinct, err := br.Run(ctx, seqs)
	if err != nil {
		return 1
	}
	summary := summarize(seqs, results, distinct)
	log.Printf("%d sequences (%d distinct): mean length %.3f, stddev %.3f, median %g, max %d",
		summary.Sequences, summary.Distinct, summary.MeanLength, summary.StdDevLength, summary.MedianLength, summary.MaxLength)

	output, err := zcreate(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	if strings.HasSuffix(strings.TrimSuffix(*outputFilename, ".gz"), ".npy") {
		err = writeLengthsNpy(output, results)
	} else {
		err = writeResults(output, results, false)
	}
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *summaryFilename != "" {
		var f io.WriteCloser
		f, err = zcreate(*summaryFilename, stdout)
		if err != nil {
			return 1
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(summary)
		if err != nil {
			return 1
		}
		err = f.Close()
		if err != nil {
			return 1
		}
	}
	return 0
}

// writeResults writes one line per result: name, length, and (if
// reconstructed and non-empty) the subsequence values, or their
// indices if indices is true.
func writeResults(w io.Writer, results []Result, indices bool) error {
	bufw := bufio.NewWriter(w)
	for _, res := range results {
		fmt.Fprintf(bufw, "%s\t%d", res.Name, res.Length)
		switch {
		case indices && len(res.Indices) > 0:
			bufw.WriteByte('\t')
			for k, i := range res.Indices {
				if k > 0 {
					bufw.WriteByte(' ')
				}
				bufw.WriteString(strconv.Itoa(i))
			}
		case !indices && len(res.Subsequence) > 0:
			bufw.WriteByte('\t')
			for k, v := range res.Subsequence {
				if k > 0 {
					bufw.WriteByte(' ')
				}
				bufw.WriteString(strconv.FormatInt(v, 10))
			}
		}
		bufw.WriteByte('\n')
	}
	return bufw.Flush()
}

func writeLengthsNpy(w io.Writer, results []Result) error {
	bufw := bufio.NewWriter(w)
	data := make([]int64, len(results))
	for i, res := range results {
		data[i] = int64(res.Length)
	}
	err := writeNpyInt64(bufw, data, len(data))
	if err != nil {
		return err
	}
	return bufw.Flush()
}
