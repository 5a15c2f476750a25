// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bytes"
	"math"
	"strings"
	"time"

	"gopkg.in/check.v1"
)

type cmdSuite struct{}

var _ = check.Suite(&cmdSuite{})

func (s *cmdSuite) TestLength(c *check.C) {
	for _, trial := range []struct {
		cmd    *lengthcmd
		args   []string
		stdin  string
		stdout string
	}{
		{&lengthcmd{}, []string{"10", "9", "2", "5", "3", "7", "101", "18"}, "", "args\t4\n"},
		{&lengthcmd{}, []string{"-engine", engineQuadratic, "10", "9", "2", "5", "3", "7", "101", "18"}, "", "args\t4\n"},
		{&lengthcmd{}, []string{"--", "-1", "-5", "2"}, "", "args\t2\n"},
		{&lengthcmd{}, nil, "x: 1 2 3\ny: 3 2 1\n\n", "x\t3\ny\t1\n"},
		{&lengthcmd{}, []string{"-i", "-"}, "", ""},
		{&lengthcmd{reconstruct: true}, []string{"10", "9", "2", "5", "3", "7", "101", "18"}, "", "args\t4\t2 3 7 18\n"},
		{&lengthcmd{reconstruct: true}, []string{"-indices", "10", "9", "2", "5", "3", "7", "101", "18"}, "", "args\t4\t2 4 5 7\n"},
		{&lengthcmd{reconstruct: true}, nil, "e:\nf: 1\n", "e\t0\nf\t1\t1\n"},
		{&lengthcmd{reconstruct: true}, []string{"-indices"}, "e:\nf: 1\n", "e\t0\nf\t1\t0\n"},
	} {
		c.Logf("=== %v %q", trial.args, trial.stdin)
		var stdout, stderr bytes.Buffer
		exited := trial.cmd.RunCommand("lis length", trial.args, strings.NewReader(trial.stdin), &stdout, &stderr)
		c.Check(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
		c.Check(stdout.String(), check.Equals, trial.stdout)
	}
}

func (s *cmdSuite) TestLengthErrors(c *check.C) {
	for _, trial := range []struct {
		cmd    *lengthcmd
		args   []string
		exited int
	}{
		{&lengthcmd{reconstruct: true}, []string{"-engine", engineQuadratic, "1", "2"}, 2},
		{&lengthcmd{}, []string{"-indices", "1", "2"}, 2},
		{&lengthcmd{}, []string{"-engine", "magic", "1", "2"}, 2},
		{&lengthcmd{}, []string{"1", "two"}, 1},
		{&lengthcmd{}, []string{"-i", "/nonexistent/seqs.txt"}, 1},
	} {
		c.Logf("=== %v", trial.args)
		var stdout, stderr bytes.Buffer
		exited := trial.cmd.RunCommand("lis length", trial.args, strings.NewReader(""), &stdout, &stderr)
		c.Check(exited, check.Equals, trial.exited)
		c.Check(stderr.Len() > 0, check.Equals, true)
	}
}

func (s *cmdSuite) TestGenerate(c *check.C) {
	var out1, out2, stderr bytes.Buffer
	args := []string{"-n", "3", "-min-len", "4", "-max-len", "4", "-distinct", "10", "-seed", "5"}
	c.Assert((&generatecmd{}).RunCommand("lis generate", args, nil, &out1, &stderr), check.Equals, 0)
	c.Assert((&generatecmd{}).RunCommand("lis generate", args, nil, &out2, &stderr), check.Equals, 0)
	c.Check(out1.String(), check.Equals, out2.String())
	seqs, err := ReadSequences(&out1, formatText)
	c.Assert(err, check.IsNil)
	c.Assert(seqs, check.HasLen, 3)
	for i, seq := range seqs {
		c.Check(seq.Name, check.Equals, []string{"rand1", "rand2", "rand3"}[i])
		c.Check(seq.Values, check.HasLen, 4)
	}

	tmpdir := c.MkDir()
	for _, fnm := range []string{"seqs.gob", "seqs.npy.gz"} {
		c.Logf("=== %s", fnm)
		args := []string{"-n", "20", "-min-len", "16", "-max-len", "16", "-seed", "9", "-o", tmpdir + "/" + fnm}
		c.Assert((&generatecmd{}).RunCommand("lis generate", args, nil, &out1, &stderr), check.Equals, 0, check.Commentf("%s", stderr.String()))
		var stdout bytes.Buffer
		exited := (&lengthcmd{}).RunCommand("lis length", []string{"-i", tmpdir + "/" + fnm}, nil, &stdout, &stderr)
		c.Check(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
		c.Check(strings.Count(stdout.String(), "\n"), check.Equals, 20)
	}

	stderr.Reset()
	exited := (&generatecmd{}).RunCommand("lis generate", []string{"-format", "npy", "-min-len", "1", "-max-len", "2"}, nil, &out1, &stderr)
	c.Check(exited, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `npy output requires equal sequence lengths.*\n`)
}

func (s *cmdSuite) TestNegativeCounts(c *check.C) {
	for _, args := range [][]string{
		{"-n", "50", "-min-len", "-5", "-max-len", "3", "-seed", "1"},
		{"-n", "-1"},
	} {
		c.Logf("=== %v", args)
		var stdout, stderr bytes.Buffer
		exited := (&generatecmd{}).RunCommand("lis generate", args, nil, &stdout, &stderr)
		c.Check(exited, check.Equals, 2)
		c.Check(stderr.String(), check.Equals, "-n and -min-len must not be negative\n")
		c.Check(stdout.Len(), check.Equals, 0)

		stderr.Reset()
		exited = (&crosscheckcmd{}).RunCommand("lis crosscheck", args, nil, &stdout, &stderr)
		c.Check(exited, check.Equals, 2)
		c.Check(stderr.String(), check.Equals, "-n and -min-len must not be negative\n")
	}
}

func (s *cmdSuite) TestBench(c *check.C) {
	var stdout, stderr bytes.Buffer
	exited := (&benchcmd{}).RunCommand("lis bench", []string{"-min-len", "64", "-max-len", "512", "-quadratic-max-len", "256", "-reps", "2", "-seed", "1"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	c.Assert(lines, check.HasLen, 6)
	c.Check(strings.Fields(lines[0]), check.DeepEquals, []string{"n", "loglinear", "quadratic"})
	c.Check(strings.Fields(lines[4])[2], check.Equals, "-")
	c.Check(lines[5], check.Matches, `growth exponent: loglinear .*, quadratic .*`)

	exited = (&benchcmd{}).RunCommand("lis bench", []string{"-reps", "0"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 2)
}

func (s *cmdSuite) TestGrowthExponent(c *check.C) {
	rows := []benchRow{
		{N: 10, LogLinear: 100, Quadratic: 1000},
		{N: 20, LogLinear: 200, Quadratic: 4000},
		{N: 40, LogLinear: 400, Quadratic: 16000},
		{N: 80, LogLinear: 800},
	}
	loglinear := growthExponent(rows, func(r benchRow) time.Duration { return r.LogLinear })
	quadratic := growthExponent(rows, func(r benchRow) time.Duration { return r.Quadratic })
	c.Check(math.Abs(loglinear-1) < 1e-9, check.Equals, true, check.Commentf("%v", loglinear))
	c.Check(math.Abs(quadratic-2) < 1e-9, check.Equals, true, check.Commentf("%v", quadratic))
	c.Check(math.IsNaN(growthExponent(rows[:1], func(r benchRow) time.Duration { return r.LogLinear })), check.Equals, true)
}

func (s *cmdSuite) TestHandler(c *check.C) {
	var stdout, stderr bytes.Buffer
	exited := handler.RunCommand("lis", []string{"length", "3", "1", "2"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "args\t2\n")

	stdout.Reset()
	exited = handler.RunCommand("lis", []string{"reconstruct", "3", "1", "2"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "args\t2\t1 2\n")

	exited = handler.RunCommand("lis", []string{"nonexistent"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 2)
}
