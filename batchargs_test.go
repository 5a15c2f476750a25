// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type batchArgsSuite struct{}

var _ = check.Suite(&batchArgsSuite{})

func (s *batchArgsSuite) TestSlice(c *check.C) {
	seqs := make([]Sequence, 10)
	for i := range seqs {
		seqs[i].Name = fmt.Sprintf("s%d", i)
	}
	var got []Sequence
	for batch := 0; batch < 4; batch++ {
		b := batchArgs{batch: batch, batches: 4}
		part := b.Slice(seqs)
		c.Check(len(part) <= 3, check.Equals, true)
		got = append(got, part...)
	}
	c.Check(got, check.DeepEquals, seqs)

	b := batchArgs{batch: 3, batches: 4}
	c.Check(b.Slice(seqs[:2]), check.HasLen, 0)
	b = batchArgs{batch: -1, batches: 4}
	c.Check(b.Slice(seqs), check.HasLen, 10)
}

func (s *batchArgsSuite) TestRunBatches(c *check.C) {
	b := batchArgs{batch: -1, batches: 3}
	outputs, err := b.RunBatches(context.Background(), func(ctx context.Context, batch int) (string, error) {
		return fmt.Sprintf("out%d", batch), nil
	})
	c.Check(err, check.IsNil)
	c.Check(outputs, check.DeepEquals, []string{"out0", "out1", "out2"})

	b = batchArgs{batch: 1, batches: 3}
	outputs, err = b.RunBatches(context.Background(), func(ctx context.Context, batch int) (string, error) {
		return fmt.Sprintf("out%d", batch), nil
	})
	c.Check(err, check.IsNil)
	c.Check(outputs, check.DeepEquals, []string{"out1"})

	b = batchArgs{batch: -1, batches: 3}
	_, err = b.RunBatches(context.Background(), func(ctx context.Context, batch int) (string, error) {
		if batch == 1 {
			return "", errors.New("batch 1 failed")
		}
		<-ctx.Done()
		return "", nil
	})
	c.Check(err, check.ErrorMatches, "batch 1 failed")
}

func (s *batchArgsSuite) TestBatchCommand(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/in.txt", []byte("a: 1 2\nb: 2 1\nc: 1 2 3\nd: 4\ne: 5 6 7 8\n"), 0644)
	c.Assert(err, check.IsNil)
	var all []string
	for batch := 0; batch < 2; batch++ {
		var stdout, stderr bytes.Buffer
		exited := (&batchcmd{}).RunCommand("lis batch", []string{"-local", "-i", tmpdir + "/in.txt", "-batches", "2", fmt.Sprintf("-batch=%d", batch)}, nil, &stdout, &stderr)
		c.Assert(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
		all = append(all, strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")...)
	}
	c.Check(all, check.DeepEquals, []string{"a\t2", "b\t1", "c\t3", "d\t1", "e\t4"})

	var stdout, stderr bytes.Buffer
	exited := (&batchcmd{}).RunCommand("lis batch", []string{"-local", "-i", tmpdir + "/in.txt", "-batches", "2", "-batch", "2"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `invalid -batch=2 with -batches=2\n`)
}
