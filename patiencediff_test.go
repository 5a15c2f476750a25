// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type patienceSuite struct{}

var _ = check.Suite(&patienceSuite{})

func (s *patienceSuite) TestMovedLine(c *check.C) {
	edits := PatienceDiff(strings.Fields("a b c d e"), strings.Fields("a c d b e"))
	c.Check(edits, check.DeepEquals, []Edit{
		{EditEqual, []string{"a"}},
		{EditDelete, []string{"b"}},
		{EditEqual, []string{"c", "d"}},
		{EditInsert, []string{"b"}},
		{EditEqual, []string{"e"}},
	})
}

func (s *patienceSuite) TestTrivial(c *check.C) {
	c.Check(PatienceDiff(nil, nil), check.HasLen, 0)
	same := strings.Fields("x y z")
	c.Check(PatienceDiff(same, same), check.DeepEquals, []Edit{{EditEqual, same}})
	c.Check(PatienceDiff(nil, same), check.DeepEquals, []Edit{{EditInsert, same}})
	c.Check(PatienceDiff(same, nil), check.DeepEquals, []Edit{{EditDelete, same}})
}

func (s *patienceSuite) TestUniqueLinesAnchor(c *check.C) {
	// The braces repeat, so only the function names can anchor.
	a := []string{"func f() {", "}", "func g() {", "}"}
	b := []string{"func g() {", "}", "func h() {", "}", "func f() {", "}"}
	edits := PatienceDiff(a, b)
	c.Check(rebuild(edits, EditDelete), check.DeepEquals, a)
	c.Check(rebuild(edits, EditInsert), check.DeepEquals, b)
	kept := 0
	for _, e := range edits {
		if e.Op == EditEqual {
			kept += len(e.Lines)
		}
	}
	c.Check(kept >= 2, check.Equals, true, check.Commentf("%v", edits))
}

func (s *patienceSuite) TestRandomEditsRebuildInputs(c *check.C) {
	rnd := rand.New(rand.NewSource(4))
	for trial := 0; trial < 300; trial++ {
		alphabet := 2 + rnd.Intn(30)
		a := make([]string, rnd.Intn(40))
		for i := range a {
			a[i] = fmt.Sprintf("line %d", rnd.Intn(alphabet))
		}
		b := make([]string, rnd.Intn(40))
		for i := range b {
			b[i] = fmt.Sprintf("line %d", rnd.Intn(alphabet))
		}
		edits := PatienceDiff(a, b)
		c.Check(rebuild(edits, EditDelete), check.DeepEquals, a, check.Commentf("trial %d", trial))
		c.Check(rebuild(edits, EditInsert), check.DeepEquals, b, check.Commentf("trial %d", trial))
		for i, e := range edits {
			c.Check(e.Lines, check.Not(check.HasLen), 0)
			if i > 0 {
				c.Check(e.Op, check.Not(check.Equals), edits[i-1].Op)
			}
		}
	}
}

func (s *patienceSuite) TestEmptyLines(c *check.C) {
	a := []string{"", "x", "", ""}
	b := []string{"", "", "y", ""}
	edits := PatienceDiff(a, b)
	c.Check(rebuild(edits, EditDelete), check.DeepEquals, a)
	c.Check(rebuild(edits, EditInsert), check.DeepEquals, b)
}

func (s *patienceSuite) TestDiffCommand(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/a.txt", []byte("a\nb\nc\nd\ne\n"), 0644)
	c.Assert(err, check.IsNil)
	err = os.WriteFile(tmpdir+"/b.txt", []byte("a\nc\nd\nb\ne\n"), 0644)
	c.Assert(err, check.IsNil)

	var stdout, stderr bytes.Buffer
	exited := (&diffcmd{}).RunCommand("lis diff", []string{tmpdir + "/a.txt", tmpdir + "/b.txt"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stdout.String(), check.Equals, " a\n-b\n c\n d\n+b\n e\n")
	c.Check(stderr.String(), check.Equals, "")

	stdout.Reset()
	exited = (&diffcmd{}).RunCommand("lis diff", []string{"-q", tmpdir + "/a.txt", tmpdir + "/b.txt"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stdout.String(), check.Matches, `files .*a.txt and .*b.txt differ\n`)

	stdout.Reset()
	exited = (&diffcmd{}).RunCommand("lis diff", []string{tmpdir + "/a.txt", "-"}, strings.NewReader("a\nb\nc\nd\ne\n"), &stdout, &stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "")

	exited = (&diffcmd{}).RunCommand("lis diff", []string{tmpdir + "/a.txt", tmpdir + "/missing.txt"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `(?s).*missing.txt.*`)

	stderr.Reset()
	exited = (&diffcmd{}).RunCommand("lis diff", []string{tmpdir + "/a.txt"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `(?s)usage: .*`)
}

// rebuild concatenates the lines of the EditEqual edits and the edits
// with the given op.
func rebuild(edits []Edit, op EditOp) []string {
	lines := []string{}
	for _, e := range edits {
		if e.Op == EditEqual || e.Op == op {
			lines = append(lines, e.Lines...)
		}
	}
	return lines
}
