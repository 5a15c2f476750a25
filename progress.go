// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type progressBar interface {
	Incr(n int)
	Done()
}

// newProgress returns a progress bar drawn on out if out is a
// terminal, otherwise a reporter that logs progress and an ETA at
// most once per interval.
func newProgress(out io.Writer, name string, total int, interval time.Duration) progressBar {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		p := mpb.New(mpb.WithOutput(out))
		bar := p.AddBar(int64(total),
			mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}), decor.CountersNoUnit("%d / %d")),
			mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5}), decor.Elapsed(decor.ET_STYLE_GO)),
			mpb.BarRemoveOnComplete(),
		)
		return &mpbProgress{p: p, bar: bar}
	}
	return &logProgress{name: name, total: total, interval: interval, start: time.Now()}
}

type mpbProgress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func (mp *mpbProgress) Incr(n int) { mp.bar.IncrBy(n) }

func (mp *mpbProgress) Done() {
	if mp.bar.IsRunning() {
		mp.bar.Abort(true)
	}
	mp.p.Wait()
}

type logProgress struct {
	name     string
	total    int
	interval time.Duration
	start    time.Time

	mtx     sync.Mutex
	done    int
	lastLog time.Time
}

func (lp *logProgress) Incr(n int) {
	lp.mtx.Lock()
	defer lp.mtx.Unlock()
	lp.done += n
	if lp.done == 0 {
		return
	}
	now := time.Now()
	if now.Sub(lp.lastLog) < lp.interval && lp.done < lp.total {
		return
	}
	lp.lastLog = now
	remain := lp.total - lp.done
	ttl := now.Sub(lp.start) * time.Duration(remain) / time.Duration(lp.done)
	log.Printf("%s progress %d/%d, eta %v (%v)", lp.name, lp.done, lp.total, now.Add(ttl).Format(time.RFC3339), ttl)
}

func (lp *logProgress) Done() {
	lp.mtx.Lock()
	defer lp.mtx.Unlock()
	log.Debugf("%s finished %d/%d in %v", lp.name, lp.done, lp.total, time.Since(lp.start))
}
