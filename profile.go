// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"context"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	log "github.com/sirupsen/logrus"
)

// servePprof serves Go profile data at addr, if addr is not empty.
func servePprof(addr string) {
	if addr == "" {
		return
	}
	go func() {
		log.Println(http.ListenAndServe(addr, nil))
	}()
}

// writeProfilesPeriodically writes heap and CPU profiles to outdir
// every interval until ctx is done.
func writeProfilesPeriodically(ctx context.Context, outdir string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMemProfile(outdir)
			writeCPUProfile(outdir)
		}
	}
}

// writeProfile writes a profile to outdir/name via a temporary file,
// so readers never see a partial profile.
func writeProfile(outdir, name string, write func(io.Writer) error) {
	tmp := filepath.Join(outdir, name+"~")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		log.Print(err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err := write(f); err != nil {
		log.Print(err)
		return
	}
	if err := f.Close(); err != nil {
		log.Print(err)
		return
	}
	if err := os.Rename(tmp, filepath.Join(outdir, name)); err != nil {
		log.Print(err)
	}
}

func writeCPUProfile(outdir string) {
	writeProfile(outdir, "cpu.prof", func(f io.Writer) error {
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		time.Sleep(time.Second)
		pprof.StopCPUProfile()
		return nil
	})
}

func writeMemProfile(outdir string) {
	writeProfile(outdir, "mem.prof", pprof.WriteHeapProfile)
}
