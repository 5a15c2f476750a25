// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"git.arvados.org/arvados.git/lib/cmd"
	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// containerArgs are the flags shared by subcommands that can run
// themselves in an Arvados container.
type containerArgs struct {
	runlocal    bool
	projectUUID string
	priority    int
}

func (ca *containerArgs) Flags(flags *flag.FlagSet) {
	flags.BoolVar(&ca.runlocal, "local", false, "run on local host (default: run in an arvados container)")
	flags.StringVar(&ca.projectUUID, "project", "", "project `UUID` for output data")
	flags.IntVar(&ca.priority, "priority", 500, "container request priority")
}

type arvadosContainerRunner struct {
	Client      *arvados.Client
	Name        string
	ProjectUUID string
	VCPUs       int
	RAM         int64
	Args        []string
	Mounts      map[string]map[string]interface{}
	Priority    int
}

// Interval between container request status checks.
const containerPollInterval = 5 * time.Second

// RunContext submits a container request that runs this program with
// runner.Args, waits for it to finish, and returns the UUID of the
// output collection. If ctx is cancelled first, the container request
// is cancelled too.
func (runner *arvadosContainerRunner) RunContext(ctx context.Context) (string, error) {
	if runner.ProjectUUID == "" {
		return "", errors.New("cannot run arvados container: ProjectUUID not provided")
	}
	cmdUUID, err := runner.makeCommandCollection()
	if err != nil {
		return "", err
	}
	mounts := map[string]map[string]interface{}{
		"/mnt/output": {
			"kind":     "collection",
			"writable": true,
		},
		"/mnt/cmd": {
			"kind": "collection",
			"uuid": cmdUUID,
		},
	}
	for path, mnt := range runner.Mounts {
		mounts[path] = mnt
	}
	priority := runner.Priority
	if priority < 1 {
		priority = 500
	}
	vcpus := runner.VCPUs
	if vcpus < 1 {
		vcpus = 1
	}
	rc := arvados.RuntimeConstraints{
		VCPUs:        vcpus,
		RAM:          runner.RAM,
		KeepCacheRAM: (1 << 26) * 2 * int64(vcpus),
	}
	var cr arvados.ContainerRequest
	err = runner.Client.RequestAndDecodeContext(ctx, &cr, "POST", "arvados/v1/container_requests", nil, map[string]interface{}{
		"container_request": map[string]interface{}{
			"owner_uuid":          runner.ProjectUUID,
			"name":                runner.Name,
			"container_image":     "lis-runtime",
			"command":             append([]string{"/mnt/cmd/lis"}, runner.Args...),
			"mounts":              mounts,
			"use_existing":        true,
			"output_path":         "/mnt/output",
			"runtime_constraints": rc,
			"priority":            priority,
			"state":               arvados.ContainerRequestStateCommitted,
			"environment": map[string]string{
				"GOMAXPROCS": fmt.Sprintf("%d", vcpus),
			},
			"container_count_max": 1,
		},
	})
	if err != nil {
		return "", err
	}
	log.Printf("container request UUID: %s", cr.UUID)

	ticker := time.NewTicker(containerPollInterval)
	defer ticker.Stop()
	lastState := cr.State
	logTell := int64(0)
waitcr:
	for cr.State != arvados.ContainerRequestStateFinal {
		select {
		case <-ctx.Done():
			err := runner.Client.RequestAndDecode(&cr, "PATCH", "arvados/v1/container_requests/"+cr.UUID, nil, map[string]interface{}{
				"container_request": map[string]interface{}{
					"priority": 0,
				},
			})
			if err != nil {
				log.Errorf("error while trying to cancel container request %s: %s", cr.UUID, err)
			}
			break waitcr
		case <-ticker.C:
		}
		err := runner.Client.RequestAndDecodeContext(ctx, &cr, "GET", "arvados/v1/container_requests/"+cr.UUID, nil, nil)
		if err != nil {
			log.Printf("error getting container request: %s", err)
			continue
		}
		if lastState != cr.State {
			log.Printf("container request state: %s", cr.State)
			lastState = cr.State
		}
		if cr.ContainerUUID != "" {
			logTell = runner.tailLog(cr, logTell)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var c arvados.Container
	err = runner.Client.RequestAndDecode(&c, "GET", "arvados/v1/containers/"+cr.ContainerUUID, nil, nil)
	if err != nil {
		return "", err
	} else if c.State != arvados.ContainerStateComplete {
		return "", fmt.Errorf("container did not complete: %s", c.State)
	} else if c.ExitCode != 0 {
		return "", fmt.Errorf("container exited %d", c.ExitCode)
	}
	return cr.OutputUUID, nil
}

// tailLog copies new lines of the container's stderr log (starting
// at byte offset tell) to the local log, and returns the new offset.
func (runner *arvadosContainerRunner) tailLog(cr arvados.ContainerRequest, tell int64) int64 {
	req, err := http.NewRequest("GET", "https://"+runner.Client.APIHost+"/arvados/v1/container_requests/"+cr.UUID+"/log/"+cr.ContainerUUID+"/stderr.txt", nil)
	if err != nil {
		log.Errorf("error preparing log request: %s", err)
		return tell
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", tell))
	resp, err := runner.Client.Do(req)
	if err != nil {
		log.Errorf("error getting log data: %s", err)
		return tell
	}
	defer resp.Body.Close()
	if (resp.StatusCode == http.StatusNotFound && tell == 0) ||
		resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return tell
	} else if resp.StatusCode >= 300 {
		log.Errorf("error getting log data: %s", resp.Status)
		return tell
	}
	logdata, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("error reading log data: %s", err)
		return tell
	}
	for {
		eol := bytes.IndexByte(logdata, '\n')
		if eol < 0 {
			return tell
		}
		if eol > 0 {
			log.Print(string(logdata[:eol]))
		}
		logdata = logdata[eol+1:]
		tell += int64(eol + 1)
	}
}

var collectionInPathRe = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)

// TranslatePaths rewrites each path that refers to a file in a
// collection so it refers to the same file inside the container, and
// adds the corresponding collection mounts.
func (runner *arvadosContainerRunner) TranslatePaths(paths ...*string) error {
	if runner.Mounts == nil {
		runner.Mounts = make(map[string]map[string]interface{})
	}
	for _, path := range paths {
		if *path == "" || *path == "-" {
			continue
		}
		m := collectionInPathRe.FindStringSubmatch(*path)
		if m == nil {
			return fmt.Errorf("cannot find uuid in path: %q", *path)
		}
		collID := m[2]
		if _, ok := runner.Mounts["/mnt/"+collID]; !ok {
			mnt := map[string]interface{}{
				"kind": "collection",
			}
			if len(collID) == 27 {
				mnt["uuid"] = collID
			} else {
				mnt["portable_data_hash"] = collID
			}
			runner.Mounts["/mnt/"+collID] = mnt
		}
		*path = "/mnt/" + collID + m[3]
	}
	return nil
}

var mtxMakeCommandCollection sync.Mutex

// makeCommandCollection returns the UUID of a collection containing
// the running executable, creating one if needed.
func (runner *arvadosContainerRunner) makeCommandCollection() (string, error) {
	mtxMakeCommandCollection.Lock()
	defer mtxMakeCommandCollection.Unlock()
	exe, err := os.ReadFile("/proc/self/exe")
	if err != nil {
		return "", err
	}
	b2 := fmt.Sprintf("%x", blake2b.Sum256(exe))
	cname := "lis " + cmd.Version.String()
	var existing arvados.CollectionList
	err = runner.Client.RequestAndDecode(&existing, "GET", "arvados/v1/collections", nil, arvados.ListOptions{
		Limit: 1,
		Count: "none",
		Filters: []arvados.Filter{
			{Attr: "name", Operator: "=", Operand: cname},
			{Attr: "owner_uuid", Operator: "=", Operand: runner.ProjectUUID},
			{Attr: "properties.blake2b", Operator: "=", Operand: b2},
		},
	})
	if err != nil {
		return "", err
	}
	if len(existing.Items) > 0 {
		log.Printf("using lis binary in existing collection %s", existing.Items[0].UUID)
		return existing.Items[0].UUID, nil
	}
	log.Printf("writing lis binary to new collection %q", cname)
	ac, err := arvadosclient.New(runner.Client)
	if err != nil {
		return "", err
	}
	var coll arvados.Collection
	fs, err := coll.FileSystem(runner.Client, keepclient.New(ac))
	if err != nil {
		return "", err
	}
	f, err := fs.OpenFile("lis", os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		return "", err
	}
	_, err = f.Write(exe)
	if err != nil {
		return "", err
	}
	err = f.Close()
	if err != nil {
		return "", err
	}
	mtxt, err := fs.MarshalManifest(".")
	if err != nil {
		return "", err
	}
	err = runner.Client.RequestAndDecode(&coll, "POST", "arvados/v1/collections", nil, map[string]interface{}{
		"collection": map[string]interface{}{
			"owner_uuid":    runner.ProjectUUID,
			"manifest_text": mtxt,
			"name":          cname,
			"properties": map[string]interface{}{
				"blake2b": b2,
			},
		},
	})
	if err != nil {
		return "", err
	}
	log.Printf("stored lis binary in new collection %s", coll.UUID)
	return coll.UUID, nil
}

// zopen returns a reader for the given file, using the arvados API
// instead of arv-mount/fuse where applicable, and transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

var (
	siteFS    arvados.CustomFileSystem
	siteFSMtx sync.Mutex
)

func open(fnm string) (io.ReadCloser, error) {
	if os.Getenv("ARVADOS_API_HOST") == "" {
		return os.Open(fnm)
	}
	m := collectionInPathRe.FindStringSubmatch(fnm)
	if m == nil {
		return os.Open(fnm)
	}
	collectionUUID := m[2]
	collectionPath := m[3]

	siteFSMtx.Lock()
	defer siteFSMtx.Unlock()
	if siteFS == nil {
		log.Info("setting up Arvados client")
		client := arvados.NewClientFromEnv()
		ac, err := arvadosclient.New(client)
		if err != nil {
			return nil, err
		}
		ac.Client = arvados.DefaultSecureClient
		kc := keepclient.New(ac)
		// Don't use keepclient's default short timeouts.
		kc.HTTPClient = arvados.DefaultSecureClient
		siteFS = client.SiteFileSystem(kc)
	}
	log.Infof("reading %q from %s using Arvados client", collectionPath, collectionUUID)
	return siteFS.Open("by_id/" + collectionUUID + collectionPath)
}
