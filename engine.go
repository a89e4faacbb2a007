// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fibpath wires the FIB path subsystem's collaborators
// (dpo, adj, fibtable, iface, lbmap) into the path pool that
// resolves and back-walks them — the module_init equivalent spec.md
// §9 describes as a single-owner global pool, here an explicit
// *Engine a caller constructs and holds rather than package-level
// state.
package fibpath

import (
	"github.com/pkg/errors"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/vrouter/fibpath/adj"
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/fibtable"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
	"github.com/vrouter/fibpath/internal/config"
	"github.com/vrouter/fibpath/internal/telemetry"
	"github.com/vrouter/fibpath/lbmap"
	"github.com/vrouter/fibpath/path"
)

// Config controls New's construction of an Engine.
type Config struct {
	// Module is the module_init parameter set. New uses it as given and
	// does not substitute config.Default() for a zero value; a zero
	// Module fails New's rr_source_ordinal check.
	Module config.Config
	// Log is the root logger every collaborator derives a per-entity
	// *logrus.Entry from. A nil Log falls back to a fresh
	// telemetry.New(logrus.InfoLevel) logger.
	Log *logrus.Logger
}

// Engine holds one fully-wired instance of the FIB path subsystem: the
// collaborators spec.md §6 describes as external interfaces, plus the
// path pool resolved and back-walked against them. It owns no
// goroutines and does no locking of its own — see spec.md §5.
type Engine struct {
	Module config.Config

	DPO    *dpo.Registry
	Ifaces *iface.Registry
	Adj    *adj.Table
	Tables *fibtable.Tables
	LB     *lbmap.Sink
	Paths  *path.Pool

	log *logrus.Entry
}

// New constructs an Engine from cfg: fresh collaborators, a path pool
// wired against them, and their back-walk/loop-detect callbacks
// installed to close the loop back into the pool — the same wiring
// path/testutil_test.go's harness uses for tests, just with real
// config behind it.
func New(cfg Config) (*Engine, error) {
	if int(fibtable.SourceRR) != cfg.Module.RRSourceOrdinal {
		return nil, errors.Errorf(
			"fibpath: configured rr_source_ordinal %d does not match the compiled fibtable.SourceRR ordinal %d",
			cfg.Module.RRSourceOrdinal, int(fibtable.SourceRR))
	}

	logger := cfg.Log
	if logger == nil {
		logger = telemetry.New(logrus.InfoLevel)
	}
	entry := telemetry.Component(logger, "fibpath")

	ifaces := iface.New()
	dpoReg := dpo.NewRegistry()
	adjT := adj.New(ifaces)
	tables := fibtable.New()
	lb := lbmap.New(entry)

	for tableID, hint := range cfg.Module.TableNamespaces {
		tables.Warm(tableID, hint)
	}

	pool := path.NewPool(path.Deps{
		DPO:    dpoReg,
		Adj:    adjT,
		Tables: tables,
		Ifaces: ifaces,
		LB:     lb,
		Log:    entry,
	})

	adjT.SetBackWalkFunc(func(childIndex uint32, ctx graph.Ctx) graph.Result {
		return pool.BackWalk(path.Index(childIndex), ctx)
	})
	tables.SetBackWalkFunc(func(childIndex uint32, ctx graph.Ctx) graph.Result {
		return pool.BackWalk(path.Index(childIndex), ctx)
	})
	tables.SetPathLoopDetectFunc(pool.PathLoopDetect)

	// Every back-walk adj or tables originates gets a fresh correlation
	// id, so a single walk's hops can be grepped out of the log by
	// trace_id even though it may fan out across both collaborators.
	adjT.SetTraceIDFunc(newTraceID)
	tables.SetTraceIDFunc(newTraceID)

	entry.WithField("tables_warmed", len(cfg.Module.TableNamespaces)).Info("fib path engine initialized")

	return &Engine{
		Module: cfg.Module,
		DPO:    dpoReg,
		Ifaces: ifaces,
		Adj:    adjT,
		Tables: tables,
		LB:     lb,
		Paths:  pool,
		log:    entry,
	}, nil
}

// NewDefault constructs an Engine from config.Default(), with no
// config-file override — fibctl's no-flags path.
func NewDefault() (*Engine, error) {
	return New(Config{Module: config.Default()})
}

// NewFromFile loads configPath as a YAML module config and constructs
// an Engine from it.
func NewFromFile(configPath string) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return New(Config{Module: cfg})
}

// Close releases whatever the Engine itself doesn't already release
// through garbage collection. Currently a no-op: none of its
// collaborators hold an OS resource that needs explicit teardown; kept
// so a future one (a persistence backend, a socket to the data plane)
// has somewhere to release from without changing every caller.
func (e *Engine) Close() error {
	return nil
}

func newTraceID() string {
	return uuid.NewV4().String()
}
