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

package path_test

import (
	"testing"

	"github.com/vrouter/fibpath/adj"
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/fibtable"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
	"github.com/vrouter/fibpath/lbmap"
	"github.com/vrouter/fibpath/path"
)

// harness wires a fresh Pool against fresh, real (not mocked)
// collaborators, exactly the way an engine-wiring step would: adj and
// fibtable's back-walk callbacks point back at pool.BackWalk, and
// fibtable's loop-detect callback points back at pool.PathLoopDetect.
type harness struct {
	t       *testing.T
	Pool    *path.Pool
	DPO     *dpo.Registry
	Adj     *adj.Table
	Tables  *fibtable.Tables
	Ifaces  *iface.Registry
	LB      *lbmap.Sink
	owner   *fakeOwner
}

type fakeOwner struct {
	calls []graph.Ctx
}

func (o *fakeOwner) PathBackWalk(_ path.Index, ctx graph.Ctx) graph.Result {
	o.calls = append(o.calls, ctx)
	return graph.Continue
}

func newHarness(t *testing.T) *harness {
	ifaces := iface.New()
	dpoReg := dpo.NewRegistry()
	adjT := adj.New(ifaces)
	tables := fibtable.New()
	lb := lbmap.New(nil)

	pool := path.NewPool(path.Deps{
		DPO:    dpoReg,
		Adj:    adjT,
		Tables: tables,
		Ifaces: ifaces,
		LB:     lb,
	})

	adjT.SetBackWalkFunc(func(childIndex uint32, ctx graph.Ctx) graph.Result {
		return pool.BackWalk(path.Index(childIndex), ctx)
	})
	tables.SetBackWalkFunc(func(childIndex uint32, ctx graph.Ctx) graph.Result {
		return pool.BackWalk(path.Index(childIndex), ctx)
	})
	tables.SetPathLoopDetectFunc(pool.PathLoopDetect)

	return &harness{
		t:      t,
		Pool:   pool,
		DPO:    dpoReg,
		Adj:    adjT,
		Tables: tables,
		Ifaces: ifaces,
		LB:     lb,
		owner:  &fakeOwner{},
	}
}

// withOwner registers h's recording owner for idx and returns it.
func (h *harness) withOwner(idx path.Index) *fakeOwner {
	h.Pool.RegisterOwner(idx, h.owner)
	return h.owner
}
