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

// Package fibtable is a minimal FIB table/entry collaborator: a prefix
// keyed by table id holds a set of sources and, optionally, a resolved
// chain contributed by whichever non-RR source is present. It exists so
// a Recursive path's resolution target is real state instead of a mock:
// EntrySpecialAdd/EntrySpecialRemove are exactly the host-route pin a
// recursive path synthesizes and tears down.
package fibtable

import (
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
)

// Source is a FIB source, ordered by priority. SourceRR MUST remain the
// last (highest-ordinal, lowest-priority) constant: the path layer's
// RESOLVE_HOST check relies on "best source >= SourceRR" meaning "RR is
// the only source present".
type Source int

const (
	SourceAPI Source = iota
	SourceStatic
	SourceConnected
	// SourceRR is the lowest-priority source, used to pin a recursive
	// path's dependency on a host route without itself contributing
	// forwarding when any other source is present.
	SourceRR
)

// Flags describes entry-level attributes independent of any one source.
type Flags uint32

const (
	// FlagAttached marks an entry as covering a directly-connected
	// subnet. RESOLVE_ATTACHED paths require this on their via-entry.
	FlagAttached Flags = 1 << iota
)

// Prefix identifies a route within a table: either an IP prefix string
// (e.g. "10.0.0.2/32") or an MPLS local label rendered as a string by
// the caller. The table treats it as an opaque key.
type Prefix string

// BackWalkFunc delivers a back-walk to a subscribed child (a path
// index). Installed by whoever wires the engine together; this package
// never imports the path package.
type BackWalkFunc func(childIndex uint32, ctx graph.Ctx) graph.Result

type entry struct {
	index    uint32
	tableID  uint32
	prefix   Prefix
	sources  map[Source]bool
	flags    Flags
	children map[graph.SiblingToken]uint32
	nextTok  graph.SiblingToken

	// forwarding is what a non-RR source contributes; the zero value
	// means no forwarding has been recorded. RESOLVE_HOST does not read
	// this field: it is decided by BestSource.
	forwarding     dpo.ID
	resolvingIface iface.Index

	// backingPath is the path index this entry's forwarding is itself
	// resolved by, when that path is recursive in turn. Only needed to
	// let RecursiveLoopDetect walk through an entry the way a full
	// fib_entry would recurse into its own best path-list.
	backingPath uint32
}

// PathLoopDetectFunc continues a loop-detection walk into a path this
// entry's forwarding is backed by. Installed by whoever wires the
// engine together; this package never imports the path package.
type PathLoopDetectFunc func(pathIndex uint32, visited []uint32) bool

// Tables is the FIB table set, keyed by table id then prefix.
type Tables struct {
	byID           map[uint32]map[Prefix]*entry
	byIndex        map[uint32]*entry
	nextIdx        uint32
	backWalk       BackWalkFunc
	pathLoopDetect PathLoopDetectFunc
	traceID        func() string
}

// New returns an empty table set.
func New() *Tables {
	return &Tables{
		byID:    make(map[uint32]map[Prefix]*entry),
		byIndex: make(map[uint32]*entry),
	}
}

// SetBackWalkFunc installs the callback used to deliver EVALUATE
// back-walks to paths recursing through an entry whose forwarding
// changed.
func (t *Tables) SetBackWalkFunc(fn BackWalkFunc) {
	t.backWalk = fn
}

// SetTraceIDFunc installs the correlation-id generator stamped onto
// every graph.Ctx this table set originates.
func (t *Tables) SetTraceIDFunc(fn func() string) {
	t.traceID = fn
}

// SetPathLoopDetectFunc installs the callback RecursiveLoopDetect uses
// to continue a walk into the path backing entryIdx's forwarding, when
// one has been recorded via SetBackingPath.
func (t *Tables) SetPathLoopDetectFunc(fn PathLoopDetectFunc) {
	t.pathLoopDetect = fn
}

// SetBackingPath records that entryIdx's forwarding is itself resolved
// by the recursive path at pathIndex, so RecursiveLoopDetect can follow
// the chain. pathIndex == 0 clears it.
func (t *Tables) SetBackingPath(entryIdx uint32, pathIndex uint32) {
	t.mustGet(entryIdx).backingPath = pathIndex
}

// Warm pre-sizes table tableID's prefix map to capacityHint entries.
// Purely an allocation hint for module_init seeding a known namespace
// up front; a table not warmed is created lazily, with no hint, on its
// first EntrySpecialAdd.
func (t *Tables) Warm(tableID uint32, capacityHint int) {
	if _, ok := t.byID[tableID]; ok {
		return
	}
	t.byID[tableID] = make(map[Prefix]*entry, capacityHint)
}

func (t *Tables) lookup(tableID uint32, prefix Prefix) *entry {
	m, ok := t.byID[tableID]
	if !ok {
		return nil
	}
	return m[prefix]
}

// EntrySpecialAdd inserts (or finds) the entry for (tableID, prefix) and
// adds source to it, returning its stable index. This is the host-route
// pin a Recursive path synthesizes at resolve time (source == SourceRR)
// but is equally how a test installs the "real" route a recursive path
// resolves through.
func (t *Tables) EntrySpecialAdd(tableID uint32, prefix Prefix, source Source, flags Flags) uint32 {
	m, ok := t.byID[tableID]
	if !ok {
		m = make(map[Prefix]*entry)
		t.byID[tableID] = m
	}
	e, ok := m[prefix]
	if !ok {
		t.nextIdx++
		e = &entry{
			index:    t.nextIdx,
			tableID:  tableID,
			prefix:   prefix,
			sources:  make(map[Source]bool),
			children: make(map[graph.SiblingToken]uint32),
		}
		m[prefix] = e
		t.byIndex[e.index] = e
	}
	e.sources[source] = true
	e.flags |= flags
	return e.index
}

// EntrySpecialRemove removes source from the entry at (tableID, prefix).
// If no sources remain the entry is deleted outright.
func (t *Tables) EntrySpecialRemove(tableID uint32, prefix Prefix, source Source) {
	m, ok := t.byID[tableID]
	if !ok {
		return
	}
	e, ok := m[prefix]
	if !ok {
		return
	}
	delete(e.sources, source)
	if len(e.sources) == 0 {
		delete(m, prefix)
		delete(t.byIndex, e.index)
	}
}

// SetForwarding records what a non-RR source contributes for entryIdx
// and the interface that contribution resolves through, then notifies
// any subscribed children with EVALUATE — modeling the entry's own
// resolution changing underneath a recursive path. A zero dpo.ID models
// an entry with no forwarding; the sources present, not this value,
// decide what RESOLVE_HOST sees (see BestSource).
func (t *Tables) SetForwarding(entryIdx uint32, id dpo.ID, resolvingIface iface.Index) {
	e := t.mustGet(entryIdx)
	e.forwarding = id
	e.resolvingIface = resolvingIface
	t.notify(e)
}

func (t *Tables) notify(e *entry) {
	if t.backWalk == nil {
		return
	}
	var trace string
	if t.traceID != nil {
		trace = t.traceID()
	}
	for _, child := range e.children {
		t.backWalk(child, graph.Ctx{Reason: graph.ReasonEvaluate, TraceID: trace})
	}
}

// ContributeForwarding copies entryIdx's forwarding DPO (ignoring
// chainType: this minimal entry keeps one chain, unlike a full
// fib_entry which maintains one per chain-type) into out.
func (t *Tables) ContributeForwarding(entryIdx uint32, chainType dpo.ChainType, out *dpo.ID) {
	e := t.mustGet(entryIdx)
	*out = e.forwarding
}

// ContributeURPF appends entryIdx's resolving interface to list, for a
// Recursive path's delegated contribute_urpf. A cover with no resolved
// interface contributes nothing.
func (t *Tables) ContributeURPF(entryIdx uint32, list *[]iface.Index) {
	e := t.mustGet(entryIdx)
	if e.resolvingIface != iface.Invalid {
		*list = append(*list, e.resolvingIface)
	}
}

// BestSource returns the highest-priority (lowest-ordinal) source
// currently present on entryIdx.
func (t *Tables) BestSource(entryIdx uint32) Source {
	e := t.mustGet(entryIdx)
	best := SourceRR
	found := false
	for s := range e.sources {
		if !found || s < best {
			best = s
			found = true
		}
	}
	return best
}

// Flags returns entryIdx's entry-level flags.
func (t *Tables) Flags(entryIdx uint32) Flags {
	return t.mustGet(entryIdx).flags
}

// ResolvingInterface returns the interface entryIdx's forwarding
// resolves through, for a Recursive path's delegated
// get_resolving_interface.
func (t *Tables) ResolvingInterface(entryIdx uint32) iface.Index {
	return t.mustGet(entryIdx).resolvingIface
}

// ChildAdd subscribes childIndex (a path index) to entryIdx.
func (t *Tables) ChildAdd(entryIdx uint32, childIndex uint32) graph.SiblingToken {
	e := t.mustGet(entryIdx)
	e.nextTok++
	tok := e.nextTok
	e.children[tok] = childIndex
	return tok
}

// ChildRemove releases a subscription previously returned by ChildAdd.
func (t *Tables) ChildRemove(entryIdx uint32, tok graph.SiblingToken) {
	e, ok := t.byIndex[entryIdx]
	if !ok {
		return
	}
	delete(e.children, tok)
}

// RecursiveLoopDetect is the entry-side half of spec.md's loop
// detector: entryIdx is a cycle if it already appears in visited;
// otherwise, if a backing path has been recorded (SetBackingPath), the
// walk continues into that path's own RecursiveLoopDetect with entryIdx
// appended to the accumulator, exactly as a full fib_entry would recurse
// into its own best path-list.
func (t *Tables) RecursiveLoopDetect(entryIdx uint32, visited []uint32) bool {
	for _, v := range visited {
		if v == entryIdx {
			return true
		}
	}
	e := t.mustGet(entryIdx)
	if e.backingPath == 0 || t.pathLoopDetect == nil {
		return false
	}
	next := make([]uint32, len(visited), len(visited)+1)
	copy(next, visited)
	next = append(next, entryIdx)
	return t.pathLoopDetect(e.backingPath, next)
}

func (t *Tables) mustGet(entryIdx uint32) *entry {
	e, ok := t.byIndex[entryIdx]
	graph.Assertf(ok, "fibtable: unknown entry index %d", entryIdx)
	return e
}
