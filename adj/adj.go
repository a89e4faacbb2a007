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

// Package adj is the adjacency layer: it interns L2/L3 rewrite objects
// keyed by (protocol, link-type, next-hop, interface), or by
// (protocol, interface) for gleans, and lets paths subscribe to one as
// a child so an ADJ_UPDATE/ADJ_DOWN back-walk reaches them.
package adj

import (
	"fmt"

	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
)

// LinkType is the L2/L3 rewrite profile of an adjacency. It tracks
// dpo.Proto one-for-one for the protocols this module resolves; kept
// distinct because a glean or incomplete adjacency's link type can
// differ from the originating path's nh_proto in a fuller rewrite.
type LinkType int

const (
	LinkIP4 LinkType = iota
	LinkIP6
	LinkMPLS
)

// LinkTypeOf returns the link type a path of protocol p resolves its
// adjacency at — spec.md's "link-type-of(nh_proto)".
func LinkTypeOf(p dpo.Proto) LinkType {
	switch p {
	case dpo.IP4:
		return LinkIP4
	case dpo.IP6:
		return LinkIP6
	case dpo.MPLS:
		return LinkMPLS
	default:
		return LinkIP4
	}
}

// SubType distinguishes a fully resolved neighbor adjacency from one
// still waiting on ARP/ND — the ADJ_UPDATE back-walk reason exists
// precisely so a path can restack when this flips.
type SubType int

const (
	Complete SubType = iota
	Incomplete
)

// Index identifies an adjacency. The zero value is invalid.
type Index uint32

// Invalid is the zero Index.
const Invalid Index = 0

// ZeroAddr is the all-zeros neighbor address substituted for
// point-to-point interfaces: there is no neighbor to ARP for, so the
// subnet route's auto-adjacency is keyed on the zero address instead.
const ZeroAddr = ""

type nbrKey struct {
	proto dpo.Proto
	link  LinkType
	addr  string
	iface iface.Index
}

type gleanKey struct {
	proto dpo.Proto
	iface iface.Index
}

type entry struct {
	index   Index
	nbr     *nbrKey
	glean   *gleanKey
	subType SubType
	iface   iface.Index
	locks   int32
	children map[graph.SiblingToken]uint32
	nextTok  graph.SiblingToken
}

// BackWalkFunc is how the adjacency table reaches the path that
// subscribed to it. It is supplied by whatever wires the engine
// together (see Table.SetBackWalkFunc) rather than imported directly,
// so this package never needs to know about package path.
type BackWalkFunc func(childIndex uint32, ctx graph.Ctx) graph.Result

// Table is the adjacency database.
type Table struct {
	ifaces   *iface.Registry
	byNbr    map[nbrKey]Index
	byGlean  map[gleanKey]Index
	entries  map[Index]*entry
	next     Index
	backWalk BackWalkFunc
	traceID  func() string
}

// New returns an empty adjacency table backed by the given interface
// oracle (used only to decide complete-vs-incomplete at creation time
// is NOT modeled here — sub-type defaults to Complete and tests flip it
// explicitly via SetSubType, matching how VPP adjacencies only become
// incomplete after an ARP miss that this module does not simulate).
func New(ifaces *iface.Registry) *Table {
	return &Table{
		ifaces:  ifaces,
		byNbr:   make(map[nbrKey]Index),
		byGlean: make(map[gleanKey]Index),
		entries: make(map[Index]*entry),
	}
}

// SetBackWalkFunc installs the callback used to deliver ADJ_UPDATE and
// ADJ_DOWN notifications to subscribed children.
func (t *Table) SetBackWalkFunc(fn BackWalkFunc) {
	t.backWalk = fn
}

// SetTraceIDFunc installs the correlation-id generator stamped onto
// every graph.Ctx this table originates. Supplied by whatever wires
// the engine together, same reasoning as SetBackWalkFunc.
func (t *Table) SetTraceIDFunc(fn func() string) {
	t.traceID = fn
}

func (t *Table) alloc() Index {
	t.next++
	return t.next
}

// NbrAddOrLock interns (or locks an existing) neighbor adjacency for
// (proto, link, addr, ifc). addr == ZeroAddr is the point-to-point
// substitution spec.md describes for AttachedNextHop/Attached paths on
// a p2p interface.
func (t *Table) NbrAddOrLock(proto dpo.Proto, link LinkType, addr string, ifc iface.Index) Index {
	k := nbrKey{proto, link, addr, ifc}
	if idx, ok := t.byNbr[k]; ok {
		t.entries[idx].locks++
		return idx
	}
	idx := t.alloc()
	t.byNbr[k] = idx
	t.entries[idx] = &entry{
		index:    idx,
		nbr:      &k,
		subType:  Complete,
		iface:    ifc,
		locks:    1,
		children: make(map[graph.SiblingToken]uint32),
	}
	return idx
}

// GleanAddOrLock interns (or locks an existing) glean adjacency for an
// attached path that knows only its interface.
func (t *Table) GleanAddOrLock(proto dpo.Proto, ifc iface.Index) Index {
	k := gleanKey{proto, ifc}
	if idx, ok := t.byGlean[k]; ok {
		t.entries[idx].locks++
		return idx
	}
	idx := t.alloc()
	t.byGlean[k] = idx
	t.entries[idx] = &entry{
		index:    idx,
		glean:    &k,
		subType:  Complete,
		iface:    ifc,
		locks:    1,
		children: make(map[graph.SiblingToken]uint32),
	}
	return idx
}

// Unlock releases one reference on ai.
func (t *Table) Unlock(ai Index) {
	e, ok := t.entries[ai]
	if !ok {
		return
	}
	e.locks--
	if e.locks <= 0 {
		if e.nbr != nil {
			delete(t.byNbr, *e.nbr)
		}
		if e.glean != nil {
			delete(t.byGlean, *e.glean)
		}
		delete(t.entries, ai)
	}
}

// ChildAdd registers childIndex (a path index) as a dependent of ai and
// returns the token needed to symmetrically unregister it later.
func (t *Table) ChildAdd(ai Index, childIndex uint32) graph.SiblingToken {
	e := t.mustGet(ai)
	e.nextTok++
	tok := e.nextTok
	e.children[tok] = childIndex
	return tok
}

// ChildRemove releases the subscription tok previously returned by
// ChildAdd(ai, ...).
func (t *Table) ChildRemove(ai Index, tok graph.SiblingToken) {
	e, ok := t.entries[ai]
	if !ok {
		return
	}
	delete(e.children, tok)
}

// SubType reports whether ai is currently a complete or incomplete
// adjacency.
func (t *Table) SubType(ai Index) SubType {
	return t.mustGet(ai).subType
}

// SetSubType flips ai's sub-type and, if a back-walk function is
// installed, delivers ADJ_UPDATE to every subscribed child — modeling
// an ARP resolution or a neighbor going incomplete.
func (t *Table) SetSubType(ai Index, st SubType) {
	e := t.mustGet(ai)
	e.subType = st
	t.notify(e, graph.ReasonAdjUpdate)
}

// Down delivers ADJ_DOWN to every child subscribed to ai, modeling the
// adjacency itself (not just its sub-type) becoming unusable.
func (t *Table) Down(ai Index) {
	e := t.mustGet(ai)
	t.notify(e, graph.ReasonAdjDown)
}

func (t *Table) notify(e *entry, reason graph.BackWalkReason) {
	if t.backWalk == nil {
		return
	}
	var trace string
	if t.traceID != nil {
		trace = t.traceID()
	}
	for _, child := range e.children {
		t.backWalk(child, graph.Ctx{Reason: reason, TraceID: trace})
	}
}

// Iface returns the interface ai resolves through.
func (t *Table) Iface(ai Index) iface.Index {
	return t.mustGet(ai).iface
}

func (t *Table) mustGet(ai Index) *entry {
	e, ok := t.entries[ai]
	graph.Assertf(ok, "adj: unknown adjacency index %d", ai)
	return e
}

func (k nbrKey) String() string {
	return fmt.Sprintf("nbr(%v,%v,%q,%d)", k.proto, k.link, k.addr, k.iface)
}
