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

// Package path is the FIB path subsystem: a polymorphic leaf of the FIB
// dependency graph, its per-kind resolution algorithm, and its
// participation in upward back-walk propagation. Paths are addressed
// by pool index, never by pointer — resolution can re-enter (a
// Recursive path's resolve synthesizes a FIB entry, whose own
// resolution logic may allocate further paths), so any reference held
// across a call into a collaborator must be re-fetched afterward.
package path

import (
	"github.com/sirupsen/logrus"

	"github.com/vrouter/fibpath/adj"
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/fibtable"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
	"github.com/vrouter/fibpath/lbmap"
)

// Index identifies a path within a Pool. The zero value is invalid.
type Index uint32

// InvalidIndex is the zero Index: no path.
const InvalidIndex Index = 0

// Kind discriminates a path's per-kind payload. Every switch over Kind
// in this package is exhaustive; adding a kind means updating all of
// them.
type Kind int

const (
	KindAttachedNextHop Kind = iota
	KindAttached
	KindRecursive
	KindSpecial
	KindExclusive
	KindDeag
	KindReceive
)

func (k Kind) String() string {
	switch k {
	case KindAttachedNextHop:
		return "attached-nexthop"
	case KindAttached:
		return "attached"
	case KindRecursive:
		return "recursive"
	case KindSpecial:
		return "special"
	case KindExclusive:
		return "exclusive"
	case KindDeag:
		return "deag"
	case KindReceive:
		return "receive"
	default:
		return "unknown-kind"
	}
}

// CfgFlags is the configuration half's flag set.
type CfgFlags uint32

const (
	// CfgDrop forces a permanent drop regardless of kind.
	CfgDrop CfgFlags = 1 << iota
	// CfgLocal forces construction to pick KindReceive.
	CfgLocal
	// CfgResolveHost restricts Recursive resolution to via-entries that
	// are host routes from a source other than the RR pin itself.
	CfgResolveHost
	// CfgResolveAttached restricts Recursive resolution to via-entries
	// carrying fibtable.FlagAttached.
	CfgResolveAttached
)

// OperFlags is the derived half's flag set — recomputed by resolution,
// never part of a path's hash or comparison.
type OperFlags uint32

const (
	// OperRecursiveLoop is set only on a Recursive path whose via-entry
	// participates in a cycle.
	OperRecursiveLoop OperFlags = 1 << iota
	// OperResolved is one of IsResolved's preconditions; see IsResolved
	// for the others.
	OperResolved
	// OperDrop is the permanent, sticky drop set by interface deletion —
	// distinct from the configuration-half CfgDrop.
	OperDrop
)

// RouteFlags are construction-time flags carried on a RoutePath
// descriptor; Create folds them into CfgFlags.
type RouteFlags uint32

const (
	RouteFlagResolveViaHost RouteFlags = 1 << iota
	RouteFlagResolveViaAttached
)

// RoutePath is the construction descriptor Create derives a path's
// Kind and per-kind payload from. Exactly which fields are meaningful
// depends on which of Iface/Addr/Label/TableID are set; see Create's
// doc comment for the derivation table.
type RoutePath struct {
	Iface    iface.Index
	HasIface bool

	// Addr is the next-hop (or, for Receive, local) address. The zero
	// value means "no address" — the p2p/glean/Special-vs-Deag
	// discriminator depends on this being empty, not on any sentinel
	// string.
	Addr string

	// Label is the MPLS next-hop, used instead of Addr when Proto is
	// dpo.MPLS and HasLabel is true.
	Label    uint32
	HasLabel bool

	TableID    uint32
	HasTableID bool

	Weight uint32
	Flags  RouteFlags
}

func (rp RoutePath) hasNextHop(proto dpo.Proto) bool {
	if proto == dpo.MPLS {
		return rp.HasLabel
	}
	return rp.Addr != ""
}

// attachedNextHopPayload is KindAttachedNextHop's per-kind data.
type attachedNextHopPayload struct {
	addr  string
	iface iface.Index
}

// attachedPayload is KindAttached's per-kind data.
type attachedPayload struct {
	iface iface.Index
}

// recursivePayload is KindRecursive's per-kind data: next-hop address
// or MPLS label (selected by the path's nhProto), plus the table the
// via-route is synthesized in.
type recursivePayload struct {
	addr     string
	label    uint32
	useLabel bool
	tableID  uint32
}

// deagPayload is KindDeag's per-kind data.
type deagPayload struct {
	tableID uint32
}

// receivePayload is KindReceive's per-kind data.
type receivePayload struct {
	iface     iface.Index
	hasIface  bool
	localAddr string
}

// exclusivePayload is KindExclusive's per-kind data: a caller-supplied
// DPO, reference-bumped at construction and released at Destroy.
type exclusivePayload struct {
	dpo dpo.ID
}

// specialPayload is KindSpecial's per-kind data: empty.
type specialPayload struct{}

// Path is one leaf of the FIB dependency graph. Its configuration half
// is PLIndex, CfgFlags, Kind, NHProto, Weight and payload; Hash covers
// Kind, NHProto, CfgFlags and payload, and Cmp covers Kind, NHProto and
// payload, for path-list deduplication. Its derived half (everything
// from OperFlags down) is recomputed by resolution and never copied or
// hashed. See the package doc and spec invariants in path_test.go.
type Path struct {
	index      Index
	generation uint32

	// configuration half
	plIndex  uint32
	cfgFlags CfgFlags
	kind     Kind
	nhProto  dpo.Proto
	weight   uint32
	payload  interface{}

	// derived half
	operFlags      OperFlags
	viaFIB         uint32
	hasViaFIB      bool
	contributedDPO dpo.ID
	siblingToken   graph.SiblingToken
	hasSibling     bool
	adjIndex       adj.Index
	hasAdj         bool

	// lastResolveNanos is a caller-supplied monotonic tick, never
	// time.Now(); it participates in no invariant and is exposed only
	// through LastResolveNanos. fibctl's "show fib paths" does not print it.
	lastResolveNanos uint64
}

// Index returns p's stable pool index.
func (p *Path) Index() Index { return p.index }

// Kind returns p's discriminator.
func (p *Path) Kind() Kind { return p.kind }

// Proto returns p's next-hop address family.
func (p *Path) Proto() dpo.Proto { return p.nhProto }

// Weight returns p's configured weight (never zero; see Create).
func (p *Path) Weight() uint32 { return p.weight }

// PLIndex returns the owning path-list's identity.
func (p *Path) PLIndex() uint32 { return p.plIndex }

// CfgFlags returns p's configuration-half flags.
func (p *Path) CfgFlags() CfgFlags { return p.cfgFlags }

// permanentDrop reports whether p is a sticky drop, from either the
// configuration-half CfgDrop or the derived-half OperDrop (interface
// deletion).
func (p *Path) permanentDrop() bool {
	return p.cfgFlags&CfgDrop != 0 || p.operFlags&OperDrop != 0
}

// IsResolved reports invariant 3: RESOLVED set, not looped, not a
// permanent drop, and the contributed DPO is valid.
func (p *Path) IsResolved() bool {
	return p.operFlags&OperResolved != 0 &&
		p.operFlags&OperRecursiveLoop == 0 &&
		!p.permanentDrop() &&
		p.contributedDPO.IsValid()
}

// IsLooped reports whether RECURSIVE_LOOP is set.
func (p *Path) IsLooped() bool {
	return p.operFlags&OperRecursiveLoop != 0
}

// IsRecursive reports whether p is a Recursive path.
func (p *Path) IsRecursive() bool { return p.kind == KindRecursive }

// IsExclusive reports whether p is an Exclusive path.
func (p *Path) IsExclusive() bool { return p.kind == KindExclusive }

// IsDeag reports whether p is a Deag path.
func (p *Path) IsDeag() bool { return p.kind == KindDeag }

// ContributedDPO returns p's currently-stacked forwarding DPO.
func (p *Path) ContributedDPO() dpo.ID { return p.contributedDPO }

// ViaFIB returns the FIB entry index a Recursive path synthesized, and
// whether one exists (invariant 5: valid iff Recursive and resolved at
// least once since construction).
func (p *Path) ViaFIB() (uint32, bool) { return p.viaFIB, p.hasViaFIB }

// LastResolveNanos returns the caller-supplied tick recorded at the
// most recent resolve, diagnostic-only.
func (p *Path) LastResolveNanos() uint64 { return p.lastResolveNanos }

// Owner is the path-list a Pool of paths belongs to. BackWalk
// propagates to it by direct synchronous call, per spec's "back-walk
// as visitor" design note — never through a language-level exception
// or awaitable.
type Owner interface {
	PathBackWalk(pathIndex Index, ctx graph.Ctx) graph.Result
}

// Deps are the collaborators a Pool resolves paths against. None of
// these packages import path — Adj and Tables are wired with
// SetBackWalkFunc (and Tables additionally with SetPathLoopDetectFunc)
// by whoever constructs the Pool, pointing back at Pool methods.
type Deps struct {
	DPO    *dpo.Registry
	Adj    *adj.Table
	Tables *fibtable.Tables
	Ifaces *iface.Registry
	LB     *lbmap.Sink
	Log    *logrus.Entry
}

type slot struct {
	path       *Path
	generation uint32
	used       bool
}

// Pool is the dense, index-addressed path store. Pointers returned by
// Get must never be held across a call into a collaborator that might
// itself allocate paths (Resolve on a Recursive path, transitively,
// via fibtable) — re-fetch with Get afterward instead.
type Pool struct {
	deps   Deps
	slots  []slot
	free   []Index
	owners map[Index]Owner
}

// NewPool returns an empty pool wired against deps.
func NewPool(deps Deps) *Pool {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		deps:   deps,
		slots:  make([]slot, 1), // slot 0 is never allocated: InvalidIndex
		owners: make(map[Index]Owner),
	}
}

// RegisterOwner associates idx's path-list for back-walk propagation.
func (p *Pool) RegisterOwner(idx Index, owner Owner) {
	p.owners[idx] = owner
}

// Get returns idx's path and true, or nil and false if idx is free or
// out of range. The returned pointer is only valid until the next call
// that may reallocate the pool (Create/CreateSpecial/Copy, or
// transitively Resolve on a Recursive path) — re-Get afterward.
func (p *Pool) Get(idx Index) (*Path, bool) {
	if idx == InvalidIndex || int(idx) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[idx]
	if !s.used {
		return nil, false
	}
	return s.path, true
}

// Indices returns every currently-allocated path index, in slot order.
// Introspection-only, for the "show fib paths" CLI; nothing in
// resolution or back-walk needs to enumerate the pool.
func (p *Pool) Indices() []Index {
	var out []Index
	for i := 1; i < len(p.slots); i++ {
		if p.slots[i].used {
			out = append(out, Index(i))
		}
	}
	return out
}

func (p *Pool) alloc() *Path {
	var idx Index
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.slots = append(p.slots, slot{})
		idx = Index(len(p.slots) - 1)
	}
	s := &p.slots[idx]
	s.generation++
	s.used = true
	s.path = &Path{index: idx, generation: s.generation}
	return s.path
}

func (p *Pool) release(idx Index) {
	if idx == InvalidIndex || int(idx) >= len(p.slots) {
		return
	}
	s := &p.slots[idx]
	s.used = false
	s.path = nil
	delete(p.owners, idx)
	p.free = append(p.free, idx)
}

// mustGet is Get with an assert, for internal callers that already
// hold an index known to be live.
func (p *Pool) mustGet(idx Index) *Path {
	pth, ok := p.Get(idx)
	graph.Assertf(ok, "path: unknown or freed index %d", idx)
	return pth
}
