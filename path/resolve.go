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

package path

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/vrouter/fibpath/adj"
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/fibtable"
	"github.com/vrouter/fibpath/graph"
)

// Resolve runs idx's per-kind resolution algorithm, restacks its
// contributed DPO, and reports whether it ended up resolved. now is a
// caller-supplied monotonic tick (never time.Now() — see
// Path.LastResolveNanos) recorded for diagnostics only.
//
// Resolve can re-enter: a Recursive path synthesizes a FIB entry,
// which may itself allocate paths through this same Pool. Callers that
// hold a *Path across this call must re-fetch it with Get afterward.
func (p *Pool) Resolve(idx Index, now uint64) bool {
	span := opentracing.StartSpan("fibpath.path.resolve")
	span.SetTag("path.index", uint32(idx))
	defer span.Finish()

	pth := p.mustGet(idx)
	pth.lastResolveNanos = now
	pth.operFlags |= OperResolved
	span.SetTag("path.kind", pth.kind.String())

	if pth.permanentDrop() {
		p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeDrop, pth.nhProto, 0)
		pth.operFlags &^= OperResolved
		return false
	}

	switch pth.kind {
	case KindAttachedNextHop:
		p.resolveAttachedNextHop(idx)
	case KindAttached:
		p.resolveAttached(idx)
	case KindRecursive:
		p.resolveRecursive(idx)
	case KindSpecial:
		p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeDrop, pth.nhProto, 0)
	case KindDeag:
		v := pth.payload.(*deagPayload)
		p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeLookup, pth.nhProto, v.tableID)
	case KindReceive:
		v := pth.payload.(*receivePayload)
		var idx32 uint32
		if v.hasIface {
			idx32 = uint32(v.iface)
		}
		p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeReceive, pth.nhProto, idx32)
	case KindExclusive:
		v := pth.payload.(*exclusivePayload)
		p.deps.DPO.Copy(&pth.contributedDPO, v.dpo)
	}

	pth = p.mustGet(idx)
	return pth.IsResolved()
}

func (p *Pool) resolveAttachedNextHop(idx Index) {
	pth := p.mustGet(idx)
	v := pth.payload.(*attachedNextHopPayload)

	addr := v.addr
	if p.deps.Ifaces.IsP2P(v.iface) {
		addr = adj.ZeroAddr
	}
	ai := p.deps.Adj.NbrAddOrLock(pth.nhProto, adj.LinkTypeOf(pth.nhProto), addr, v.iface)

	pth = p.mustGet(idx)
	p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeAdjacency, pth.nhProto, uint32(ai))
	pth.adjIndex, pth.hasAdj = ai, true
	pth.siblingToken = p.deps.Adj.ChildAdd(ai, uint32(idx))
	pth.hasSibling = true

	if !p.deps.Ifaces.IsAdminUp(v.iface) {
		pth.operFlags &^= OperResolved
	}
}

func (p *Pool) resolveAttached(idx Index) {
	pth := p.mustGet(idx)
	v := pth.payload.(*attachedPayload)

	var ai adj.Index
	var dt dpo.Type
	if p.deps.Ifaces.IsP2P(v.iface) {
		ai = p.deps.Adj.NbrAddOrLock(pth.nhProto, adj.LinkTypeOf(pth.nhProto), adj.ZeroAddr, v.iface)
		dt = dpo.TypeAdjacency
	} else {
		ai = p.deps.Adj.GleanAddOrLock(pth.nhProto, v.iface)
		dt = dpo.TypeAdjacencyGlean
	}

	pth = p.mustGet(idx)
	p.deps.DPO.Set(&pth.contributedDPO, dt, pth.nhProto, uint32(ai))
	pth.adjIndex, pth.hasAdj = ai, true
	pth.siblingToken = p.deps.Adj.ChildAdd(ai, uint32(idx))
	pth.hasSibling = true

	if !p.deps.Ifaces.IsAdminUp(v.iface) {
		pth.operFlags &^= OperResolved
	}
}

func (p *Pool) resolveRecursive(idx Index) {
	pth := p.mustGet(idx)
	v := pth.payload.(*recursivePayload)

	var prefix fibtable.Prefix
	if v.useLabel {
		prefix = fibtable.Prefix(fmt.Sprintf("mpls:%d", v.label))
	} else {
		prefix = fibtable.Prefix(v.addr)
	}
	entryIdx := p.deps.Tables.EntrySpecialAdd(v.tableID, prefix, fibtable.SourceRR, 0)

	pth = p.mustGet(idx)
	pth.viaFIB, pth.hasViaFIB = entryIdx, true
	pth.siblingToken = p.deps.Tables.ChildAdd(entryIdx, uint32(idx))
	pth.hasSibling = true

	p.recursiveAdjUpdate(idx, dpo.NativeChain(pth.nhProto))
}

// recursiveAdjUpdate is spec §4.4.1: restack a Recursive path's
// contributed DPO against its via-entry's current forwarding,
// enforcing RESOLVE_HOST/RESOLVE_ATTACHED and the loop flag.
func (p *Pool) recursiveAdjUpdate(idx Index, chainType dpo.ChainType) {
	pth := p.mustGet(idx)
	graph.Assertf(pth.kind == KindRecursive, "path: recursiveAdjUpdate on non-recursive index %d", idx)
	entryIdx := pth.viaFIB

	var viaDPO dpo.ID
	p.deps.Tables.ContributeForwarding(entryIdx, chainType, &viaDPO)

	pth.operFlags |= OperResolved
	blocked := false
	constraintFlip := false

	switch {
	case pth.operFlags&OperRecursiveLoop != 0:
		// Loop: drop and clear RESOLVED, but this isn't a resolution
		// constraint flip — nothing notifies lbmap for it.
		blocked = true
	case pth.cfgFlags&CfgResolveHost != 0 && p.deps.Tables.BestSource(entryIdx) >= fibtable.SourceRR:
		blocked, constraintFlip = true, true
	case pth.cfgFlags&CfgResolveAttached != 0 && p.deps.Tables.Flags(entryIdx)&fibtable.FlagAttached == 0:
		blocked, constraintFlip = true, true
	}

	if blocked {
		p.deps.DPO.Set(&viaDPO, dpo.TypeDrop, pth.nhProto, 0)
		pth.operFlags &^= OperResolved
		if constraintFlip && p.deps.LB != nil {
			p.deps.LB.PathStateChange(uint32(idx), viaDPO)
		}
	}

	p.deps.DPO.Copy(&pth.contributedDPO, viaDPO)
}

// Unresolve releases the derived parent relationship idx acquired at
// its last Resolve, without destroying the path. Permanent-drop paths
// short-circuit: they own no external relation to release.
func (p *Pool) Unresolve(idx Index) {
	pth := p.mustGet(idx)
	if pth.permanentDrop() && !pth.hasSibling && !pth.hasAdj && !pth.hasViaFIB {
		p.deps.DPO.Reset(&pth.contributedDPO)
		pth.operFlags &^= OperResolved
		return
	}

	switch pth.kind {
	case KindRecursive:
		if pth.hasSibling {
			p.deps.Tables.ChildRemove(pth.viaFIB, pth.siblingToken)
			pth.hasSibling = false
		}
		if pth.hasViaFIB {
			v := pth.payload.(*recursivePayload)
			var prefix fibtable.Prefix
			if v.useLabel {
				prefix = fibtable.Prefix(fmt.Sprintf("mpls:%d", v.label))
			} else {
				prefix = fibtable.Prefix(v.addr)
			}
			p.deps.Tables.EntrySpecialRemove(v.tableID, prefix, fibtable.SourceRR)
			pth.hasViaFIB = false
			pth.viaFIB = 0
		}
	case KindAttachedNextHop, KindAttached:
		if pth.hasSibling {
			p.deps.Adj.ChildRemove(pth.adjIndex, pth.siblingToken)
			pth.hasSibling = false
		}
		if pth.hasAdj {
			p.deps.Adj.Unlock(pth.adjIndex)
			pth.hasAdj = false
		}
	case KindExclusive:
		// The payload's own reference (taken at CreateSpecial/Copy time,
		// distinct from whatever contributedDPO holds once resolved) is
		// released here, so after Unresolve (the first step of Destroy)
		// the payload no longer holds a DPO.
		v := pth.payload.(*exclusivePayload)
		p.deps.DPO.Reset(&v.dpo)
	}

	p.deps.DPO.Reset(&pth.contributedDPO)
	pth.operFlags &^= OperResolved
}

// markInterfaceDeleted implements the INTERFACE_DELETE back-walk:
// unresolve, then mark permanently dropped. Kept distinct from
// Unresolve so OperDrop is only ever set by this one caller.
func (p *Pool) markInterfaceDeleted(idx Index) {
	p.Unresolve(idx)
	pth := p.mustGet(idx)
	pth.operFlags |= OperDrop
	p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeDrop, pth.nhProto, 0)
	p.deps.Log.WithFields(logrus.Fields{
		"path": uint32(idx),
		"kind": pth.kind.String(),
	}).Warn("interface deleted under path, permanently dropped")
}
