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
	"github.com/opentracing/opentracing-go"

	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/graph"
)

// BackWalk is spec §4.6: react to an upward notification from adj,
// fibtable, or an interface event, update derived state, and decide
// whether to propagate the (unchanged) reason set to the owning
// path-list. Ordering within a single call is local state, then
// restack, then propagate — never reordered.
func (p *Pool) BackWalk(idx Index, ctx graph.Ctx) graph.Result {
	span := opentracing.StartSpan("fibpath.path.backwalk")
	span.SetTag("path.index", uint32(idx))
	span.SetTag("backwalk.reason", ctx.Reason.String())
	if ctx.TraceID != "" {
		span.SetTag("trace_id", ctx.TraceID)
	}
	defer span.Finish()

	pth := p.mustGet(idx)
	propagate := false

	switch pth.kind {
	case KindRecursive:
		propagate = p.backWalkRecursive(idx, ctx)
	case KindAttachedNextHop:
		propagate = p.backWalkAttachedNextHop(idx, ctx)
	case KindAttached:
		propagate = p.backWalkAttached(idx, ctx)
	case KindDeag, KindSpecial, KindReceive, KindExclusive:
		graph.Assertf(false, "path: back-walk delivered to parentless kind %s (index %d)", pth.kind, idx)
	}

	if propagate {
		if owner, ok := p.owners[idx]; ok {
			return owner.PathBackWalk(idx, ctx)
		}
	}
	return graph.Continue
}

func (p *Pool) backWalkRecursive(idx Index, ctx graph.Ctx) bool {
	switch {
	case ctx.Reason.Has(graph.ReasonEvaluate):
		pth := p.mustGet(idx)
		p.recursiveAdjUpdate(idx, dpo.NativeChain(pth.nhProto))
		return true
	case ctx.Reason.Has(graph.ReasonAdjUpdate) || ctx.Reason.Has(graph.ReasonAdjDown):
		// A Recursive path has no adjacency of its own; these reasons
		// are meaningful only to the via-entry's own children, not to
		// this path. Do not climb further.
		return false
	default:
		return true
	}
}

func (p *Pool) backWalkAttachedNextHop(idx Index, ctx graph.Ctx) bool {
	pth := p.mustGet(idx)
	v := pth.payload.(*attachedNextHopPayload)

	switch {
	case ctx.Reason.Has(graph.ReasonInterfaceUp):
		if pth.IsResolved() {
			return false
		}
		pth.operFlags |= OperResolved
		return true
	case ctx.Reason.Has(graph.ReasonInterfaceDown):
		if !pth.IsResolved() {
			return false
		}
		pth.operFlags &^= OperResolved
		return true
	case ctx.Reason.Has(graph.ReasonInterfaceDelete):
		p.markInterfaceDeleted(idx)
		return true
	case ctx.Reason.Has(graph.ReasonAdjUpdate):
		// The adjacency's sub-type (complete/incomplete) may have
		// flipped; its dpo.ID is unaffected (sub-type isn't part of a
		// DPO's identity here), so there is nothing to restack — only
		// the admin-state gate needs re-checking.
		if !p.deps.Ifaces.IsAdminUp(v.iface) {
			pth.operFlags &^= OperResolved
			return false
		}
		pth.operFlags |= OperResolved
		return true
	case ctx.Reason.Has(graph.ReasonAdjDown):
		if !pth.IsResolved() {
			return false
		}
		pth.operFlags &^= OperResolved
		return true
	default:
		return true
	}
}

func (p *Pool) backWalkAttached(idx Index, ctx graph.Ctx) bool {
	pth := p.mustGet(idx)

	switch {
	case ctx.Reason.Has(graph.ReasonInterfaceUp):
		if pth.IsResolved() {
			return false
		}
		pth.operFlags |= OperResolved
		return true
	case ctx.Reason.Has(graph.ReasonInterfaceDown):
		if !pth.IsResolved() {
			return false
		}
		pth.operFlags &^= OperResolved
		return true
	case ctx.Reason.Has(graph.ReasonInterfaceDelete):
		p.markInterfaceDeleted(idx)
		return true
	case ctx.Reason.Has(graph.ReasonAdjDown):
		if !pth.IsResolved() {
			return false
		}
		pth.operFlags &^= OperResolved
		return true
	default:
		// No adjacency re-stack branch, unlike AttachedNextHop: Attached
		// has no next-hop to re-ARP against.
		return true
	}
}
