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

import "github.com/vrouter/fibpath/dpo"

// Create derives a path's Kind from rp and allocates it. The
// derivation, in order:
//
//	iface present, CfgLocal set        -> Receive
//	iface present, no next-hop address -> Attached
//	iface present, next-hop address    -> AttachedNextHop
//	no iface, no next-hop, no table    -> Special
//	no iface, no next-hop, table given -> Deag
//	no iface, next-hop present         -> Recursive
//
// RouteFlagResolveViaHost/RouteFlagResolveViaAttached fold into
// CfgFlags. Weight 0 is normalized to 1 (meaningless otherwise, not
// rejected, for API tolerance per spec).
func (p *Pool) Create(plIndex uint32, nhProto dpo.Proto, cfgFlags CfgFlags, rp RoutePath) Index {
	cfgFlags |= foldRouteFlags(rp.Flags)

	weight := rp.Weight
	if weight == 0 {
		weight = 1
	}

	kind, payload := deriveKindAndPayload(nhProto, cfgFlags, rp)

	pth := p.alloc()
	pth.plIndex = plIndex
	pth.cfgFlags = cfgFlags
	pth.kind = kind
	pth.nhProto = nhProto
	pth.weight = weight
	pth.payload = payload
	return pth.index
}

// deriveKindAndPayload is Create's kind derivation (see doc comment
// above), factored out so Pool.CmpWithRoutePath can run the same
// derivation over a route-path update without allocating a path.
func deriveKindAndPayload(nhProto dpo.Proto, cfgFlags CfgFlags, rp RoutePath) (Kind, interface{}) {
	switch {
	case rp.HasIface && cfgFlags&CfgLocal != 0:
		return KindReceive, &receivePayload{iface: rp.Iface, hasIface: true, localAddr: rp.Addr}
	case rp.HasIface && !rp.hasNextHop(nhProto):
		return KindAttached, &attachedPayload{iface: rp.Iface}
	case rp.HasIface:
		return KindAttachedNextHop, &attachedNextHopPayload{addr: rp.Addr, iface: rp.Iface}
	case !rp.HasIface && !rp.hasNextHop(nhProto) && !rp.HasTableID:
		return KindSpecial, &specialPayload{}
	case !rp.HasIface && !rp.hasNextHop(nhProto):
		return KindDeag, &deagPayload{tableID: rp.TableID}
	default:
		return KindRecursive, &recursivePayload{
			addr:     rp.Addr,
			label:    rp.Label,
			useLabel: nhProto == dpo.MPLS,
			tableID:  rp.TableID,
		}
	}
}

func foldRouteFlags(rf RouteFlags) CfgFlags {
	var cf CfgFlags
	if rf&RouteFlagResolveViaHost != 0 {
		cf |= CfgResolveHost
	}
	if rf&RouteFlagResolveViaAttached != 0 {
		cf |= CfgResolveAttached
	}
	return cf
}

// CreateSpecial constructs a path directly from a caller-supplied DPO
// rather than a route descriptor:
//
//	CfgDrop set  -> Special (the DPO is not consulted)
//	CfgLocal set -> Receive, with unspecified (invalid) interface —
//	                see the construct_special/LOCAL open question
//	                recorded in DESIGN.md
//	otherwise    -> Exclusive, carrying dpoID reference-bumped
func (p *Pool) CreateSpecial(plIndex uint32, nhProto dpo.Proto, cfgFlags CfgFlags, dpoID dpo.ID) Index {
	pth := p.alloc()
	pth.plIndex = plIndex
	pth.cfgFlags = cfgFlags
	pth.nhProto = nhProto
	pth.weight = 1

	switch {
	case cfgFlags&CfgDrop != 0:
		pth.kind = KindSpecial
		pth.payload = &specialPayload{}
	case cfgFlags&CfgLocal != 0:
		pth.kind = KindReceive
		pth.payload = &receivePayload{} // iface left invalid; see DESIGN.md
	default:
		pth.kind = KindExclusive
		var stored dpo.ID
		p.deps.DPO.Copy(&stored, dpoID)
		pth.payload = &exclusivePayload{dpo: stored}
	}
	return pth.index
}

// Copy clones srcIdx's configuration half under newPLIndex, with a
// fully reset (unresolved) derived half. Per invariant, copy(p).hash ==
// p.hash and copy(p).cmp(p) == 0, but the copy starts unresolved: it
// has not yet run Resolve, so it holds no adjacency/entry subscription
// of its own.
func (p *Pool) Copy(srcIdx Index, newPLIndex uint32) Index {
	src := p.mustGet(srcIdx)
	plIndex := newPLIndex
	cfgFlags := src.cfgFlags
	kind := src.kind
	nhProto := src.nhProto
	weight := src.weight
	payload := p.copyPayload(kind, src.payload)

	dst := p.alloc()
	dst.plIndex = plIndex
	dst.cfgFlags = cfgFlags
	dst.kind = kind
	dst.nhProto = nhProto
	dst.weight = weight
	dst.payload = payload
	return dst.index
}

// copyPayload clones a per-kind payload. Exclusive's DPO handle is part
// of the configuration half (spec §3), so the clone takes its own
// reference on the registry rather than aliasing the source's count.
func (p *Pool) copyPayload(kind Kind, src interface{}) interface{} {
	switch kind {
	case KindAttachedNextHop:
		v := *src.(*attachedNextHopPayload)
		return &v
	case KindAttached:
		v := *src.(*attachedPayload)
		return &v
	case KindRecursive:
		v := *src.(*recursivePayload)
		return &v
	case KindDeag:
		v := *src.(*deagPayload)
		return &v
	case KindReceive:
		v := *src.(*receivePayload)
		return &v
	case KindExclusive:
		var stored dpo.ID
		p.deps.DPO.Copy(&stored, src.(*exclusivePayload).dpo)
		return &exclusivePayload{dpo: stored}
	default:
		return &specialPayload{}
	}
}

// Destroy unresolves idx (releasing every adjacency/entry subscription
// and DPO reference acquired by prior resolves) and returns the pool
// slot.
func (p *Pool) Destroy(idx Index) {
	p.Unresolve(idx)
	p.release(idx)
}
