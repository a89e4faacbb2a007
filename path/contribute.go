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
	"github.com/vrouter/fibpath/adj"
	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
)

// mplsDefaultTable is the well-known MPLS lookup table a Deag path's
// non-native MPLS-non-EOS chain request is bound against.
const mplsDefaultTable = 0

// ContributeForwarding is spec §4.7: if chainType matches idx's native
// chain (derived from its nh_proto), the cached contributed DPO is
// copied out; otherwise it is synthesized on demand per-kind.
func (p *Pool) ContributeForwarding(idx Index, chainType dpo.ChainType, out *dpo.ID) {
	pth := p.mustGet(idx)

	graph.Assertf(!(chainType == dpo.ChainEthernet && (pth.kind == KindRecursive || pth.kind == KindAttached)),
		"path: ethernet chain unsupported on kind %s (index %d)", pth.kind, idx)

	if chainType == dpo.NativeChain(pth.nhProto) {
		p.deps.DPO.Copy(out, pth.contributedDPO)
		return
	}

	switch v := pth.payload.(type) {
	case *attachedNextHopPayload:
		link := linkTypeForChain(chainType, pth.nhProto)
		addr := v.addr
		if p.deps.Ifaces.IsP2P(v.iface) {
			addr = adj.ZeroAddr
		}
		ai := p.deps.Adj.NbrAddOrLock(pth.nhProto, link, addr, v.iface)
		p.deps.DPO.Set(out, dpo.TypeAdjacency, pth.nhProto, uint32(ai))
		p.deps.Adj.Unlock(ai) // a query, not a standing subscription
	case *recursivePayload:
		p.recursiveAdjUpdate(idx, chainType)
		pth = p.mustGet(idx)
		p.deps.DPO.Copy(out, pth.contributedDPO)
	case *deagPayload:
		if chainType == dpo.ChainMPLSNonEOS {
			p.deps.DPO.Set(out, dpo.TypeLookup, dpo.MPLS, mplsDefaultTable)
		} else {
			p.deps.DPO.Copy(out, pth.contributedDPO)
		}
	case *exclusivePayload:
		p.deps.DPO.Copy(out, v.dpo)
	default:
		graph.Assertf(false, "path: non-native chain %v unsupported on kind %s (index %d)", chainType, pth.kind, idx)
	}
}

func linkTypeForChain(ct dpo.ChainType, fallback dpo.Proto) adj.LinkType {
	switch ct {
	case dpo.ChainIP4:
		return adj.LinkIP4
	case dpo.ChainIP6:
		return adj.LinkIP6
	case dpo.ChainMPLSEOS, dpo.ChainMPLSNonEOS:
		return adj.LinkMPLS
	default:
		return adj.LinkTypeOf(fallback)
	}
}

// ContributeURPF appends idx's admissible ingress interface(s) to
// list, only if idx is currently resolved. Deag and Receive
// contribute nothing.
func (p *Pool) ContributeURPF(idx Index, list *[]iface.Index) {
	pth := p.mustGet(idx)
	if !pth.IsResolved() {
		return
	}
	switch v := pth.payload.(type) {
	case *attachedNextHopPayload:
		*list = append(*list, v.iface)
	case *attachedPayload:
		*list = append(*list, v.iface)
	case *recursivePayload:
		p.deps.Tables.ContributeURPF(pth.viaFIB, list)
	default:
		if pth.kind == KindSpecial || pth.kind == KindExclusive {
			if pth.contributedDPO.IsAdj() {
				*list = append(*list, p.deps.Adj.Iface(adj.Index(pth.contributedDPO.Index)))
			}
		}
	}
}

// NHEntry is one contribution to a multipath hash: the path's weight,
// its own index (for tie-breaking), and a freshly-contributed DPO.
type NHEntry struct {
	PathIndex Index
	Weight    uint32
	DPO       dpo.ID
}

// AppendNHForMultipathHash appends idx's contribution to list, if
// resolved.
func (p *Pool) AppendNHForMultipathHash(idx Index, list *[]NHEntry) {
	pth := p.mustGet(idx)
	if !pth.IsResolved() {
		return
	}
	var out dpo.ID
	p.ContributeForwarding(idx, dpo.NativeChain(pth.nhProto), &out)
	*list = append(*list, NHEntry{PathIndex: idx, Weight: pth.weight, DPO: out})
}

// GetResolvingInterface returns the interface idx's resolution
// currently depends on, and whether it has one at all. Per the
// RESOLVE_HOST/get_resolving_interface open question recorded in
// DESIGN.md, Exclusive never introspects its underlying DPO here and
// always reports "none", matching the spec's stated majority behavior.
func (p *Pool) GetResolvingInterface(idx Index) (iface.Index, bool) {
	pth := p.mustGet(idx)
	switch v := pth.payload.(type) {
	case *attachedNextHopPayload:
		return v.iface, true
	case *attachedPayload:
		return v.iface, true
	case *receivePayload:
		if !v.hasIface {
			return iface.Invalid, false
		}
		return v.iface, true
	case *recursivePayload:
		if !pth.hasViaFIB {
			return iface.Invalid, false
		}
		ifc := p.deps.Tables.ResolvingInterface(pth.viaFIB)
		return ifc, ifc != iface.Invalid
	default:
		return iface.Invalid, false
	}
}

// GetAdj returns the adjacency backing idx's contributed DPO, valid
// only if that DPO is actually adjacency-typed.
func (p *Pool) GetAdj(idx Index) (adj.Index, bool) {
	pth := p.mustGet(idx)
	if !pth.contributedDPO.IsAdj() {
		return adj.Invalid, false
	}
	return adj.Index(pth.contributedDPO.Index), true
}

// Encode emits idx's configuration half as a route-path descriptor,
// the address family it was constructed with, and — only meaningful
// for Exclusive — the DPO it carries.
func (p *Pool) Encode(idx Index) (RoutePath, dpo.Proto, dpo.ID) {
	pth := p.mustGet(idx)
	rp := RoutePath{Weight: pth.weight}
	var exclusiveDPO dpo.ID

	switch v := pth.payload.(type) {
	case *attachedNextHopPayload:
		rp.HasIface, rp.Iface, rp.Addr = true, v.iface, v.addr
	case *attachedPayload:
		rp.HasIface, rp.Iface = true, v.iface
	case *recursivePayload:
		rp.HasTableID, rp.TableID = true, v.tableID
		if v.useLabel {
			rp.HasLabel, rp.Label = true, v.label
		} else {
			rp.Addr = v.addr
		}
	case *deagPayload:
		rp.HasTableID, rp.TableID = true, v.tableID
	case *receivePayload:
		rp.HasIface, rp.Iface, rp.Addr = v.hasIface, v.iface, v.localAddr
	case *exclusivePayload:
		exclusiveDPO = v.dpo
	}

	if pth.cfgFlags&CfgResolveHost != 0 {
		rp.Flags |= RouteFlagResolveViaHost
	}
	if pth.cfgFlags&CfgResolveAttached != 0 {
		rp.Flags |= RouteFlagResolveViaAttached
	}
	return rp, pth.nhProto, exclusiveDPO
}
