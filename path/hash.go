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
	"github.com/mitchellh/hashstructure"

	"github.com/vrouter/fibpath/dpo"
	"github.com/vrouter/fibpath/graph"
	"github.com/vrouter/fibpath/iface"
)

// hashConfig is the configuration half, flattened for hashstructure.
// Only the fields relevant to a path's Kind are ever populated; the
// zero value of an irrelevant field never leaks information because
// Kind is itself part of the hash.
type hashConfig struct {
	Kind     Kind
	NHProto  dpo.Proto
	CfgFlags CfgFlags
	Addr     string
	Label    uint32
	UseLabel bool
	TableID  uint32
	Iface    iface.Index
	DPOType  int
	DPOProto int
	DPOIndex uint32
}

// Hash returns a stable content hash over idx's configuration half
// only — weight is excluded, matching spec (weight identifies a path
// to an API request, not a path-list deduplication key).
func (p *Pool) Hash(idx Index) uint64 {
	pth := p.mustGet(idx)
	cfg := hashConfig{Kind: pth.kind, NHProto: pth.nhProto, CfgFlags: pth.cfgFlags}
	switch v := pth.payload.(type) {
	case *attachedNextHopPayload:
		cfg.Addr, cfg.Iface = v.addr, v.iface
	case *attachedPayload:
		cfg.Iface = v.iface
	case *recursivePayload:
		cfg.Addr, cfg.Label, cfg.UseLabel, cfg.TableID = v.addr, v.label, v.useLabel, v.tableID
	case *deagPayload:
		cfg.TableID = v.tableID
	case *receivePayload:
		cfg.Iface, cfg.Addr = v.iface, v.localAddr
	case *exclusivePayload:
		cfg.DPOType, cfg.DPOProto, cfg.DPOIndex = int(v.dpo.Type), int(v.dpo.Proto), v.dpo.Index
	}
	h, err := hashstructure.Hash(cfg, nil)
	graph.Assertf(err == nil, "path: hash of index %d failed: %v", idx, err)
	return h
}

// Cmp returns 0 iff a and b have matching kind, nh_proto, and per-kind
// payload (weight excluded); otherwise a total order over kind, then
// nh_proto, then per-kind fields.
func (p *Pool) Cmp(a, b Index) int {
	return p.compareConfig(a, b)
}

// CmpForSort orders two paths for display, using the interface-compare
// oracle for any interface fields. It agrees with Cmp on equality.
func (p *Pool) CmpForSort(a, b Index) int {
	return p.compareConfig(a, b)
}

// CmpWithRoutePath compares an already-resolved path against a live,
// not-yet-applied route-path update: the original's
// fib_path_cmp_w_route_path(path_index, rpath) lets a path-list decide
// whether an incoming update matches idx except for weight, so it can
// restack idx in place instead of allocating a second path. rp is run
// through the same kind derivation Create uses (against idx's own
// nh_proto and cfg_flags, since an update never changes either), then
// compared field-for-field, with weight folded in last.
func (p *Pool) CmpWithRoutePath(idx Index, rp RoutePath) int {
	pa := p.mustGet(idx)
	rpKind, rpPayload := deriveKindAndPayload(pa.nhProto, pa.cfgFlags, rp)

	if pa.kind != rpKind {
		return cmpInt(int(pa.kind), int(rpKind))
	}
	if c := comparePayload(pa.payload, rpPayload); c != 0 {
		return c
	}

	weight := rp.Weight
	if weight == 0 {
		weight = 1
	}
	switch {
	case pa.weight < weight:
		return -1
	case pa.weight > weight:
		return 1
	default:
		return 0
	}
}

func (p *Pool) compareConfig(a, b Index) int {
	pa, pb := p.mustGet(a), p.mustGet(b)
	if pa.kind != pb.kind {
		return cmpInt(int(pa.kind), int(pb.kind))
	}
	if pa.nhProto != pb.nhProto {
		return cmpInt(int(pa.nhProto), int(pb.nhProto))
	}
	return comparePayload(pa.payload, pb.payload)
}

// comparePayload compares two same-kind payloads field-for-field. The
// type switch is exhaustive over every payload struct construct.go's
// deriveKindAndPayload can produce.
func comparePayload(pa, pb interface{}) int {
	switch va := pa.(type) {
	case *attachedNextHopPayload:
		vb := pb.(*attachedNextHopPayload)
		if c := iface.Compare(va.iface, vb.iface); c != 0 {
			return c
		}
		return cmpString(va.addr, vb.addr)
	case *attachedPayload:
		vb := pb.(*attachedPayload)
		return iface.Compare(va.iface, vb.iface)
	case *recursivePayload:
		vb := pb.(*recursivePayload)
		if va.tableID != vb.tableID {
			return cmpUint32(va.tableID, vb.tableID)
		}
		if va.useLabel {
			return cmpUint32(va.label, vb.label)
		}
		return cmpString(va.addr, vb.addr)
	case *deagPayload:
		vb := pb.(*deagPayload)
		return cmpUint32(va.tableID, vb.tableID)
	case *receivePayload:
		vb := pb.(*receivePayload)
		if c := iface.Compare(va.iface, vb.iface); c != 0 {
			return c
		}
		return cmpString(va.localAddr, vb.localAddr)
	case *exclusivePayload:
		vb := pb.(*exclusivePayload)
		if va.dpo.Type != vb.dpo.Type {
			return cmpInt(int(va.dpo.Type), int(vb.dpo.Type))
		}
		if va.dpo.Proto != vb.dpo.Proto {
			return cmpInt(int(va.dpo.Proto), int(vb.dpo.Proto))
		}
		return cmpUint32(va.dpo.Index, vb.dpo.Index)
	default: // *specialPayload
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
