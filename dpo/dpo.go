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

// Package dpo models the data-path object: an opaque, reference-counted
// tagged handle representing a forwarding action. The path subsystem
// treats a DPO purely as a value with Set/Copy/Reset/IsValid semantics;
// it never inspects what a Lookup or Receive DPO actually does at
// forwarding time, since the data plane is out of scope for this module.
package dpo

import "fmt"

// Proto is the address family a DPO (or the path that stacks it) is
// acting on. Kept distinct from net/netip's address kinds because MPLS
// needs a slot here. There is no Ethernet or "no address family" value;
// the Ethernet chain is a ChainType only.
type Proto int

const (
	IP4 Proto = iota
	IP6
	MPLS
)

func (p Proto) String() string {
	switch p {
	case IP4:
		return "ip4"
	case IP6:
		return "ip6"
	case MPLS:
		return "mpls"
	default:
		return "unknown-proto"
	}
}

// ChainType is the forwarding profile a caller requests of
// ContributeForwarding: the native chain for a path's own nh_proto, or
// a foreign one when a multi-protocol parent (e.g. a BIER or MPLS
// imposition path-list) needs a non-native rewrite.
type ChainType int

const (
	ChainIP4 ChainType = iota
	ChainIP6
	ChainMPLSEOS
	ChainMPLSNonEOS
	ChainEthernet
)

// NativeChain returns the chain type a path of the given nh_proto
// contributes by default.
func NativeChain(p Proto) ChainType {
	switch p {
	case IP4:
		return ChainIP4
	case IP6:
		return ChainIP6
	case MPLS:
		return ChainMPLSNonEOS
	default:
		return ChainIP4
	}
}

// Type tags the kind of forwarding action a DPO represents.
type Type int

const (
	// TypeNone is the zero value: an unset, invalid DPO.
	TypeNone Type = iota
	TypeDrop
	TypeAdjacency
	TypeAdjacencyGlean
	TypeLookup
	TypeReceive
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeDrop:
		return "drop"
	case TypeAdjacency:
		return "adjacency"
	case TypeAdjacencyGlean:
		return "adjacency-glean"
	case TypeLookup:
		return "lookup"
	case TypeReceive:
		return "receive"
	default:
		return "unknown-type"
	}
}

// ID is the 3-tuple identity of a DPO: what kind of action, for which
// protocol, at which index into whatever table that (Type, Proto) pair
// addresses (an adjacency index, a receive-address index, ...). It is
// a plain value, copied freely; the reference counting a DPO needs is
// kept out-of-band in a Registry and only touched via Set/Copy/Reset.
type ID struct {
	Type  Type
	Proto Proto
	Index uint32
}

// IsValid reports whether id names a real forwarding action.
func (id ID) IsValid() bool {
	return id.Type != TypeNone
}

// IsAdj reports whether id is backed by an adjacency (of either
// sub-type). GetAdj on the path layer only succeeds for these.
func (id ID) IsAdj() bool {
	return id.Type == TypeAdjacency || id.Type == TypeAdjacencyGlean
}

func (id ID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s:%s:%d", id.Type, id.Proto, id.Index)
}

type key struct {
	t Type
	p Proto
	i uint32
}

// Registry tracks the lock count behind each live ID and preallocates
// the per-protocol drop singletons every permanent-drop path stacks.
// It has no notion of paths, adjacencies, or entries — those are the
// caller's business; the registry only knows how many live copies of
// a given (Type, Proto, Index) exist.
type Registry struct {
	counts map[key]int32
	drop   map[Proto]ID
	lookup map[Proto]uint32 // per-protocol index counter; allocated but not read by any method
}

// NewRegistry preallocates the drop DPO for every protocol, matching
// invariant 2 of the path spec: a permanent-drop path always has a
// valid drop DPO of its own nh_proto.
func NewRegistry() *Registry {
	r := &Registry{
		counts: make(map[key]int32),
		drop:   make(map[Proto]ID),
		lookup: make(map[Proto]uint32),
	}
	for _, p := range []Proto{IP4, IP6, MPLS} {
		id := ID{Type: TypeDrop, Proto: p, Index: 0}
		r.drop[p] = id
		r.lock(id)
	}
	return r
}

// Drop returns the singleton drop DPO for the given protocol.
func (r *Registry) Drop(p Proto) ID {
	return r.drop[p]
}

func (r *Registry) lock(id ID) {
	if !id.IsValid() {
		return
	}
	r.counts[key{id.Type, id.Proto, id.Index}]++
}

func (r *Registry) unlock(id ID) {
	if !id.IsValid() {
		return
	}
	k := key{id.Type, id.Proto, id.Index}
	if r.counts[k] > 0 {
		r.counts[k]--
	}
	if r.counts[k] == 0 {
		delete(r.counts, k)
	}
}

// Count returns the current lock count of id, for tests that assert
// reference counts return to their pre-resolve values after destroy.
func (r *Registry) Count(id ID) int32 {
	return r.counts[key{id.Type, id.Proto, id.Index}]
}

// Set stacks a freshly-minted DPO into out, releasing whatever out held
// before and locking the new value. path.Resolve uses it for every kind
// that mints its own DPO (drop, adjacency, glean, lookup, receive);
// Recursive and Exclusive stack theirs with Copy.
func (r *Registry) Set(out *ID, t Type, proto Proto, index uint32) {
	r.Reset(out)
	*out = ID{Type: t, Proto: proto, Index: index}
	r.lock(*out)
}

// Copy locks src and stores it into dst, releasing dst's previous value.
// Used for the Recursive and Exclusive kinds, which stack a DPO handed
// to them by a collaborator rather than minting one themselves.
func (r *Registry) Copy(dst *ID, src ID) {
	r.Reset(dst)
	*dst = src
	r.lock(*dst)
}

// Reset releases dst's current value (if any) and zeroes it.
func (r *Registry) Reset(dst *ID) {
	r.unlock(*dst)
	*dst = ID{}
}
