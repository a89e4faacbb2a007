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

// Package iface is the interface-state oracle the path layer consults:
// admin up/down, the point-to-point predicate, and an ordering used
// when comparing and sorting paths.
package iface

// Index identifies an interface. The zero value, Invalid, means "no
// interface" — used by path kinds that carry none (Recursive, Deag,
// Special) and by the open question in spec.md around what
// create_special with LOCAL leaves fp_interface as.
type Index uint32

// Invalid is the zero Index: no interface.
const Invalid Index = 0

type state struct {
	adminUp bool
	p2p     bool
}

// Registry is the in-memory interface table. It is not safe for
// concurrent use, matching the single-threaded control-plane model the
// rest of this module assumes.
type Registry struct {
	ifaces map[Index]*state
}

// New returns an empty interface registry.
func New() *Registry {
	return &Registry{ifaces: make(map[Index]*state)}
}

// Add registers an interface with its initial admin and p2p state.
func (r *Registry) Add(idx Index, adminUp, p2p bool) {
	r.ifaces[idx] = &state{adminUp: adminUp, p2p: p2p}
}

// IsAdminUp reports the current admin state of idx. An interface this
// registry has never heard of is treated as down.
func (r *Registry) IsAdminUp(idx Index) bool {
	s, ok := r.ifaces[idx]
	return ok && s.adminUp
}

// IsP2P reports whether idx is a point-to-point interface: paths
// attached to one substitute the all-zeros neighbor address instead of
// taking a real ARP/glean adjacency.
func (r *Registry) IsP2P(idx Index) bool {
	s, ok := r.ifaces[idx]
	return ok && s.p2p
}

// SetAdminUp flips the admin state of idx. Callers (typically tests
// simulating a link event) are responsible for then delivering the
// matching back-walk to any path resolved through idx.
func (r *Registry) SetAdminUp(idx Index, up bool) {
	s, ok := r.ifaces[idx]
	if !ok {
		s = &state{}
		r.ifaces[idx] = s
	}
	s.adminUp = up
}

// Delete removes idx from the registry entirely, modeling interface
// deletion. Callers still deliver ReasonInterfaceDelete themselves;
// this only affects subsequent IsAdminUp/IsP2P lookups.
func (r *Registry) Delete(idx Index) {
	delete(r.ifaces, idx)
}

// Compare provides the total order path.CmpForSort needs over
// interface indices. In a full router this would defer to a name- or
// creation-order-based comparison; numeric index order is a faithful
// stand-in since Index already is that order for this registry.
func Compare(a, b Index) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
