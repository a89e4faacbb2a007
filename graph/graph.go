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

// Package graph models the FIB's dependency-graph plumbing shared by
// every node kind: paths, FIB entries, and adjacencies all sit in one
// graph and notify each other upward via back-walks. The package holds
// no node state of its own; it is the vocabulary (reason flags, walk
// context and result, sibling tokens, asserts) that the node packages
// (path, fibtable, adj) use to talk to each other without importing one
// another directly. It defines no node vtable or registry: callbacks
// are installed as plain funcs (adj.Table.SetBackWalkFunc and the like).
package graph

import "fmt"

// BackWalkReason is a bit set describing why an upward notification was
// raised. A single walk may carry more than one reason.
type BackWalkReason uint32

const (
	ReasonInterfaceUp BackWalkReason = 1 << iota
	ReasonInterfaceDown
	ReasonInterfaceDelete
	ReasonAdjUpdate
	ReasonAdjDown
	ReasonEvaluate
)

// Has reports whether r carries every reason in o.
func (r BackWalkReason) Has(o BackWalkReason) bool {
	return r&o == o
}

func (r BackWalkReason) String() string {
	names := []struct {
		flag BackWalkReason
		name string
	}{
		{ReasonInterfaceUp, "interface-up"},
		{ReasonInterfaceDown, "interface-down"},
		{ReasonInterfaceDelete, "interface-delete"},
		{ReasonAdjUpdate, "adj-update"},
		{ReasonAdjDown, "adj-down"},
		{ReasonEvaluate, "evaluate"},
	}

	s := ""
	for _, n := range names {
		if r.Has(n.flag) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Ctx is the payload carried by a back-walk as it climbs the graph.
// TraceID correlates the hops of a single walk in the logs; it is set
// once by the originator and never modified en route.
type Ctx struct {
	Reason  BackWalkReason
	TraceID string
}

// Result is what a node returns after handling a back-walk.
type Result int

const (
	// Continue means the walk completed at this node (whether or not it
	// propagated further); the caller may keep processing siblings.
	Continue Result = iota
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// SiblingToken is the handle a parent (an adjacency or a FIB entry)
// returns from ChildAdd. It is opaque to the child; the only valid use
// is to pass it back to the same parent's ChildRemove. Tokens model
// subscriptions, not ownership: two nodes holding tokens on each other
// form a cycle with nothing to leak, since neither side owns the other.
type SiblingToken uint32

// NoToken is the zero value, used when a path holds no live subscription.
const NoToken SiblingToken = 0

// Assertf panics with a formatted message if cond is false. It stands in
// for the source's debug-build ASSERT(): the conditions it guards are
// programmer errors (an unsupported chain-type request, a back-walk
// delivered to a parentless node kind), never data the caller can cause
// through legitimate use of the API.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Unreachable panics unconditionally, as a trap for a "last reference
// released" event on a node kind that is never shared. No package in
// this module calls it: there is no LastLock callback to attach it to.
func Unreachable(what string) {
	panic(fmt.Sprintf("%s: last_lock is unreachable for a node kind that is never shared", what))
}
