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

// Package lbmap is the terminal sink a Recursive path reports a
// resolution-constraint flip to. A real load-balance map would restack
// a bucket's DPO in place; this module's lbmap only needs to prove the
// notification reached the right leaf, so it records the sequence of
// (path, dpo) pairs it was told about.
package lbmap

import (
	"github.com/sirupsen/logrus"

	"github.com/vrouter/fibpath/dpo"
)

// Sink is a minimal load-balance map: PathStateChange is called when a
// Recursive path's RESOLVE_HOST or RESOLVE_ATTACHED constraint blocks
// its via-entry and the path restacks onto drop. Other restacks do not
// reach the sink. Here that step is just bookkeeping plus a log line.
type Sink struct {
	log     *logrus.Entry
	changes []Change
}

// Change records one call to PathStateChange, in order.
type Change struct {
	PathIndex uint32
	DPO       dpo.ID
}

// New returns an empty sink. A nil logger falls back to logrus's
// standard logger, matching the rest of this module's logging
// convention.
func New(log *logrus.Entry) *Sink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sink{log: log.WithField("component", "lbmap")}
}

// PathStateChange records that pathIndex now contributes id. The path
// package calls it from a Recursive path's restack when a resolution
// constraint leaves the path contributing drop.
func (s *Sink) PathStateChange(pathIndex uint32, id dpo.ID) {
	s.changes = append(s.changes, Change{PathIndex: pathIndex, DPO: id})
	s.log.WithFields(logrus.Fields{
		"path": pathIndex,
		"dpo":  id.String(),
	}).Debug("path state change")
}

// Changes returns the recorded change log, oldest first. Tests use
// this to assert a resolve (or back-walk-triggered restack) reached
// the load-balance layer with the expected DPO.
func (s *Sink) Changes() []Change {
	return s.changes
}

// Last returns the most recently recorded change and true, or the zero
// Change and false if none has been recorded yet.
func (s *Sink) Last() (Change, bool) {
	if len(s.changes) == 0 {
		return Change{}, false
	}
	return s.changes[len(s.changes)-1], true
}
