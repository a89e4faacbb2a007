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

// Package telemetry builds the one *logrus.Logger every collaborator
// in an Engine is handed a derived *logrus.Entry of, so "one Entry per
// component, one field set per path index" (the pattern path.resolve
// and lbmap.Sink already follow ad hoc) is configured in one place
// instead of each call site picking its own formatter and level.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger at level, writing to stderr in logrus's
// text formatter — the same default the teacher's standalone example
// binaries fall back to when no caller-supplied logger is given.
func New(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Level = level
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return log
}

// Component returns an Entry tagged with name, the root every
// collaborator's own per-call WithFields builds on
// (path.Pool.deps.Log, lbmap.Sink.log, and so on).
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// ForPath narrows entry to one path index, matching the "path"/"kind"
// field pair path/resolve.go already logs with.
func ForPath(entry *logrus.Entry, index uint32, kind string) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"path": index,
		"kind": kind,
	})
}
