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

// Package auth gates fibctl's config-mutating admin commands behind an
// operator identity and a permission check, the same shape the
// teacher's MySQL-session auth took but without a wire protocol
// underneath it: there is no client connection here, only a CLI
// invocation, so Request stands in for sql.Context.
package auth

import (
	"strings"

	"gopkg.in/src-d/go-errors.v1"
)

// Permission holds permissions required by an admin command or granted
// to an operator.
type Permission int

const (
	// ReadPerm covers inspection commands ("show fib paths").
	ReadPerm Permission = 1 << iota
	// WritePerm covers commands that mutate engine state ("module-init",
	// any future route/interface admin command).
	WritePerm
)

var (
	// AllPermissions holds every defined permission.
	AllPermissions = ReadPerm | WritePerm
	// DefaultPermissions are granted to an operator whose credential
	// entry doesn't list any explicitly.
	DefaultPermissions = ReadPerm

	// PermissionNames translates between human and machine
	// representations, for config-file and flag parsing.
	PermissionNames = map[string]Permission{
		"read":  ReadPerm,
		"write": WritePerm,
	}

	// ErrNotAuthorized is returned when the operator lacks a permission
	// a command requires.
	ErrNotAuthorized = errors.NewKind("not authorized")
	// ErrNoPermission describes which permission was missing.
	ErrNoPermission = errors.NewKind("operator does not have permission: %s")
)

// String renders the permissions set to on, comma-separated.
func (p Permission) String() string {
	var str []string
	for k, v := range PermissionNames {
		if p&v != 0 {
			str = append(str, k)
		}
	}
	return strings.Join(str, ", ")
}

// Request describes one fibctl invocation an Auth checks: who is
// running it, from where, and which command they asked for. It is the
// CLI analogue of the teacher's *sql.Context — no session state, no
// transaction, just the facts a permission check or an audit log
// entry needs.
type Request struct {
	Operator string
	Address  string
	Command  string
}

// Auth checks whether an operator's Request satisfies a permission.
type Auth interface {
	// Allowed returns nil if req's operator holds permission, or
	// ErrNotAuthorized (wrapping ErrNoPermission) otherwise.
	Allowed(req Request, permission Permission) error
}
