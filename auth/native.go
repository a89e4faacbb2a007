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

package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"regexp"
	"strings"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	regNative = regexp.MustCompile(`^\*[0-9A-F]{40}$`)

	// ErrParseUserFile is given when the operator file is malformed.
	ErrParseUserFile = errors.NewKind("error parsing operator file")
	// ErrUnknownPermission happens when an operator's file entry names a
	// permission not defined.
	ErrUnknownPermission = errors.NewKind("unknown permission, %s")
	// ErrDuplicateUser happens when an operator name appears more than
	// once in the same file.
	ErrDuplicateUser = errors.NewKind("duplicate operator, %s")
	// ErrBadPassword is returned by Authenticate on a hash mismatch.
	ErrBadPassword = errors.NewKind("incorrect password for operator %s")
)

// nativeUser holds credentials and permissions for one operator.
type nativeUser struct {
	Name            string
	Password        string
	JSONPermissions []string `json:"Permissions"`
	Permissions     Permission
}

// Allowed checks if the operator has the given permission.
func (u nativeUser) Allowed(p Permission) error {
	if u.Permissions&p == p {
		return nil
	}

	// permissions needed but not granted to the operator
	p2 := (^u.Permissions) & p

	return ErrNotAuthorized.Wrap(ErrNoPermission.New(p2))
}

// NativePassword hashes password the same way the teacher's MySQL
// native-password auth did (sha1(sha1(password))); there is no wire
// protocol to match here, but the double-hash-and-never-store-plaintext
// shape is worth keeping for an operator credential file that may sit
// on disk.
func NativePassword(password string) string {
	if len(password) == 0 {
		return ""
	}

	hash := sha1.New()
	hash.Write([]byte(password))
	s1 := hash.Sum(nil)

	hash.Reset()
	hash.Write(s1)
	s2 := hash.Sum(nil)

	s := strings.ToUpper(hex.EncodeToString(s2))

	return fmt.Sprintf("*%s", s)
}

// Native is an Auth backed by an in-memory operator credential table.
type Native struct {
	users map[string]nativeUser
}

// NewNativeSingle creates a Native with a single operator.
func NewNativeSingle(name, password string, perm Permission) *Native {
	users := make(map[string]nativeUser)
	users[name] = nativeUser{
		Name:        name,
		Password:    NativePassword(password),
		Permissions: perm,
	}

	return &Native{users}
}

// NewNativeFile creates a Native and loads operators from a JSON file.
func NewNativeFile(file string) (*Native, error) {
	var data []nativeUser

	raw, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, ErrParseUserFile.New(err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrParseUserFile.New(err)
	}

	users := make(map[string]nativeUser)
	for _, u := range data {
		_, ok := users[u.Name]
		if ok {
			return nil, ErrParseUserFile.Wrap(ErrDuplicateUser.New(u.Name))
		}

		if !regNative.MatchString(u.Password) {
			u.Password = NativePassword(u.Password)
		}

		if len(u.JSONPermissions) == 0 {
			u.Permissions = DefaultPermissions
		}

		for _, p := range u.JSONPermissions {
			perm, ok := PermissionNames[strings.ToLower(p)]
			if !ok {
				return nil, ErrParseUserFile.Wrap(ErrUnknownPermission.New(p))
			}

			u.Permissions |= perm
		}

		users[u.Name] = u
	}

	return &Native{users}, nil
}

// Authenticate verifies operator/password against the loaded table,
// the step fibctl takes before any Allowed check — the teacher left
// this to the MySQL wire server's own ValidateHash; a CLI has no
// wire server, so Native does it directly.
func (s *Native) Authenticate(operator, password string) error {
	u, ok := s.users[operator]
	if !ok {
		return ErrNotAuthorized.New()
	}
	if u.Password != NativePassword(password) {
		return ErrBadPassword.New(operator)
	}
	return nil
}

// Allowed implements Auth.
func (s *Native) Allowed(req Request, permission Permission) error {
	u, ok := s.users[req.Operator]
	if !ok {
		return ErrNotAuthorized.Wrap(ErrNoPermission.New(permission))
	}

	return u.Allowed(permission)
}
