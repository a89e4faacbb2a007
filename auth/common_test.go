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

package auth_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrouter/fibpath/auth"
)

type authenticationTest struct {
	operator string
	password string
	success  bool
}

// nativeAuthenticator is satisfied by auth.Native; kept as an
// interface so testAuthentication doesn't need to know about any
// other Auth's authentication step (None has none).
type nativeAuthenticator interface {
	Authenticate(operator, password string) error
}

func testAuthentication(t *testing.T, a nativeAuthenticator, tests []authenticationTest) {
	t.Helper()

	for _, c := range tests {
		t.Run(fmt.Sprintf("%s-%s", c.operator, c.password), func(t *testing.T) {
			err := a.Authenticate(c.operator, c.password)
			if c.success {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

var permissions = map[string]auth.Permission{
	"show":        auth.ReadPerm,
	"module-init": auth.WritePerm,
}

type authorizationTest struct {
	operator string
	command  string
	success  bool
}

func testAuthorization(t *testing.T, a auth.Auth, tests []authorizationTest) {
	t.Helper()

	for i, c := range tests {
		t.Run(fmt.Sprintf("%s-%s", c.operator, c.command), func(t *testing.T) {
			req := auth.Request{Operator: c.operator, Address: "127.0.0.1", Command: c.command}
			err := a.Allowed(req, permissions[c.command])

			if c.success {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			require.True(t, auth.ErrNotAuthorized.Is(err), "test %d: %v", i, err)
		})
	}
}
