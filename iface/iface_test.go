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

package iface_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrouter/fibpath/iface"
)

func TestUnknownInterfaceIsDown(t *testing.T) {
	r := iface.New()
	require.False(t, r.IsAdminUp(9))
	require.False(t, r.IsP2P(9))
}

func TestAddAndSetAdminUp(t *testing.T) {
	r := iface.New()
	r.Add(1, true, true)
	require.True(t, r.IsAdminUp(1))
	require.True(t, r.IsP2P(1))

	r.SetAdminUp(1, false)
	require.False(t, r.IsAdminUp(1))
	require.True(t, r.IsP2P(1), "SetAdminUp must not disturb p2p")
}

func TestSetAdminUpOnUnknownInterfaceCreatesIt(t *testing.T) {
	r := iface.New()
	r.SetAdminUp(5, true)
	require.True(t, r.IsAdminUp(5))
	require.False(t, r.IsP2P(5))
}

func TestDeleteRemovesState(t *testing.T) {
	r := iface.New()
	r.Add(1, true, false)
	r.Delete(1)
	require.False(t, r.IsAdminUp(1))
}

func TestCompareOrdersByIndex(t *testing.T) {
	require.Equal(t, -1, iface.Compare(1, 2))
	require.Equal(t, 1, iface.Compare(2, 1))
	require.Equal(t, 0, iface.Compare(2, 2))
}
