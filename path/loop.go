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

import "github.com/vrouter/fibpath/dpo"

// RecursiveLoopDetect is spec §4.5: visitedEntries accumulates FIB
// entry indices seen on the current forward walk from some root. Only
// Recursive paths can participate in a cycle; every other kind is a
// leaf and always returns false. Edges are never removed when a loop
// forms — only the contribution is neutralized, so breaking the cycle
// later and delivering EVALUATE restores forwarding.
func (p *Pool) RecursiveLoopDetect(idx Index, visitedEntries []uint32) bool {
	pth := p.mustGet(idx)
	if pth.kind != KindRecursive || !pth.hasViaFIB {
		return false
	}

	looped := false
	for _, e := range visitedEntries {
		if e == pth.viaFIB {
			looped = true
			break
		}
	}
	if !looped {
		looped = p.deps.Tables.RecursiveLoopDetect(pth.viaFIB, visitedEntries)
	}

	pth = p.mustGet(idx)
	if looped {
		pth.operFlags |= OperRecursiveLoop
		p.deps.DPO.Set(&pth.contributedDPO, dpo.TypeDrop, pth.nhProto, 0)
		pth.operFlags &^= OperResolved
	} else {
		pth.operFlags &^= OperRecursiveLoop
	}
	return looped
}

// PathLoopDetect adapts RecursiveLoopDetect to fibtable.PathLoopDetectFunc's
// signature, so an engine-wiring step can install it with
// Tables.SetPathLoopDetectFunc without fibtable importing this package.
func (p *Pool) PathLoopDetect(pathIndex uint32, visited []uint32) bool {
	return p.RecursiveLoopDetect(Index(pathIndex), visited)
}
