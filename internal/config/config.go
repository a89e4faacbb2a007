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

// Package config loads the handful of module-wide parameters
// fib_path.c has no equivalent for, because VPP plugin code is
// compiled in rather than configured: the default next-hop chain
// used when a caller doesn't say, the RR source's ordinal, and the
// per-table-id namespace sizes module_init seeds the FIB table
// registry with.
package config

import (
	"io/ioutil"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v2"
)

var (
	// ErrParseFile is given when the config file cannot be read, is
	// malformed YAML, or holds a scalar cast cannot coerce.
	ErrParseFile = errors.NewKind("error parsing fib config file")
	// ErrUnknownChainType happens when default_chain_type names
	// something not in the chainTypeNames table.
	ErrUnknownChainType = errors.NewKind("unknown default chain type, %s")
)

// chainTypeNames mirrors dpo.ChainType's String values without
// importing dpo, keeping config leaf-level in the package graph.
var chainTypeNames = map[string]int{
	"ip4":          0,
	"ip6":          1,
	"mpls-eos":     2,
	"mpls-non-eos": 3,
	"ethernet":     4,
}

// rawConfig is the on-disk shape, tolerant of the loose typing
// operators hand-edit YAML with — cast coerces a quoted "256" the
// same as a bare 256.
type rawConfig struct {
	DefaultChainType string                 `yaml:"default_chain_type"`
	RRSourceOrdinal  interface{}            `yaml:"rr_source_ordinal"`
	TableNamespaces  map[string]interface{} `yaml:"table_namespaces"`
}

// Config is module_init's resolved parameter set.
type Config struct {
	// DefaultChainType is the configured default chain type, stored as
	// the chainTypeNames ordinal. It is loaded and reported by fibctl
	// module-init; the path pool does not read it, and paths resolve
	// against dpo.NativeChain of their own nh_proto.
	DefaultChainType int

	// RRSourceOrdinal is the operator's expectation of fibtable.SourceRR's
	// compiled-in ordinal. fibtable.Source is a fixed enum, not actually
	// runtime-configurable — this field exists so module-init can assert
	// the running binary agrees with the deployed config instead of
	// silently drifting, per the RESOLVE_HOST invariant's "RR is the
	// highest ordinal" requirement.
	RRSourceOrdinal int

	// TableNamespaces maps a FIB table id to the capacity hint
	// module-init passes to fibtable.Tables.Warm when seeding it.
	TableNamespaces map[uint32]int
}

// Default is used when no config file is given to module-init.
func Default() Config {
	return Config{
		DefaultChainType: chainTypeNames["ip4"],
		RRSourceOrdinal:  3, // fibtable.SourceRR's compiled-in ordinal
		TableNamespaces:  map[uint32]int{0: 16},
	}
}

// Load reads and validates a YAML config file at path.
func Load(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, ErrParseFile.Wrap(err)
	}

	var rc rawConfig
	if err := yaml.Unmarshal(raw, &rc); err != nil {
		return Config{}, ErrParseFile.Wrap(err)
	}

	cfg := Default()

	if rc.DefaultChainType != "" {
		ordinal, ok := chainTypeNames[strings.ToLower(rc.DefaultChainType)]
		if !ok {
			return Config{}, ErrUnknownChainType.New(rc.DefaultChainType)
		}
		cfg.DefaultChainType = ordinal
	}

	if rc.RRSourceOrdinal != nil {
		n, err := cast.ToIntE(rc.RRSourceOrdinal)
		if err != nil {
			return Config{}, ErrParseFile.Wrap(err)
		}
		cfg.RRSourceOrdinal = n
	}

	if len(rc.TableNamespaces) > 0 {
		cfg.TableNamespaces = make(map[uint32]int, len(rc.TableNamespaces))
		for key, v := range rc.TableNamespaces {
			tableID, err := cast.ToUint32E(key)
			if err != nil {
				return Config{}, ErrParseFile.Wrap(err)
			}
			n, err := cast.ToIntE(v)
			if err != nil {
				return Config{}, ErrParseFile.Wrap(err)
			}
			cfg.TableNamespaces[tableID] = n
		}
	}

	return cfg, nil
}
