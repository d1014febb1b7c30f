// Copyright 2024 The DCDS Authors
// This file is part of DCDS.
//
// DCDS is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DCDS is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with DCDS. If not, see <http://www.gnu.org/licenses/>.

// Package dcdsconfig holds the runtime policy knobs spec.md leaves as
// implementation-defined ("a policy knob, not a contract"): the
// default namespace name, the maximum harness retry count, and the
// index adapter's shard count.
package dcdsconfig

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultNamespace is the namespace name spec.md §6 says exists at
// startup.
const DefaultNamespace = "default"

// Config collects the policy knobs. Zero Config is not valid; use
// Default().
type Config struct {
	// DefaultNamespace names the namespace created at startup.
	DefaultNamespace string `toml:"default_namespace"`
	// MaxRetries bounds the operation harness's abort/retry loop.
	// Zero means unlimited (spec.md §4.4 default: "a yielding spin is
	// acceptable", no mandated cap).
	MaxRetries int `toml:"max_retries"`
	// IndexShards is loaded and defaulted here, but nothing reads it:
	// internal/interp builds every indexed-list internal/index.Index
	// with index.New's own default of 16 shards.
	IndexShards int `toml:"index_shards"`
}

// Default returns the configuration DCDS runs with when no file is
// loaded.
func Default() Config {
	return Config{
		DefaultNamespace: DefaultNamespace,
		MaxRetries:       0,
		IndexShards:      16,
	}
}

// Load reads a TOML config file at path, applying it on top of
// Default() for any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = DefaultNamespace
	}
	if cfg.IndexShards <= 0 {
		cfg.IndexShards = 16
	}
	return cfg, nil
}
