// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for courtbook.
//
// Configuration is loaded from a single file named by the
// COURTBOOK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no per-field
// environment override; the file is the single source of truth.
//
// The file describes the remote authority's site layout (paths, form
// field names, page wording), engine tuning (retry cap, latency probe
// count, timeouts), and where local state lives (booking database,
// credential bundle, metrics listener). Environment sections
// (development, production) override base values when
// [Config].Environment matches; a typical use is pointing development
// at a staging copy of the booking site.
//
// Path fields support ${HOME} and ${VAR:-default} expansion.
//
// This package depends on no other courtbook packages. Commands map
// its sections onto each component's own Config struct.
package config
