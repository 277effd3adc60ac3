// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package contracts embeds the built-in contract manifests and sources.
package contracts

import "embed"

// FS holds one directory per contract, each with a contract.yaml.
//
//go:embed */contract.yaml */*.lua
var FS embed.FS
