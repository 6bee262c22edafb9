// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package memory provides in-process implementations of the auth repositories.
// They back tests and the "memory" codes backend for single-node development.
// Every method returns copies so callers cannot mutate stored records.
package memory
