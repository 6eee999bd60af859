// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides whether an action request is permitted.
//
// Evaluate is a pure decision function over (request, configuration):
// it spawns nothing, writes nothing, and keeps no state between calls,
// so it is safe from any number of concurrent goroutines. Its only
// I/O is read-only symlink resolution, which must happen at decision
// time — containment checked against a nominal path instead of the
// canonical one would be trivially escapable.
//
// The ordering guarantees matter more than the individual checks:
// shell operators are rejected before name lookups, the denylist is
// consulted before the allowlist and cannot be overridden by it, and
// a plan is approved only if every step independently passes — there
// is no partial plan approval.
package policy
