// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool backing the
// durable job queue.
//
// It wraps zombiezen.com/go/sqlite with the pragmas the queue needs:
// WAL journal mode so job listing never blocks a worker's claim
// transaction, NORMAL synchronous for process-crash durability without
// fsync-per-commit overhead, and a busy timeout so a second process
// poking the same queue file gets a wait instead of SQLITE_BUSY.
//
// Callers [Pool.Take] a connection, work, and [Pool.Put] it back.
// Connections are not safe for concurrent use; each goroutine holds
// its own for the duration of its work.
//
// The package is intentionally thin: no query builder, no abstraction
// over SQLite's connection model. The queue writes SQL, uses
// sqlitex.Execute for cached statements, and wraps claim transitions
// in sqlitex.ImmediateTransaction.
package sqlitepool
