// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the Request sum type — the unit of work a
// caller wants performed — and its wire codecs.
//
// A Request is one of four closed variants: a command (argument
// vector), a file read, a file write, or an ordered plan of steps.
// Requests arrive from three directions — CLI arguments, model
// tool-call JSON, and persisted job payloads — and all three converge
// on the same type, so the policy engine and executor see a single
// representation regardless of origin.
//
// Requests are immutable once constructed. The policy engine decides
// on exactly the bytes the executor will later act on.
package action
