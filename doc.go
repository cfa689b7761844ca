// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// sangre is the command line entry point for cached, rate limited stock
// lookups. It wires the CLI and delegates to the internal packages.
package main
