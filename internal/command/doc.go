// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package command defines the sangre CLI. It wires flags, validators and the
// root action onto the fetch coordinator and status reporter.
package command
