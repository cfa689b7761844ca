// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package output renders quotes and status reports as text, json, yaml or
// raw payloads.
package output
