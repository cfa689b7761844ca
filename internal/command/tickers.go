// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import "strings"

// NormalizeTickers splits comma-separated values, upper-cases and trims
// each symbol, and drops blanks and repeats while keeping first-seen order.
func NormalizeTickers(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
