// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"fmt"
)

// Payloads are stored behind a small header so that a change in the stored
// shape turns into a cache miss instead of a bad read:
//
//	magic(3) | schema version(1) | format marker(1) | payload
const (
	envelopeMagic = "SSC"
	schemaVersion = byte(1)
	formatRaw     = byte('r')

	headerLen = len(envelopeMagic) + 2
)

func seal(payload []byte) []byte {
	b := make([]byte, 0, headerLen+len(payload))
	b = append(b, envelopeMagic...)
	b = append(b, schemaVersion, formatRaw)
	return append(b, payload...)
}

func unseal(b []byte) ([]byte, error) {
	if len(b) < headerLen || !bytes.HasPrefix(b, []byte(envelopeMagic)) {
		return nil, fmt.Errorf("%w: missing envelope header", ErrCorrupt)
	}
	if v := b[len(envelopeMagic)]; v != schemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrCorrupt, v, schemaVersion)
	}
	if f := b[len(envelopeMagic)+1]; f != formatRaw {
		return nil, fmt.Errorf("%w: unknown format marker %q", ErrCorrupt, f)
	}
	return bytes.Clone(b[headerLen:]), nil
}
