// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/vpaudio/modbus-audio/internal/device/model"
)

const (
	// The VP unit carries holding registers only.
	sizeHolding = (model.MaxAddress + 1) * 2
	totalSize   = sizeHolding
)

// mapBytesToRegisters constructs a register table backed by the provided
// data slice.
// Warning: This function uses unsafe pointers to cast the byte slice to
// a uint16 slice. The resulting table relies on the host's endianness
// for multi-byte values. This provides zero-copy access but sacrifices
// portability across architectures with different endianness.
func mapBytesToRegisters(data []byte) *model.Registers {
	m := &model.Registers{}
	m.Holding = unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), sizeHolding/2)
	return m
}
