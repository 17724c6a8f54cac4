// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"github.com/vpaudio/modbus-audio/internal/device/model"
)

// Storage defines the interface for persisting the simulated unit's
// register table.
type Storage interface {
	// Load loads the register table from storage. If no data exists it
	// returns a fresh zeroed table.
	Load() (*model.Registers, error)

	// Save saves the current register table to storage.
	Save(regs *model.Registers) error

	// OnWrite is a hook called whenever registers are modified. It
	// allows the storage to perform real-time persistence (sync to
	// disk or DB).
	OnWrite(address, quantity uint16)
}
