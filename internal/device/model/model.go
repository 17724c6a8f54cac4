// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// Registers holds the holding-register table of a simulated unit over
// the full 16-bit address space. The VP device family exposes only
// holding registers; coil and input tables do not exist on it.
type Registers struct {
	mu sync.RWMutex

	// 4x Holding Registers (Read/Write).
	Holding []uint16
}

// NewRegisters creates a register table initialized to zero.
func NewRegisters() *Registers {
	return &Registers{
		Holding: make([]uint16, MaxAddress+1),
	}
}

// ReadHolding reads a range of holding registers and returns them as
// BigEndian bytes (Modbus PDU format).
func (m *Registers) ReadHolding(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, quantity*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], m.Holding[int(address)+i])
	}
	return result, nil
}

// WriteSingle writes a single holding register.
func (m *Registers) WriteSingle(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Holding[address] = value
	return nil
}

// WriteMultiple writes a range of holding registers from BigEndian bytes.
func (m *Registers) WriteMultiple(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}

	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}

	for i := 0; i < int(quantity); i++ {
		m.Holding[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// Get returns one register value. Used by factory setup and tests.
func (m *Registers) Get(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Holding[address]
}

// Set stores one register value without persistence hooks.
func (m *Registers) Set(address, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holding[address] = value
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
