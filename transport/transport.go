// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"

	"github.com/vpaudio/modbus-audio/modbus"
)

// Transport performs register-level Modbus exchanges against one bus.
// Implementations serialize access internally: the bus is half-duplex
// and a single in-flight request is the most it can carry.
type Transport interface {
	// Connect opens the underlying channel. Implementations may also
	// connect lazily on the first exchange.
	Connect(ctx context.Context) error
	Close() error

	// ReadHoldingRegisters reads quantity contiguous holding registers
	// starting at address from the given unit.
	ReadHoldingRegisters(ctx context.Context, unitID byte, address, quantity uint16) ([]uint16, error)
	// WriteSingleRegister writes one holding register on the given unit.
	WriteSingleRegister(ctx context.Context, unitID byte, address, value uint16) error
	// WriteMultipleRegisters writes a contiguous block of holding
	// registers on the given unit.
	WriteMultipleRegisters(ctx context.Context, unitID byte, address uint16, values []uint16) error
}

// RequestHandler handles a Modbus request/response cycle on the slave
// side. It takes the addressed unit id and the request PDU and returns
// the response PDU.
type RequestHandler func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Server answers requests from an external Modbus master.
type Server interface {
	// Start starts serving and blocks until ctx is cancelled.
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}
