// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package audio

import (
	"errors"
	"fmt"

	"github.com/vpaudio/modbus-audio/modbus"
)

// The client's error taxonomy. Validation errors are raised before any
// wire traffic; device and transport errors cross composite operations
// unchanged. No transport-specific error type leaks past this package.
var (
	// ErrInvalidAddress marks a client-side register bound violation.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidTopology marks a bad hop chain or zone set.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrDevice marks a Modbus exception response from the unit.
	ErrDevice = errors.New("device error")
	// ErrTransport marks a timeout, framing or CRC failure on the bus.
	ErrTransport = errors.New("transport error")
	// ErrConnection marks a transport that could not be opened.
	ErrConnection = errors.New("connection error")
)

// classify translates a transport-layer failure into the client's
// taxonomy at the package boundary.
func classify(err error) error {
	var mbErr *modbus.Error
	if errors.As(err, &mbErr) {
		return fmt.Errorf("%w: %w", ErrDevice, mbErr)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
