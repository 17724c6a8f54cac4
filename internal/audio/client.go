// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package audio is the register-semantics client for the VP RF audio
// transmitter/receiver family. It binds one transport to one unit
// address and layers the typed register view and the composite
// start/stop stream sequences over raw holding-register exchanges.
package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vpaudio/modbus-audio/internal/registers"
	"github.com/vpaudio/modbus-audio/transport"
)

// Client is a session against one unit on one transport. Composite
// operations issue their reads and writes strictly sequentially; the
// serial bus is half-duplex and carries one request at a time.
type Client struct {
	transport transport.Transport
	unitID    byte
}

// NewClient binds to the transport and unit, opening the transport.
// The caller owns the session and must Close it on every exit path.
func NewClient(ctx context.Context, t transport.Transport, unitID byte) (*Client, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &Client{transport: t, unitID: unitID}, nil
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// ReadRegisters reads count raw holding registers starting at address.
// Bounds are checked client-side before any wire traffic.
func (c *Client) ReadRegisters(ctx context.Context, address, count int) ([]uint16, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count %d must be at least 1", ErrInvalidAddress, count)
	}
	if address < 0 || address+count-1 > registers.MaxAddress {
		return nil, fmt.Errorf("%w: block 0x%X+%d exceeds register space 0x0000-0x%04X",
			ErrInvalidAddress, address, count, registers.MaxAddress)
	}

	values, err := c.transport.ReadHoldingRegisters(ctx, c.unitID, uint16(address), uint16(count))
	if err != nil {
		return nil, classify(err)
	}
	return values, nil
}

// WriteRegister writes exactly one holding register. No retry is
// performed; a failed write surfaces immediately.
func (c *Client) WriteRegister(ctx context.Context, address int, value uint16) error {
	if address < 0 || address > registers.MaxAddress {
		return fmt.Errorf("%w: 0x%X exceeds register space 0x0000-0x%04X",
			ErrInvalidAddress, address, registers.MaxAddress)
	}

	if err := c.transport.WriteSingleRegister(ctx, c.unitID, uint16(address), value); err != nil {
		return classify(err)
	}
	return nil
}

// DeviceInfo reads the identity, RF, zone and diagnostic blocks in a
// fixed order and decodes them into a fresh snapshot. If any read
// fails the whole snapshot fails; a caller inspecting device state
// must not see a mix of current and missing fields.
func (c *Client) DeviceInfo(ctx context.Context) (map[string]any, error) {
	info := make(map[string]any, len(registers.DeviceInfoBlocks))

	for _, desc := range registers.DeviceInfoBlocks {
		words, err := c.ReadRegisters(ctx, int(desc.Block.Start), int(desc.Block.Quantity))
		if err != nil {
			return nil, err
		}

		switch desc.Name {
		case registers.SerialNumber.Name:
			info[desc.Name] = registers.FormatSerialNumber(words)
		case registers.FirmwareID.Name:
			info["firmware_version"] = registers.FormatFirmware(words)
		default:
			value, err := desc.Decode(words)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, err)
			}
			info[desc.Name] = value
		}
	}

	return info, nil
}

// StartAudioStream programs the hop chain, optionally the destination
// zones, and finally raises TxControl. The TxControl write is always
// last so the unit never starts streaming against a half-written
// routing table. A failed step aborts the sequence; registers already
// written stay as they are and the unit stays non-streaming.
func (c *Client) StartAudioStream(ctx context.Context, addresses []uint16, zones []uint16) error {
	if len(addresses) == 0 || len(addresses) > registers.MaxRouteHops {
		return fmt.Errorf("%w: hop chain needs 1-%d addresses, got %d",
			ErrInvalidTopology, registers.MaxRouteHops, len(addresses))
	}
	for _, addr := range addresses {
		if addr > 255 {
			return fmt.Errorf("%w: hop address %d exceeds unit address range 0-255", ErrInvalidTopology, addr)
		}
	}
	if len(zones) > registers.MaxZones {
		return fmt.Errorf("%w: at most %d zones, got %d", ErrInvalidTopology, registers.MaxZones, len(zones))
	}

	route, err := registers.RoutingTable.Encode(addresses)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopology, err)
	}
	slog.Debug("writing routing table", "route", route)
	if err := c.transport.WriteMultipleRegisters(ctx, c.unitID, registers.RoutingTable.Block.Start, route); err != nil {
		return classify(err)
	}

	if zones != nil {
		zoneSet, err := registers.Zones.Encode(zones)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTopology, err)
		}
		slog.Debug("writing destination zones", "zones", zoneSet)
		if err := c.transport.WriteMultipleRegisters(ctx, c.unitID, registers.Zones.Block.Start, zoneSet); err != nil {
			return classify(err)
		}
	}

	slog.Debug("raising TxControl")
	if err := c.transport.WriteSingleRegister(ctx, c.unitID, registers.TxControl.Block.Start, registers.TxControlStreaming); err != nil {
		return classify(err)
	}
	return nil
}

// StopAudioStream lowers TxControl. Idempotent: writing the stopped
// value to an already stopped unit succeeds with no visible change.
func (c *Client) StopAudioStream(ctx context.Context) error {
	if err := c.transport.WriteSingleRegister(ctx, c.unitID, registers.TxControl.Block.Start, registers.TxControlStopped); err != nil {
		return classify(err)
	}
	return nil
}

// Probe reads register 0x0000 once to confirm the unit answers.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.ReadRegisters(ctx, 0x0000, 1)
	return err
}

// SerialNumber reads and renders the serial number block.
func (c *Client) SerialNumber(ctx context.Context) (string, error) {
	desc := registers.SerialNumber
	words, err := c.ReadRegisters(ctx, int(desc.Block.Start), int(desc.Block.Quantity))
	if err != nil {
		return "", err
	}
	return registers.FormatSerialNumber(words), nil
}

// Frequency reads the RF frequency register (kHz-scaled).
func (c *Client) Frequency(ctx context.Context) (uint16, error) {
	words, err := c.ReadRegisters(ctx, int(registers.Frequency.Block.Start), 1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// SetFrequency writes the RF frequency register (kHz-scaled).
func (c *Client) SetFrequency(ctx context.Context, khz uint16) error {
	return c.WriteRegister(ctx, int(registers.Frequency.Block.Start), khz)
}

// RegisterDump is one row of a documented-register walk.
type RegisterDump struct {
	Name      string
	Address   uint16
	Quantity  uint16
	Values    []uint16
	Err       error // read failure for this row only
	WriteOnly bool
}

// DumpRegisters walks the documented register table and reads every
// readable block. Per-row read failures are recorded in the row, not
// surfaced: a diagnostic dump should show as much of the device as it
// can reach.
func (c *Client) DumpRegisters(ctx context.Context) []RegisterDump {
	rows := make([]RegisterDump, 0, len(registers.Documented))

	for _, desc := range registers.Documented {
		row := RegisterDump{
			Name:     desc.Name,
			Address:  desc.Block.Start,
			Quantity: desc.Block.Quantity,
		}
		if !desc.Readable {
			row.WriteOnly = true
			rows = append(rows, row)
			continue
		}
		values, err := c.ReadRegisters(ctx, int(desc.Block.Start), int(desc.Block.Quantity))
		if err != nil {
			row.Err = err
		} else {
			row.Values = values
		}
		rows = append(rows, row)
	}
	return rows
}
