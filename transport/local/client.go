// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/vpaudio/modbus-audio/internal/config"
	"github.com/vpaudio/modbus-audio/internal/device"
	"github.com/vpaudio/modbus-audio/internal/device/persistence"
	"github.com/vpaudio/modbus-audio/modbus"
)

// Client implements transport.Transport against an in-process simulated
// unit. No bus is involved; exchanges execute synchronously.
type Client struct {
	dev     *device.Device
	storage persistence.Storage
}

// NewClient creates a local client over a simulated unit with the
// configured persistence backend.
func NewClient(cfg config.SimulatorConfig) *Client {
	storage := NewStorage(cfg.Persistence)

	regs, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persisted registers, starting fresh", "err", err)
		storage = persistence.NewMemoryStorage()
		regs, _ = storage.Load()
	}
	device.ApplyFactoryDefaults(regs)

	dev := device.New(regs, storage)
	dev.TxControlWriteOnly = cfg.TxControlWriteOnly

	return &Client{
		dev:     dev,
		storage: storage,
	}
}

// NewStorage picks the persistence backend for the simulated unit.
func NewStorage(cfg config.PersistenceConfig) persistence.Storage {
	switch cfg.Type {
	case "file":
		slog.Info("Simulated unit with file persistence", "path", cfg.Path)
		return persistence.NewFileStorage(cfg.Path)
	case "mmap":
		slog.Info("Simulated unit with mmap persistence", "path", cfg.Path)
		return persistence.NewMmapStorage(cfg.Path)
	case "sql":
		slog.Info("Simulated unit with SQL persistence", "driver", "sqlite3", "dsn", cfg.Path)
		// The main package must import the driver (_ "github.com/mattn/go-sqlite3").
		return persistence.NewSQLStorage("sqlite3", cfg.Path)
	default:
		slog.Info("Simulated unit with memory storage (non-persistent)")
		return persistence.NewMemoryStorage()
	}
}

// Device exposes the simulated unit, e.g. for the RTU server handler.
func (c *Client) Device() *device.Device {
	return c.dev
}

// Connect is a no-op for the local unit.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close closes the storage.
func (c *Client) Close() error {
	if closer, ok := c.storage.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// ReadHoldingRegisters reads registers from the simulated unit.
func (c *Client) ReadHoldingRegisters(ctx context.Context, unitID byte, address, quantity uint16) ([]uint16, error) {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], quantity)

	resp, err := c.process(modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         data,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 1 || int(resp.Data[0]) != 2*int(quantity) {
		return nil, fmt.Errorf("modbus: unexpected response byte count")
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(resp.Data[1+2*i:])
	}
	return values, nil
}

// WriteSingleRegister writes one register on the simulated unit.
func (c *Client) WriteSingleRegister(ctx context.Context, unitID byte, address, value uint16) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], value)

	_, err := c.process(modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteSingleRegister,
		Data:         data,
	})
	return err
}

// WriteMultipleRegisters writes a register block on the simulated unit.
func (c *Client) WriteMultipleRegisters(ctx context.Context, unitID byte, address uint16, values []uint16) error {
	quantity := len(values)
	data := make([]byte, 5+2*quantity)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], uint16(quantity))
	data[4] = byte(2 * quantity)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[5+2*i:], v)
	}

	_, err := c.process(modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         data,
	})
	return err
}

func (c *Client) process(pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	resp, err := c.dev.Process(pdu)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if mbErr, ok := modbus.IsException(resp); ok {
		return modbus.ProtocolDataUnit{}, mbErr
	}
	return resp, nil
}
