// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device emulates a VP transmitter/receiver unit: it executes
// holding-register PDUs against an in-process register table, so the
// client can be exercised without RF hardware on the bus.
package device

import (
	"encoding/binary"

	"github.com/vpaudio/modbus-audio/internal/device/model"
	"github.com/vpaudio/modbus-audio/internal/device/persistence"
	"github.com/vpaudio/modbus-audio/internal/registers"
	"github.com/vpaudio/modbus-audio/modbus"
)

// Device implements the Modbus protocol logic of a simulated VP unit on
// top of a register table.
type Device struct {
	regs    *model.Registers
	storage persistence.Storage

	// TxControlWriteOnly makes reads covering 0x5035 fail with an
	// illegal data address exception, matching receiver firmware
	// builds that expose TxControl as write-only.
	TxControlWriteOnly bool
}

// New creates a Device over the given register table and storage.
func New(regs *model.Registers, storage persistence.Storage) *Device {
	return &Device{regs: regs, storage: storage}
}

// ApplyFactoryDefaults seeds the identity and control registers of a
// fresh unit. Already-persisted state (non-zero serial number) is kept.
func ApplyFactoryDefaults(regs *model.Registers) {
	if regs.Get(registers.SerialNumber.Block.Start) != 0 {
		return
	}

	serial := registers.SerialNumber.Block.Start
	regs.Set(serial, 0x0001)
	regs.Set(serial+1, 0x2345)
	regs.Set(serial+2, 0x6789)
	regs.Set(serial+3, 0xABCD)

	fw := registers.FirmwareID.Block.Start
	regs.Set(fw, 2)   // major
	regs.Set(fw+1, 7) // minor

	regs.Set(registers.RFAddress.Block.Start, 1)
	regs.Set(registers.RFDestZone.Block.Start, 1)
	regs.Set(registers.Frequency.Block.Start, 7100)
	regs.Set(registers.TxControl.Block.Start, registers.TxControlStopped)
	regs.Set(registers.RxControl.Block.Start, registers.TxControlStopped)
}

// Process executes the Modbus function code against the register table.
func (d *Device) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return d.handleReadHoldingRegisters(req)
	case modbus.FuncCodeWriteSingleRegister:
		return d.handleWriteSingleRegister(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		return d.handleWriteMultipleRegisters(req)
	default:
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (d *Device) handleReadHoldingRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > 125 {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if d.TxControlWriteOnly && covers(address, quantity, registers.TxControl.Block.Start) {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	data, err := d.regs.ReadHolding(address, quantity)
	if err != nil {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (d *Device) handleWriteSingleRegister(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := d.regs.WriteSingle(address, value); err != nil {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	d.storage.OnWrite(address, 1)

	return req, nil // Echo request
}

func (d *Device) handleWriteMultipleRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) < 6 {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > 123 {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if byte(len(req.Data)-5) != byteCount {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if err := d.regs.WriteMultiple(address, quantity, req.Data[5:]); err != nil {
		return d.exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	d.storage.OnWrite(address, quantity)

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (d *Device) exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | 0x80,
		Data:         []byte{code},
	}
}

func covers(address, quantity, target uint16) bool {
	return address <= target && int(target) < int(address)+int(quantity)
}
