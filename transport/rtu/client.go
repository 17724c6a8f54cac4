// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/vpaudio/modbus-audio/internal/config"
	"github.com/vpaudio/modbus-audio/modbus"
	rtupacket "github.com/vpaudio/modbus-audio/modbus/rtu"
)

// Client implements transport.Transport as a Modbus RTU master on a
// serial bus.
type Client struct {
	rtuSerialTransporter
}

// NewClient allocates and initializes an RTU Client.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}

	// Map internal config to serial.Config
	client.serialPort.Config.Address = cfg.Device
	client.serialPort.Config.BaudRate = cfg.BaudRate
	client.serialPort.Config.DataBits = cfg.DataBits
	client.serialPort.Config.StopBits = cfg.StopBits
	client.serialPort.Config.Parity = cfg.Parity
	client.serialPort.Config.Timeout = cfg.Timeout

	client.IdleTimeout = serialIdleTimeout
	return client
}

// ReadHoldingRegisters reads quantity holding registers starting at address.
func (mb *Client) ReadHoldingRegisters(ctx context.Context, unitID byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > 125 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 125)
	}

	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], quantity)

	resp, err := mb.roundTrip(ctx, unitID, modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         data,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 1 {
		return nil, fmt.Errorf("modbus: response data is empty")
	}
	byteCount := int(resp.Data[0])
	if byteCount != 2*int(quantity) || len(resp.Data)-1 < byteCount {
		return nil, fmt.Errorf("modbus: response byte count '%v' does not match expected '%v'", byteCount, 2*quantity)
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(resp.Data[1+2*i:])
	}
	return values, nil
}

// WriteSingleRegister writes one holding register.
func (mb *Client) WriteSingleRegister(ctx context.Context, unitID byte, address, value uint16) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], value)

	resp, err := mb.roundTrip(ctx, unitID, modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteSingleRegister,
		Data:         data,
	})
	if err != nil {
		return err
	}

	// Response echoes address and value.
	if len(resp.Data) != 4 {
		return fmt.Errorf("modbus: response data size '%v' does not match expected '%v'", len(resp.Data), 4)
	}
	if got := binary.BigEndian.Uint16(resp.Data[0:]); got != address {
		return fmt.Errorf("modbus: response address '%v' does not match request '%v'", got, address)
	}
	return nil
}

// WriteMultipleRegisters writes a contiguous block of holding registers.
func (mb *Client) WriteMultipleRegisters(ctx context.Context, unitID byte, address uint16, values []uint16) error {
	quantity := len(values)
	if quantity < 1 || quantity > 123 {
		return fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 123)
	}

	data := make([]byte, 5+2*quantity)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], uint16(quantity))
	data[4] = byte(2 * quantity)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[5+2*i:], v)
	}

	resp, err := mb.roundTrip(ctx, unitID, modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         data,
	})
	if err != nil {
		return err
	}

	// Response echoes address and quantity.
	if len(resp.Data) != 4 {
		return fmt.Errorf("modbus: response data size '%v' does not match expected '%v'", len(resp.Data), 4)
	}
	if got := binary.BigEndian.Uint16(resp.Data[2:]); got != uint16(quantity) {
		return fmt.Errorf("modbus: response quantity '%v' does not match request '%v'", got, quantity)
	}
	return nil
}

// roundTrip wraps the PDU into an RTU ADU, performs the serial exchange
// and unwraps the response, surfacing exception responses as *modbus.Error.
func (mb *Client) roundTrip(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	adu := &rtupacket.ApplicationDataUnit{
		UnitID: unitID,
		Pdu:    pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	respBytes, err := mb.rtuSerialTransporter.Send(ctx, aduBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respAdu, err := rtupacket.Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	if mbErr, ok := modbus.IsException(respAdu.Pdu); ok {
		return modbus.ProtocolDataUnit{}, mbErr
	}

	return respAdu.Pdu, nil
}

// rtuSerialTransporter implements underlying serial comms.
type rtuSerialTransporter struct {
	serialPort
}

func (mb *rtuSerialTransporter) Send(ctx context.Context, aduRequest []byte) (aduResponse []byte, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err = mb.connect(ctx); err != nil {
		return
	}
	mb.lastActivity = time.Now()
	mb.startCloseTimer()

	slog.Debug("send to modbus unit", "request", hex.EncodeToString(aduRequest))
	if _, err = mb.port.Write(aduRequest); err != nil {
		return
	}

	bytesToRead := rtupacket.CalculateResponseLength(aduRequest)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mb.calculateDelay(len(aduRequest) + bytesToRead)):
	}

	data, err := rtupacket.ReadResponse(aduRequest[0], aduRequest[1], mb.port, time.Now().Add(mb.Config.Timeout))
	if err != nil {
		return nil, err
	}
	slog.Debug("recv from modbus unit", "response", hex.EncodeToString(data))
	aduResponse = data
	return
}

// calculateDelay calculates the needed delay to separate frames.
func (mb *rtuSerialTransporter) calculateDelay(chars int) time.Duration {
	var characterDelay, frameDelay int

	if mb.BaudRate <= 0 || mb.BaudRate > 19200 {
		characterDelay = 750
		frameDelay = 1750
	} else {
		characterDelay = 15000000 / mb.BaudRate
		frameDelay = 35000000 / mb.BaudRate
	}
	return time.Duration(characterDelay*chars+frameDelay) * time.Microsecond
}
