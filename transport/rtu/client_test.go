// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vpaudio/modbus-audio/modbus"
	"github.com/vpaudio/modbus-audio/modbus/crc"
)

// mockPort replaces the serial port with canned response bytes and
// records everything the client writes.
type mockPort struct {
	in     *bytes.Reader
	out    bytes.Buffer
	closed bool
}

func (m *mockPort) Read(p []byte) (int, error)  { return m.in.Read(p) }
func (m *mockPort) Write(p []byte) (int, error) { return m.out.Write(p) }
func (m *mockPort) Close() error                { m.closed = true; return nil }

// frame builds a complete RTU ADU with CRC appended low byte first.
func frame(unitID, functionCode byte, data []byte) []byte {
	adu := append([]byte{unitID, functionCode}, data...)
	var c crc.CRC
	c.Reset().PushBytes(adu)
	checksum := c.Value()
	return append(adu, byte(checksum), byte(checksum>>8))
}

func newTestClient(response []byte) (*Client, *mockPort) {
	port := &mockPort{in: bytes.NewReader(response)}
	client := &Client{}
	client.serialPort.Config.BaudRate = 57600
	client.serialPort.Config.Timeout = time.Second
	client.serialPort.port = port
	return client, port
}

func TestReadHoldingRegisters(t *testing.T) {
	client, port := newTestClient(frame(1, 3, []byte{0x02, 0x1B, 0xBC}))

	values, err := client.ReadHoldingRegisters(context.Background(), 1, 0x4024, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != 0x1BBC {
		t.Errorf("got values %v, want [0x1BBC]", values)
	}

	want := frame(1, 3, []byte{0x40, 0x24, 0x00, 0x01})
	if !bytes.Equal(port.out.Bytes(), want) {
		t.Errorf("sent % X, want % X", port.out.Bytes(), want)
	}
}

func TestReadHoldingRegistersSkipsNoise(t *testing.T) {
	response := append([]byte{0xFF, 0xFF}, frame(1, 3, []byte{0x02, 0x00, 0x07})...)
	client, _ := newTestClient(response)

	values, err := client.ReadHoldingRegisters(context.Background(), 1, 0x0000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != 7 {
		t.Errorf("got value %d, want 7", values[0])
	}
}

func TestReadHoldingRegistersQuantity(t *testing.T) {
	for _, quantity := range []uint16{0, 126} {
		client, port := newTestClient(nil)
		if _, err := client.ReadHoldingRegisters(context.Background(), 1, 0, quantity); err == nil {
			t.Errorf("quantity %d: expected error", quantity)
		}
		if port.out.Len() != 0 {
			t.Errorf("quantity %d: request was sent anyway", quantity)
		}
	}
}

func TestWriteSingleRegister(t *testing.T) {
	client, port := newTestClient(frame(1, 6, []byte{0x50, 0x35, 0x00, 0x02}))

	if err := client.WriteSingleRegister(context.Background(), 1, 0x5035, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := frame(1, 6, []byte{0x50, 0x35, 0x00, 0x02})
	if !bytes.Equal(port.out.Bytes(), want) {
		t.Errorf("sent % X, want % X", port.out.Bytes(), want)
	}
}

func TestWriteMultipleRegisters(t *testing.T) {
	client, port := newTestClient(frame(1, 16, []byte{0x00, 0x00, 0x00, 0x03}))

	err := client.WriteMultipleRegisters(context.Background(), 1, 0x0000, []uint16{1, 116, 225})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := frame(1, 16, []byte{
		0x00, 0x00, // address
		0x00, 0x03, // quantity
		0x06,       // byte count
		0x00, 0x01, // hop 1
		0x00, 0x74, // hop 116
		0x00, 0xE1, // hop 225
	})
	if !bytes.Equal(port.out.Bytes(), want) {
		t.Errorf("sent % X, want % X", port.out.Bytes(), want)
	}
}

func TestWriteMultipleRegistersQuantityMismatch(t *testing.T) {
	// Device echoes a different quantity than requested.
	client, _ := newTestClient(frame(1, 16, []byte{0x00, 0x00, 0x00, 0x02}))

	err := client.WriteMultipleRegisters(context.Background(), 1, 0x0000, []uint16{1, 116, 225})
	if err == nil {
		t.Fatal("expected quantity mismatch error")
	}
}

func TestExceptionResponse(t *testing.T) {
	client, _ := newTestClient(frame(1, 0x83, []byte{0x02}))

	_, err := client.ReadHoldingRegisters(context.Background(), 1, 0x9000, 1)
	if err == nil {
		t.Fatal("expected exception error")
	}

	var mbErr *modbus.Error
	if !errors.As(err, &mbErr) {
		t.Fatalf("expected *modbus.Error, got %T: %v", err, err)
	}
	if mbErr.FunctionCode != modbus.FuncCodeReadHoldingRegisters || mbErr.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("got function 0x%02X exception %d, want 0x03/2", mbErr.FunctionCode, mbErr.ExceptionCode)
	}
}

func TestResponseTimeout(t *testing.T) {
	client, _ := newTestClient(nil)
	client.serialPort.Config.Timeout = 10 * time.Millisecond

	_, err := client.ReadHoldingRegisters(context.Background(), 1, 0x0000, 1)
	if err == nil {
		t.Fatal("expected error on empty response")
	}
}
