// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/grid-x/serial"

	"github.com/vpaudio/modbus-audio/internal/config"
	"github.com/vpaudio/modbus-audio/modbus"
	"github.com/vpaudio/modbus-audio/modbus/crc"
	rtupacket "github.com/vpaudio/modbus-audio/modbus/rtu"
	"github.com/vpaudio/modbus-audio/transport"
)

// Server answers Modbus RTU requests on a serial device. It acts as a
// slave on the bus; the simulate command runs one against the simulated
// device model.
type Server struct {
	Config config.SerialConfig

	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the serial port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	spConfig := &serial.Config{
		Address:  s.Config.Device,
		BaudRate: s.Config.BaudRate,
		DataBits: s.Config.DataBits,
		StopBits: s.Config.StopBits,
		Parity:   s.Config.Parity,
		Timeout:  s.Config.Timeout, // Read timeout
	}

	port, err := serial.Open(spConfig)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	s.port = port
	defer port.Close()
	slog.Info("RTU server listening", "device", s.Config.Device)

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

// Close closes the serial port.
func (s *Server) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

func (s *Server) scanLoop(ctx context.Context, port io.ReadWriteCloser, handler transport.RequestHandler) error {
	buf := make([]byte, rtupacket.MaxSize+4)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Read 1 byte to unblock, then attempt the 7-byte header that
		// covers ByteCount for variable-length functions.
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		current := 1
		need := 7
		for current < need {
			n, err := port.Read(buf[current:need])
			if err != nil {
				break
			}
			current += n
		}

		if current < 2 {
			continue
		}

		functionCode := buf[1]

		expectedLen, err := rtupacket.CalculateRequestLength(functionCode, buf[:current])
		if err != nil {
			// Invalid request or partial read, resync on the next byte.
			continue
		}

		for current < expectedLen {
			n, err := port.Read(buf[current:expectedLen])
			if err != nil {
				break
			}
			current += n
		}

		if current != expectedLen {
			continue
		}

		var c crc.CRC
		c.Reset().PushBytes(buf[:expectedLen-2])
		received := uint16(buf[expectedLen-1])<<8 | uint16(buf[expectedLen-2])
		if received != c.Value() {
			continue
		}

		unitID := buf[0]
		pduData := make([]byte, expectedLen-4)
		copy(pduData, buf[2:expectedLen-2])

		reqPDU := modbus.ProtocolDataUnit{
			FunctionCode: functionCode,
			Data:         pduData,
		}

		respPDU, err := handler(ctx, unitID, reqPDU)
		if err != nil {
			slog.Error("request handler failed", "err", err)
			continue
		}

		respADU := &rtupacket.ApplicationDataUnit{UnitID: unitID, Pdu: respPDU}
		respBuf, err := respADU.Encode()
		if err != nil {
			slog.Error("failed to encode response", "err", err)
			continue
		}
		if _, err := port.Write(respBuf); err != nil {
			slog.Error("failed to write response", "err", err)
		}
	}
}
