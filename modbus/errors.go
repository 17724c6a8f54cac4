// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import "fmt"

// Error is a Modbus exception response returned by the slave.
type Error struct {
	FunctionCode  byte
	ExceptionCode byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		name = "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		name = "gateway target device failed to respond"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode)
}

// IsException reports whether pdu carries an exception response and, if so,
// returns it as an *Error.
func IsException(pdu ProtocolDataUnit) (*Error, bool) {
	if pdu.FunctionCode&0x80 == 0 {
		return nil, false
	}
	e := &Error{FunctionCode: pdu.FunctionCode &^ 0x80}
	if len(pdu.Data) > 0 {
		e.ExceptionCode = pdu.Data[0]
	}
	return e, true
}
