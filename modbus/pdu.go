// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

// ProtocolDataUnit (PDU) is the transport-independent part of a Modbus
// message: function code plus payload. Framing (slave id, CRC) is added
// by the ADU layer of the concrete transport.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}
