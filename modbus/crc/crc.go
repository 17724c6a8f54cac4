// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

// CRC computes the CRC-16 (Modbus) checksum of pushed bytes.
type CRC struct {
	value uint16
}

// Reset initializes the checksum. Must be called before PushBytes.
func (c *CRC) Reset() *CRC {
	c.value = 0xFFFF
	return c
}

// PushBytes updates the checksum with the given bytes.
func (c *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		c.value ^= uint16(b)
		for i := 0; i < 8; i++ {
			if c.value&1 != 0 {
				c.value = (c.value >> 1) ^ 0xA001
			} else {
				c.value >>= 1
			}
		}
	}
	return c
}

// Value returns the current checksum.
func (c *CRC) Value() uint16 {
	return c.value
}
