// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package registers describes the holding-register address space of the
// VP transmitter/receiver family. The table is pure data: which blocks
// exist, how wide they are and how their raw words decode into domain
// values. Addresses outside the table stay usable as raw pass-through
// registers.
package registers

import "fmt"

// MaxAddress is the last addressable holding register.
const MaxAddress = 0xFFFF

// Limits of the audio routing configuration.
const (
	MaxRouteHops = 6 // routing table slots at 0x0000..0x0005
	MaxZones     = 5 // destination zone slots at 0x4030..0x4034
)

// TxControl register values the client interprets. Other raw values are
// passed through untouched.
const (
	TxControlStopped   uint16 = 1
	TxControlStreaming uint16 = 2
)

// Block is a contiguous window of holding registers.
type Block struct {
	Start    uint16
	Quantity uint16
}

// End returns the last address covered by the block.
func (b Block) End() uint16 {
	return b.Start + b.Quantity - 1
}

// Kind tags how a block's raw words map to a domain value.
type Kind int

const (
	// Scalar is a single 16-bit word.
	Scalar Kind = iota
	// MultiWordInt is a wider integer spread over several words,
	// most significant word first.
	MultiWordInt
	// FixedArray is an ordered sequence of words, unused tail slots
	// zero-filled on encode.
	FixedArray
)

// Descriptor describes one documented register block.
type Descriptor struct {
	Name     string
	Block    Block
	Kind     Kind
	Readable bool
	Writable bool
}

// Documented register blocks of the VP device family.
var (
	RoutingTable = Descriptor{Name: "routing_table", Block: Block{0x0000, 6}, Kind: FixedArray, Readable: true, Writable: true}
	FirmwareID   = Descriptor{Name: "firmware_id", Block: Block{0x4000, 2}, Kind: FixedArray, Readable: true}
	SerialNumber = Descriptor{Name: "serial_number", Block: Block{0x4010, 4}, Kind: MultiWordInt, Readable: true}
	RFAddress    = Descriptor{Name: "rf_address", Block: Block{0x4020, 1}, Kind: Scalar, Readable: true, Writable: true}
	RFDestZone   = Descriptor{Name: "rf_dest_zone", Block: Block{0x4021, 1}, Kind: Scalar, Readable: true, Writable: true}
	Frequency    = Descriptor{Name: "frequency", Block: Block{0x4024, 1}, Kind: Scalar, Readable: true, Writable: true}
	Zones        = Descriptor{Name: "zones", Block: Block{0x4030, 5}, Kind: FixedArray, Readable: true, Writable: true}
	RxControl    = Descriptor{Name: "rx_control", Block: Block{0x4035, 1}, Kind: Scalar, Readable: true, Writable: true}
	Diagnostics  = Descriptor{Name: "diagnostics", Block: Block{0x5000, 1}, Kind: Scalar, Readable: true}

	// TxControl is exposed as write-only by many receiver firmware
	// builds; reads of 0x5035 may be rejected with an illegal data
	// address exception.
	TxControl = Descriptor{Name: "tx_control", Block: Block{0x5035, 1}, Kind: Scalar, Writable: true}
)

// Documented lists every known block in address order. dump-registers
// walks this table.
var Documented = []Descriptor{
	RoutingTable,
	FirmwareID,
	SerialNumber,
	RFAddress,
	RFDestZone,
	Frequency,
	Zones,
	RxControl,
	Diagnostics,
	TxControl,
}

// DeviceInfoBlocks lists the blocks the device info snapshot reads, in
// the fixed order the snapshot is assembled: identity, RF, zone and
// diagnostic blocks.
var DeviceInfoBlocks = []Descriptor{
	SerialNumber,
	FirmwareID,
	RFAddress,
	RFDestZone,
	Frequency,
	Zones,
	Diagnostics,
}

// Decode converts raw words read from the descriptor's block into its
// domain value: uint16 for Scalar, uint64 for MultiWordInt, []uint16
// for FixedArray.
func (d Descriptor) Decode(words []uint16) (any, error) {
	if len(words) != int(d.Block.Quantity) {
		return nil, fmt.Errorf("registers: %s expects %d words, got %d", d.Name, d.Block.Quantity, len(words))
	}
	switch d.Kind {
	case Scalar:
		return words[0], nil
	case MultiWordInt:
		var v uint64
		for _, w := range words {
			v = v<<16 | uint64(w)
		}
		return v, nil
	case FixedArray:
		out := make([]uint16, len(words))
		copy(out, words)
		return out, nil
	default:
		return nil, fmt.Errorf("registers: %s has unknown kind %d", d.Name, d.Kind)
	}
}

// Encode converts a domain value into the block's fixed width. Values
// narrower than the block are zero-filled: MultiWordInt left-pads high
// words, FixedArray zero-fills the tail.
func (d Descriptor) Encode(value any) ([]uint16, error) {
	words := make([]uint16, d.Block.Quantity)
	switch d.Kind {
	case Scalar:
		v, ok := value.(uint16)
		if !ok {
			return nil, fmt.Errorf("registers: %s expects uint16, got %T", d.Name, value)
		}
		words[0] = v
	case MultiWordInt:
		v, ok := value.(uint64)
		if !ok {
			return nil, fmt.Errorf("registers: %s expects uint64, got %T", d.Name, value)
		}
		if q := int(d.Block.Quantity); q < 4 && v>>(16*q) != 0 {
			return nil, fmt.Errorf("registers: value %d does not fit in %d words", v, q)
		}
		for i := int(d.Block.Quantity) - 1; i >= 0; i-- {
			words[i] = uint16(v)
			v >>= 16
		}
	case FixedArray:
		vs, ok := value.([]uint16)
		if !ok {
			return nil, fmt.Errorf("registers: %s expects []uint16, got %T", d.Name, value)
		}
		if len(vs) > int(d.Block.Quantity) {
			return nil, fmt.Errorf("registers: %s holds %d words, got %d", d.Name, d.Block.Quantity, len(vs))
		}
		copy(words, vs)
	default:
		return nil, fmt.Errorf("registers: %s has unknown kind %d", d.Name, d.Kind)
	}
	return words, nil
}

// FormatSerialNumber renders the serial number block the way the device
// labels print it: each word as four upper-case hex digits.
func FormatSerialNumber(words []uint16) string {
	s := ""
	for _, w := range words {
		s += fmt.Sprintf("%04X", w)
	}
	return s
}

// FormatFirmware renders the firmware id block as "major.minor".
func FormatFirmware(words []uint16) string {
	if len(words) != 2 {
		return ""
	}
	return fmt.Sprintf("%d.%d", words[0], words[1])
}
