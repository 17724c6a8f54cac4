// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package registers

import (
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		words   []uint16
		want    any
		wantErr bool
	}{
		{"Scalar", Frequency, []uint16{7100}, uint16(7100), false},
		{"ScalarWrongWidth", Frequency, []uint16{7100, 0}, nil, true},
		{"MultiWordInt", SerialNumber, []uint16{0x0001, 0x0002, 0x0003, 0x0004}, uint64(0x0001000200030004), false},
		{"FixedArray", Zones, []uint16{22, 0, 0, 0, 0}, []uint16{22, 0, 0, 0, 0}, false},
		{"FixedArrayShort", RoutingTable, []uint16{1, 116, 225}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.desc.Decode(tt.words)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		value   any
		want    []uint16
		wantErr bool
	}{
		{"Scalar", TxControl, TxControlStreaming, []uint16{2}, false},
		{"ScalarWrongType", TxControl, 2, nil, true},
		{"ZeroFilledRoute", RoutingTable, []uint16{1, 116, 225}, []uint16{1, 116, 225, 0, 0, 0}, false},
		{"ZeroFilledZones", Zones, []uint16{22}, []uint16{22, 0, 0, 0, 0}, false},
		{"FullRoute", RoutingTable, []uint16{1, 2, 3, 4, 5, 6}, []uint16{1, 2, 3, 4, 5, 6}, false},
		{"RouteTooLong", RoutingTable, []uint16{1, 2, 3, 4, 5, 6, 7}, nil, true},
		{"MultiWordLeftPad", SerialNumber, uint64(0xABCD), []uint16{0, 0, 0, 0xABCD}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.desc.Encode(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, desc := range Documented {
		var value any
		switch desc.Kind {
		case Scalar:
			value = uint16(0x1234)
		case MultiWordInt:
			value = uint64(0x12345678)
		case FixedArray:
			value = []uint16{7, 9}
		}

		words, err := desc.Encode(value)
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", desc.Name, err)
		}
		if len(words) != int(desc.Block.Quantity) {
			t.Fatalf("%s: encoded width %d, want %d", desc.Name, len(words), desc.Block.Quantity)
		}
		if _, err := desc.Decode(words); err != nil {
			t.Fatalf("%s: Decode failed: %v", desc.Name, err)
		}
	}
}

func TestFormatSerialNumber(t *testing.T) {
	got := FormatSerialNumber([]uint16{0x00AB, 0x1234, 0x0000, 0xFFFF})
	if got != "00AB12340000FFFF" {
		t.Errorf("FormatSerialNumber() = %s", got)
	}
}

func TestFormatFirmware(t *testing.T) {
	if got := FormatFirmware([]uint16{2, 14}); got != "2.14" {
		t.Errorf("FormatFirmware() = %s, want 2.14", got)
	}
}

func TestDocumentedBlocksInRange(t *testing.T) {
	for _, desc := range Documented {
		if desc.Block.Quantity == 0 {
			t.Errorf("%s: zero quantity", desc.Name)
		}
		if int(desc.Block.Start)+int(desc.Block.Quantity)-1 > MaxAddress {
			t.Errorf("%s: block exceeds address space", desc.Name)
		}
	}
}
