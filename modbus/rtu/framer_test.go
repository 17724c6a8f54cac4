// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestCalculateRequestLength(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		header   []byte
		want     int
		wantErr  bool
	}{
		{"ReadHoldingRegisters", 0x03, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 8, false},
		{"WriteSingleRegister", 0x06, []byte{0x01, 0x06, 0x50, 0x35, 0x00, 0x02}, 8, false},
		{"WriteMultipleRegisters_ShortHeader", 0x10, []byte{0x01, 0x10, 0x00, 0x00, 0x00, 0x06}, 0, true},
		{"WriteMultipleRegisters_Valid", 0x10, []byte{0x01, 0x10, 0x00, 0x00, 0x00, 0x06, 0x0C}, 7 + 12 + 2, false},
		{"UnsupportedFunction", 0x05, []byte{0x01, 0x05}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRequestLength(tt.funcCode, tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("CalculateRequestLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("CalculateRequestLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateResponseLength(t *testing.T) {
	tests := []struct {
		name string
		adu  []byte
		want int
	}{
		{"ReadOneRegister", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, MinSize + 3},
		{"ReadSixRegisters", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x06}, MinSize + 13},
		{"WriteSingle", []byte{0x01, 0x06, 0x50, 0x35, 0x00, 0x02}, MinSize + 4},
		{"WriteMultiple", []byte{0x01, 0x10, 0x00, 0x00, 0x00, 0x06, 0x0C}, MinSize + 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateResponseLength(tt.adu); got != tt.want {
				t.Errorf("CalculateResponseLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadResponse(t *testing.T) {
	deadline := time.Now().Add(time.Second)

	t.Run("SkipsLeadingNoise", func(t *testing.T) {
		// Noise bytes precede a valid read-holding response from unit 1.
		frame := []byte{0xFF, 0x00, 0x01, 0x03, 0x02, 0x1B, 0xBC, 0xAA, 0xBB}
		got, err := ReadResponse(0x01, 0x03, bytes.NewReader(frame), deadline)
		if err != nil {
			t.Fatalf("ReadResponse failed: %v", err)
		}
		want := frame[2:]
		if !bytes.Equal(got, want) {
			t.Errorf("ReadResponse() = % X, want % X", got, want)
		}
	})

	t.Run("ExceptionResponse", func(t *testing.T) {
		frame := []byte{0x01, 0x83, 0x02, 0xAA, 0xBB}
		got, err := ReadResponse(0x01, 0x03, bytes.NewReader(frame), deadline)
		if err != nil {
			t.Fatalf("ReadResponse failed: %v", err)
		}
		if !bytes.Equal(got, frame) {
			t.Errorf("ReadResponse() = % X, want % X", got, frame)
		}
	})

	t.Run("InvalidLength", func(t *testing.T) {
		frame := []byte{0x01, 0x03, 0x00}
		_, err := ReadResponse(0x01, 0x03, bytes.NewReader(frame), deadline)
		var lengthErr *InvalidLengthError
		if !errors.As(err, &lengthErr) {
			t.Errorf("expected InvalidLengthError, got %v", err)
		}
	})
}
