// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}

	// Without an explicit file, defaults apply.
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	cfg, err = Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("baud rate = %d, want 57600", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Parity != "N" || cfg.Serial.StopBits != 1 || cfg.Serial.DataBits != 8 {
		t.Errorf("serial defaults = %+v, want 8N1", cfg.Serial)
	}
	if cfg.Serial.Timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", cfg.Serial.Timeout)
	}
	if cfg.UnitID != 1 {
		t.Errorf("unit id = %d, want 1", cfg.UnitID)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
serial:
  device: /dev/ttyAMA0
  baud_rate: 19200
  parity: e
unit_id: 17
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyAMA0" {
		t.Errorf("device = %s", cfg.Serial.Device)
	}
	if cfg.Serial.BaudRate != 19200 {
		t.Errorf("baud rate = %d, want 19200", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Parity != "E" {
		t.Errorf("parity = %s, want E (upper-cased)", cfg.Serial.Parity)
	}
	if cfg.UnitID != 17 {
		t.Errorf("unit id = %d, want 17", cfg.UnitID)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoadRejectsBadUnitID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("unit_id: 300\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(nil, path); err == nil {
		t.Fatal("expected error for unit_id out of range")
	}
}
