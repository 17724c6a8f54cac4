// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vpaudio/modbus-audio/internal/device/model"
)

// SQLStorage persists registers in a SQL database, one row per written
// register. Only non-zero state ends up in the table, so a factory-fresh
// unit costs nothing.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	regs   *model.Registers
}

// NewSQLStorage creates a new SQLStorage.
// Note: The driver (e.g. sqlite3) must be imported by the main package.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the DB and loads the stored registers.
func (s *SQLStorage) Load() (*model.Registers, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	regs := model.NewRegisters()
	s.regs = regs

	rows, err := db.Query("SELECT address, value FROM audio_registers")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, val int
		if err := rows.Scan(&addr, &val); err != nil {
			continue
		}
		if addr > model.MaxAddress {
			continue
		}
		regs.Holding[addr] = uint16(val)
	}

	return regs, nil
}

func (s *SQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS audio_registers (
		address INTEGER PRIMARY KEY,
		value INTEGER
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save is a no-op: OnWrite keeps the table current and a full dump would
// write 64k rows.
func (s *SQLStorage) Save(regs *model.Registers) error {
	return nil
}

// OnWrite upserts the changed registers to the DB. OnWrite runs after
// the model update, so the current values can be read back from it.
func (s *SQLStorage) OnWrite(address, quantity uint16) {
	if s.db == nil || s.regs == nil {
		return
	}

	for i := 0; i < int(quantity); i++ {
		addr := int(address) + i
		val := int64(s.regs.Get(uint16(addr)))

		query := "INSERT INTO audio_registers (address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value=excluded.value"
		if _, err := s.db.Exec(query, addr, val); err != nil {
			slog.Error("Failed to persist register", "addr", addr, "err", err)
		}
	}
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
