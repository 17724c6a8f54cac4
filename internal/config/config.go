// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure.
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	UnitID int          `mapstructure:"unit_id"` // Bus address of the target unit
	Log    LogConfig    `mapstructure:"log"`

	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LogConfig defines logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path, empty for stdout
}

// SerialConfig defines RTU settings.
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"` // N, E, O
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"` // Response timeout
}

// SimulatorConfig defines settings for the simulated unit.
type SimulatorConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
	// TxControlWriteOnly makes reads of the transmit control register
	// fail with an illegal data address exception, as the hardware does.
	TxControlWriteOnly bool `mapstructure:"tx_control_write_only"`
}

// PersistenceConfig defines register storage settings for the simulator.
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // File path or DSN
}

// Load loads configuration from flags and an optional config file.
// Flag values take precedence over the file; defaults match the
// factory serial setup of the VP transmitter family (57600 8N1).
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 57600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", time.Second)
	v.SetDefault("unit_id", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("simulator.persistence.type", "memory")
	v.SetDefault("simulator.persistence.path", "")
	v.SetDefault("simulator.tx_control_write_only", false)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.modbus-audio")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// No config file is fine, defaults and flags apply.
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)

	if config.UnitID < 0 || config.UnitID > 255 {
		return nil, fmt.Errorf("unit_id %d out of range 0-255", config.UnitID)
	}

	return &config, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"serial.device":              "device",
		"serial.baud_rate":           "baud-rate",
		"serial.data_bits":           "data-bits",
		"serial.parity":              "parity",
		"serial.stop_bits":           "stop-bits",
		"serial.timeout":             "timeout",
		"unit_id":                    "unit",
		"log.level":                  "log-level",
		"log.file":                   "log-file",
		"simulator.persistence.type": "persistence",
		"simulator.persistence.path": "persistence-path",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.Timeout == 0 {
		s.Timeout = time.Second
	}
}
