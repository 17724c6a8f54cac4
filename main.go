// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	// SQL persistence backend for the simulated unit.
	_ "github.com/mattn/go-sqlite3"

	"github.com/vpaudio/modbus-audio/internal/audio"
	"github.com/vpaudio/modbus-audio/internal/config"
	"github.com/vpaudio/modbus-audio/modbus"
	"github.com/vpaudio/modbus-audio/transport"
	"github.com/vpaudio/modbus-audio/transport/local"
	"github.com/vpaudio/modbus-audio/transport/rtu"
)

func main() {
	flags := pflag.NewFlagSet("modbus-audio", pflag.ExitOnError)
	flags.Usage = func() { usage(flags) }

	configFile := flags.String("config", "", "Path to config file")
	flags.String("device", "/dev/ttyUSB0", "Serial device")
	flags.Int("baud-rate", 57600, "Serial baud rate")
	flags.Int("data-bits", 8, "Serial data bits")
	flags.String("parity", "N", "Serial parity (N, E, O)")
	flags.Int("stop-bits", 1, "Serial stop bits")
	flags.Duration("timeout", time.Second, "Response timeout")
	flags.Int("unit", 1, "Unit (slave) address of the target device")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Log file path, empty for stdout")
	flags.String("persistence", "memory", "Simulator register storage (memory, file, mmap, sql)")
	flags.String("persistence-path", "", "Simulator storage path or DSN")

	useLocal := flags.Bool("local", false, "Talk to an in-process simulated unit instead of the serial bus")
	count := flags.Int("count", 1, "Number of registers to read")
	addressesArg := flags.String("addresses", "", "Comma-separated hop chain, e.g. 1,116,225")
	zonesArg := flags.String("zones", "", "Comma-separated destination zones, e.g. 22")

	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	args := flags.Args()
	if len(args) == 0 {
		usage(flags)
		os.Exit(2)
	}
	command, args := args[0], args[1:]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, command, args, *useLocal, *count, *addressesArg, *zonesArg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string, useLocal bool, count int, addressesArg, zonesArg string) error {
	switch command {
	case "scan":
		return runScan(ctx, cfg)
	case "simulate":
		return runSimulate(ctx, cfg)
	}

	var tr transport.Transport
	if useLocal {
		tr = local.NewClient(cfg.Simulator)
	} else {
		tr = rtu.NewClient(cfg.Serial)
	}

	client, err := audio.NewClient(ctx, tr, byte(cfg.UnitID))
	if err != nil {
		return err
	}
	defer client.Close()

	switch command {
	case "info":
		return runInfo(ctx, client)
	case "read":
		return runRead(ctx, client, args, count)
	case "write":
		return runWrite(ctx, client, args)
	case "start-audio":
		return runStartAudio(ctx, client, addressesArg, zonesArg)
	case "stop-audio":
		return runStopAudio(ctx, client)
	case "probe":
		return runProbe(ctx, client)
	case "serial-number":
		return runSerialNumber(ctx, client)
	case "frequency":
		return runFrequency(ctx, client)
	case "set-frequency":
		return runSetFrequency(ctx, client, args)
	case "dump-registers":
		return runDumpRegisters(ctx, client)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runInfo(ctx context.Context, client *audio.Client) error {
	info, err := client.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRead(ctx context.Context, client *audio.Client, args []string, count int) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read ADDRESS [--count N]")
	}
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	values, err := client.ReadRegisters(ctx, address, count)
	if err != nil {
		return err
	}
	for i, v := range values {
		fmt.Printf("0x%04X: %d\n", address+i, v)
	}
	return nil
}

func runWrite(ctx context.Context, client *audio.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: write ADDRESS VALUE")
	}
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	value, err := parseValue(args[1])
	if err != nil {
		return err
	}

	if err := client.WriteRegister(ctx, address, value); err != nil {
		return err
	}
	fmt.Printf("Register 0x%04X set to %d\n", address, value)
	return nil
}

func runStartAudio(ctx context.Context, client *audio.Client, addressesArg, zonesArg string) error {
	if addressesArg == "" {
		return fmt.Errorf("usage: start-audio --addresses A,B,... [--zones Z,...]")
	}
	addresses, err := parseList(addressesArg)
	if err != nil {
		return fmt.Errorf("invalid --addresses: %w", err)
	}
	var zones []uint16
	if zonesArg != "" {
		if zones, err = parseList(zonesArg); err != nil {
			return fmt.Errorf("invalid --zones: %w", err)
		}
	}

	if err := client.StartAudioStream(ctx, addresses, zones); err != nil {
		return err
	}
	if zones != nil {
		fmt.Printf("Started audio stream with hop chain %v and zones %v (TxControl=2)\n", addresses, zones)
	} else {
		fmt.Printf("Started audio stream with hop chain %v (TxControl=2)\n", addresses)
	}
	return nil
}

func runStopAudio(ctx context.Context, client *audio.Client) error {
	if err := client.StopAudioStream(ctx); err != nil {
		return err
	}
	fmt.Println("Stopped audio stream (TxControl=1)")
	return nil
}

func runProbe(ctx context.Context, client *audio.Client) error {
	if err := client.Probe(ctx); err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	fmt.Println("Probe succeeded: device responded")
	return nil
}

func runSerialNumber(ctx context.Context, client *audio.Client) error {
	serial, err := client.SerialNumber(ctx)
	if err != nil {
		return err
	}
	if strings.Trim(serial, "0") == "" {
		return fmt.Errorf("serial number register returned only zeroes")
	}
	fmt.Printf("Device serial number: %s\n", serial)
	return nil
}

func runFrequency(ctx context.Context, client *audio.Client) error {
	khz, err := client.Frequency(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("RF frequency: %d kHz\n", khz)
	return nil
}

func runSetFrequency(ctx context.Context, client *audio.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: set-frequency KHZ")
	}
	khz, err := parseValue(args[0])
	if err != nil {
		return err
	}
	if err := client.SetFrequency(ctx, khz); err != nil {
		return err
	}
	fmt.Printf("RF frequency set to %d kHz\n", khz)
	return nil
}

func runDumpRegisters(ctx context.Context, client *audio.Client) error {
	rows := client.DumpRegisters(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tQTY\tVALUE")
	for _, row := range rows {
		var rendered string
		switch {
		case row.WriteOnly:
			rendered = "write-only"
		case row.Err != nil:
			rendered = fmt.Sprintf("error: %v", row.Err)
		case row.Quantity == 1:
			rendered = strconv.Itoa(int(row.Values[0]))
		default:
			rendered = fmt.Sprintf("%v", row.Values)
		}
		fmt.Fprintf(w, "%s\t0x%04X\t%d\t%s\n", row.Name, row.Address, row.Quantity, rendered)
	}
	return w.Flush()
}

// runScan tries common serial configurations until one answers a probe.
func runScan(ctx context.Context, cfg *config.Config) error {
	baudRates := []int{9600, 19200, 38400, 57600, 115200}
	parities := []string{"E", "N", "O"}
	stopBits := []int{1, 2}

	attempts := 0
	for _, baudRate := range baudRates {
		for _, parity := range parities {
			for _, bits := range stopBits {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				attempts++

				serialCfg := cfg.Serial
				serialCfg.BaudRate = baudRate
				serialCfg.Parity = parity
				serialCfg.StopBits = bits

				if err := probeOnce(ctx, serialCfg, byte(cfg.UnitID)); err != nil {
					slog.Debug("scan attempt failed", "baud", baudRate, "parity", parity, "stopBits", bits, "err", err)
					continue
				}

				fmt.Printf("Probe succeeded: baud=%d parity=%s stop_bits=%d unit=%d attempt=%d\n",
					baudRate, parity, bits, cfg.UnitID, attempts)
				return nil
			}
		}
	}
	return fmt.Errorf("probe failed after %d combinations", attempts)
}

func probeOnce(ctx context.Context, serialCfg config.SerialConfig, unitID byte) error {
	tr := rtu.NewClient(serialCfg)
	client, err := audio.NewClient(ctx, tr, unitID)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Probe(ctx)
}

// runSimulate answers RTU requests on the configured serial device
// against an in-process simulated unit.
func runSimulate(ctx context.Context, cfg *config.Config) error {
	sim := local.NewClient(cfg.Simulator)
	defer sim.Close()
	dev := sim.Device()

	unitID := byte(cfg.UnitID)
	server := rtu.NewServer(cfg.Serial)

	slog.Info("Simulating VP unit", "unit", cfg.UnitID, "device", cfg.Serial.Device)
	return server.Start(ctx, func(ctx context.Context, unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		if unit != unitID {
			// Not addressed to us: stay silent, another unit may answer.
			return modbus.ProtocolDataUnit{}, fmt.Errorf("request for unit %d ignored", unit)
		}
		return dev.Process(pdu)
	})
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// parseAddress accepts decimal or 0x-prefixed hexadecimal. Out-of-range
// values pass through so the client can report them as invalid.
func parseAddress(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return int(v), nil
}

// parseValue accepts a 16-bit decimal or 0x-prefixed hexadecimal value.
func parseValue(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register value %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseList(s string) ([]uint16, error) {
	parts := strings.Split(s, ",")
	values := make([]uint16, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parseValue(part)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func usage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `modbus-audio controls VP RF audio transmitters/receivers over Modbus RTU.

Usage: modbus-audio [flags] COMMAND [args]

Commands:
  info                          Print a device info snapshot as JSON
  read ADDRESS [--count N]      Read N holding registers
  write ADDRESS VALUE           Write one holding register
  start-audio --addresses A,B,... [--zones Z,...]
                                Program the hop chain and start streaming
  stop-audio                    Stop streaming
  probe                         Check that the unit answers
  scan                          Try common serial configurations
  serial-number                 Read the device serial number
  frequency                     Read the RF frequency register
  set-frequency KHZ             Write the RF frequency register
  dump-registers                Read every documented register block
  simulate                      Serve a simulated unit on the serial device

Addresses and values accept decimal or 0x-prefixed hexadecimal.

Flags:
%s`, flags.FlagUsages())
}
