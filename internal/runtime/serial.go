// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package runtime

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/vive_track/internal/device"
	vlog "github.com/relabs-tech/vive_track/internal/log"
)

// Serial reads ticks from a tracking bridge attached to a serial port.
type Serial struct {
	opts   serial.OpenOptions
	open   func(serial.OpenOptions) (io.ReadWriteCloser, error)
	logger *slog.Logger

	port        io.ReadWriteCloser
	reader      *bufio.Reader
	seq         int64
	controllers map[int]device.ControllerState
}

// NewSerial returns a runtime reading from portName at baud.
func NewSerial(portName string, baud uint) *Serial {
	return &Serial{
		opts: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		open:        serial.Open,
		logger:      vlog.Discard(),
		controllers: map[int]device.ControllerState{},
	}
}

// WithLogger sets the logger used for dropped sentences.
func (s *Serial) WithLogger(l *slog.Logger) *Serial {
	s.logger = l
	return s
}

// WithOpener replaces serial.Open (tests, pipes).
func (s *Serial) WithOpener(open func(serial.OpenOptions) (io.ReadWriteCloser, error)) *Serial {
	s.open = open
	return s
}

// Connect opens the port. A port that is already open is closed first.
func (s *Serial) Connect() error {
	if err := RegisterSentences(); err != nil {
		return err
	}
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	port, err := s.open(s.opts)
	if err != nil {
		return &ConnectionError{Diagnostic: "open " + s.opts.PortName, Err: err}
	}
	s.port = port
	s.reader = bufio.NewReader(port)
	s.logger.Info("serial runtime connected", "port", s.opts.PortName, "baud", s.opts.BaudRate)
	return nil
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.reader = nil
	return err
}

// Seq returns the sequence number of the last tick read.
func (s *Serial) Seq() int64 {
	return s.seq
}

// UpdateTick reads sentences until a complete tick has arrived. DEV
// sentences seen before the first TCK are dropped. A read failure closes
// the tick stream and is reported as a *ConnectionError.
func (s *Serial) UpdateTick() (device.Table, error) {
	if s.reader == nil {
		return nil, ErrNotConnected
	}

	var table device.Table
	expect := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// the bridge is gone; the caller has to Connect again
			s.reader = nil
			return nil, &ConnectionError{Diagnostic: "read " + s.opts.PortName, Err: err}
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// partial sentences right after opening the port are normal
			s.logger.Debug("serial runtime: drop sentence", "line", line, "err", err)
			continue
		}

		switch m := sentence.(type) {
		case TCK:
			s.seq = m.Seq
			expect = m.Devices
			table = table[:0]
		case DEV:
			if expect < 0 {
				continue
			}
			table = append(table, m.Raw)
		case BTN:
			s.controllers[m.ID] = m.State
		}

		if expect >= 0 && len(table) == expect {
			return table, nil
		}
	}
}

// QueryControllerState returns the last BTN state seen for id.
func (s *Serial) QueryControllerState(id int) (device.ControllerState, error) {
	if s.reader == nil {
		return device.ControllerState{}, ErrNotConnected
	}
	return s.controllers[id], nil
}
