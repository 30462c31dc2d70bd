// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package capability implements reusable capabilities for peripheral
// drivers.
//
// A driver embeds or holds the capabilities it needs, and lists them from
// its Capabilities method in build order:
//
//	type meter struct {
//	   capability.Serial
//	}
//
//	func (m *meter) Capabilities() []kpal.Capability {
//	   return []kpal.Capability{&m.Serial}
//	}
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/transport"
	"go.uber.org/zap"
)

// ErrNotBuilt is reported by a capability used before it is built or after
// it has been torn down.
var ErrNotBuilt = errors.New("capability is not built")

// Serial is a capability for a device that communicates over a serial line
// using terminated messages.
//
// Build parameters:
//
//   - url: the device path, for example /dev/ttyUSB0 (required)
//   - baudrate: the line rate (default 115200)
//   - term_chars: the message terminator (default "\n")
//   - timeout: the receive timeout in seconds; 0 means no timeout
type Serial struct {
	// Open is used to open the device. If nil, transport.OpenSerial is used.
	Open transport.Opener

	port transport.Port
	url  string
}

// Params implements a method of the [kpal.Capability] interface.
func (*Serial) Params() []kpal.Param {
	return []kpal.Param{
		{Name: "url", Kind: kpal.KindText, Required: true, Help: "Serial device path"},
		{Name: "baudrate", Kind: kpal.KindInt, Default: kpal.Int(115200), Help: "Line rate in bits per second"},
		{Name: "term_chars", Kind: kpal.KindText, Default: kpal.Text(transport.DefaultTerm), Help: "Message terminator"},
		{Name: "timeout", Kind: kpal.KindFloat, Default: kpal.Float(0), Help: "Receive timeout in seconds (0 for none)"},
	}
}

// Build implements a method of the [kpal.Capability] interface.
func (s *Serial) Build(_ context.Context, p *kpal.Peripheral, args kpal.Args) error {
	open := s.Open
	if open == nil {
		open = transport.OpenSerial
	}
	url, baud := args.Text("url"), int(args.Int("baudrate"))
	if baud <= 0 {
		return fmt.Errorf("%w: invalid baud rate %d", kpal.ErrInvalidArgs, baud)
	}
	timeout := time.Duration(args.Float("timeout") * float64(time.Second))
	rwc, err := open(url, baud, timeout)
	if err != nil {
		return fmt.Errorf("open serial port: %w", err)
	}
	s.port = transport.IO(rwc, rwc, args.Text("term_chars"))
	s.url = url
	p.Logger().Info("opened serial port", zap.String("url", url), zap.Int("baudrate", baud))
	return nil
}

// Teardown implements a method of the [kpal.Capability] interface.
func (s *Serial) Teardown() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Send sends msg to the device, followed by the terminator.
func (s *Serial) Send(msg []byte) error {
	if s.port == nil {
		return ErrNotBuilt
	}
	return s.port.Send(msg)
}

// Recv receives the next message from the device, without its terminator.
func (s *Serial) Recv() ([]byte, error) {
	if s.port == nil {
		return nil, ErrNotBuilt
	}
	return s.port.Recv()
}

// Query sends msg to the device and returns its reply.
func (s *Serial) Query(msg []byte) ([]byte, error) {
	if err := s.Send(msg); err != nil {
		return nil, err
	}
	return s.Recv()
}

// URL reports the device path of the serial port.
func (s *Serial) URL() string { return s.url }
