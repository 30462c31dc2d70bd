// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package linedev defines a peripheral type for an instrument that accepts
// line-oriented text commands over a serial port, in the manner of SCPI.
package linedev

import (
	"context"
	"fmt"
	"strings"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/accessor"
	"github.com/creachadair/kpal/capability"
	"github.com/creachadair/kpal/transport"
	"go.uber.org/zap"
)

// Type is the linedev peripheral type, using a real serial port.
var Type = NewType(transport.OpenSerial)

// NewType defines a linedev peripheral type that opens its device with open.
func NewType(open transport.Opener) *kpal.Type {
	return kpal.MustDefine(kpal.TypeSpec{
		Name: "linedev",
		Help: "A line-oriented serial instrument",
		New:  func() kpal.Driver { return &Driver{line: capability.Serial{Open: open}} },
		Attributes: []kpal.Attribute{
			accessor.ReadOnly("idn", "Instrument identification", identify),
			{
				Name:        "command",
				Description: "Send a command line to the instrument",
				Kind:        kpal.KindText,
				Set:         accessor.Setter(command),
			},
			accessor.ReadOnly("reply", "Receive the next line from the instrument", reply),
			accessor.ReadOnly("sent", "Number of lines sent", func(_ context.Context, d *Driver) (int64, error) {
				return d.sent, nil
			}),
		},
		Params: []kpal.Param{
			{Name: "idn_query", Kind: kpal.KindText, Default: kpal.Text("*IDN?"), Help: "Identification query"},
		},
	})
}

// Driver is the driver of a linedev peripheral.
type Driver struct {
	line     capability.Serial
	idnQuery string
	log      *zap.Logger
	sent     int64
}

// Capabilities implements the [kpal.Driver] interface.
func (d *Driver) Capabilities() []kpal.Capability { return []kpal.Capability{&d.line} }

// Build implements the [kpal.Builder] interface.
func (d *Driver) Build(_ context.Context, p *kpal.Peripheral, args kpal.Args) error {
	d.idnQuery = args.Text("idn_query")
	if d.idnQuery == "" {
		return fmt.Errorf("%w: empty identification query", kpal.ErrInvalidArgs)
	}
	d.log = p.Logger()
	return nil
}

// URL reports the device path of d.
func (d *Driver) URL() string { return d.line.URL() }

func identify(_ context.Context, d *Driver) (string, error) {
	rsp, err := d.query(d.idnQuery)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(rsp)), nil
}

func command(_ context.Context, d *Driver, cmd string) error {
	if strings.ContainsAny(cmd, "\r\n") {
		return fmt.Errorf("%w: command contains a line break", kpal.ErrInvalidArgs)
	}
	if err := d.line.Send([]byte(cmd)); err != nil {
		return err
	}
	d.sent++
	d.log.Debug("sent command", zap.String("command", cmd))
	return nil
}

func reply(_ context.Context, d *Driver) (string, error) {
	rsp, err := d.line.Recv()
	return string(rsp), err
}

func (d *Driver) query(q string) ([]byte, error) {
	rsp, err := d.line.Query([]byte(q))
	if err == nil {
		d.sent++
	}
	return rsp, err
}
