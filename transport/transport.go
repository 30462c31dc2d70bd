// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package transport provides line-oriented connections to devices.
//
// A [Port] exchanges messages delimited by a terminator sequence, as is
// common for instruments controlled over a serial line.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// DefaultTerm is the default message terminator.
const DefaultTerm = "\n"

// A Port is a reliable ordered stream of messages shared with a device.
//
// The methods of an implementation must be safe for concurrent use by one
// sender and one receiver.
type Port interface {
	// Send the message to the device, followed by the terminator.
	Send(msg []byte) error

	// Recv reads the next message from the device, up to and not including
	// the terminator.
	Recv() ([]byte, error)

	// Close the port, causing any pending send or receive operations to
	// terminate and report an error. After a port is closed, all further
	// operations on it must report an error.
	Close() error
}

// IO constructs a port that receives from r and sends to wc, with messages
// delimited by term. If term == "", DefaultTerm is used.
func IO(r io.Reader, wc io.WriteCloser, term string) IOPort {
	if term == "" {
		term = DefaultTerm
	}
	return IOPort{r: bufio.NewReader(r), w: bufio.NewWriter(wc), c: wc, term: []byte(term)}
}

// An IOPort sends and receives messages on a reader and a writer.
type IOPort struct {
	r    *bufio.Reader
	w    *bufio.Writer
	c    io.Closer
	term []byte
}

// Send implements a method of the [Port] interface.
func (p IOPort) Send(msg []byte) error {
	if _, err := p.w.Write(msg); err != nil {
		return err
	}
	if _, err := p.w.Write(p.term); err != nil {
		return err
	}
	return p.w.Flush()
}

// Recv implements a method of the [Port] interface.  A message truncated by
// the end of input reports io.ErrUnexpectedEOF.
func (p IOPort) Recv() ([]byte, error) {
	last := p.term[len(p.term)-1]
	var msg []byte
	for {
		chunk, err := p.r.ReadSlice(last)
		msg = append(msg, chunk...)
		if err == nil {
			if bytes.HasSuffix(msg, p.term) {
				return msg[:len(msg)-len(p.term)], nil
			}
			continue
		} else if errors.Is(err, bufio.ErrBufferFull) {
			continue
		} else if errors.Is(err, io.EOF) && len(msg) != 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
}

// Close implements a method of the [Port] interface.
func (p IOPort) Close() error { return p.c.Close() }

// Term reports the message terminator of p.
func (p IOPort) Term() string { return string(p.term) }

// An Opener opens a byte stream to the device at url with the given baud
// rate. A read with no data available after timeout (if positive) reports
// os.ErrDeadlineExceeded.
type Opener func(url string, baud int, timeout time.Duration) (io.ReadWriteCloser, error)

// OpenSerial is an Opener for a local serial port, such as /dev/ttyUSB0.
func OpenSerial(url string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(url, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return serialPort{port}, nil
}

// serialPort adapts a serial.Port, whose Read reports (0, nil) on timeout.
type serialPort struct{ serial.Port }

func (s serialPort) Read(data []byte) (int, error) {
	nr, err := s.Port.Read(data)
	if nr == 0 && err == nil && len(data) != 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return nr, err
}

// SerialPorts reports the names of the serial ports available on the host.
func SerialPorts() ([]string, error) { return serial.GetPortsList() }
