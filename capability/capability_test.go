// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package capability_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/capability"
	"github.com/creachadair/kpal/kpaltest"
	"github.com/creachadair/taskgroup"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

// instrument is a driver with both a serial line and a buffer.
type instrument struct {
	capability.Serial
	capability.Producer
}

func (d *instrument) Capabilities() []kpal.Capability {
	return []kpal.Capability{&d.Serial, &d.Producer}
}

// fakeDevice is the far end of a serial connection opened by a test opener.
type fakeDevice struct {
	url  string
	baud int
	conn net.Conn
}

func testOpener(dev chan<- fakeDevice) func(string, int, time.Duration) (io.ReadWriteCloser, error) {
	return func(url string, baud int, _ time.Duration) (io.ReadWriteCloser, error) {
		if url == "/dev/missing" {
			return nil, errors.New("no such device")
		}
		near, far := net.Pipe()
		dev <- fakeDevice{url: url, baud: baud, conn: far}
		return near, nil
	}
}

func instrumentType(dev chan<- fakeDevice) *kpal.Type {
	return kpal.MustDefine(kpal.TypeSpec{
		Name: "instrument",
		New: func() kpal.Driver {
			return &instrument{Serial: capability.Serial{Open: testOpener(dev)}}
		},
	})
}

func TestParams(t *testing.T) {
	typ := instrumentType(nil)
	var names []string
	for _, p := range typ.Params() {
		names = append(names, p.Name)
	}
	want := []string{"url", "baudrate", "term_chars", "timeout", "capacity", "format", "shape", "shm_name"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Params (-want, +got):\n%s", diff)
	}
}

func TestSerial(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	c := kpaltest.NewCore(t)

	devs := make(chan fakeDevice, 1)
	p := kpaltest.MustBuild(t, c, instrumentType(devs), "meter", kpal.Args{
		"url":        kpal.Text("/dev/ttyFAKE"),
		"baudrate":   kpal.Int(9600),
		"term_chars": kpal.Text("\r\n"),
	})
	dev := <-devs
	defer dev.conn.Close()
	if dev.url != "/dev/ttyFAKE" || dev.baud != 9600 {
		t.Errorf("Opened %q at %d, want /dev/ttyFAKE at 9600", dev.url, dev.baud)
	}

	// The far end answers one query.
	g := taskgroup.New(nil)
	g.Go(func() error {
		buf := make([]byte, 64)
		nr, err := dev.conn.Read(buf)
		if err != nil {
			return err
		}
		if got := string(buf[:nr]); got != "*IDN?\r\n" {
			t.Errorf("Device got %q, want %q", got, "*IDN?\r\n")
		}
		_, err = dev.conn.Write([]byte("ACME,42\r\n"))
		return err
	})

	drv := p.Driver().(*instrument)
	rsp, err := drv.Query([]byte("*IDN?"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := string(rsp); got != "ACME,42" {
		t.Errorf("Query: got %q, want %q", got, "ACME,42")
	}
	if err := g.Wait(); err != nil {
		t.Errorf("Device: %v", err)
	}

	if err := c.Remove(t.Context(), "meter"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := drv.Send([]byte("late")); !errors.Is(err, capability.ErrNotBuilt) {
		t.Errorf("Send after teardown: got %v, want ErrNotBuilt", err)
	}
}

func TestSerialOpenFails(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	c := kpaltest.NewCore(t)

	_, err := c.Build(t.Context(), instrumentType(nil), "bad", kpal.Args{"url": kpal.Text("/dev/missing")})
	var berr *kpal.BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("Build: got %v, want *BuildError", err)
	}
	if berr.Step != "capability 0 (serial)" {
		t.Errorf("Build step: got %q, want capability 0", berr.Step)
	}
}

func TestProducer(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	c := kpaltest.NewCore(t)

	got := make(chan capability.Produced, 8)
	c.HandleEvent(capability.EventProduced, func(_ context.Context, ev kpal.Event) error {
		got <- ev.Payload.(capability.Produced)
		return nil
	})

	devs := make(chan fakeDevice, 1)
	p := kpaltest.MustBuild(t, c, instrumentType(devs), "cam", kpal.Args{
		"url":      kpal.Text("/dev/ttyCAM"),
		"capacity": kpal.Int(96),
		"format":   kpal.Text("mono16"),
		"shape":    kpal.Text("2, 3"),
	})
	defer (<-devs).conn.Close()

	drv := p.Driver().(*instrument)
	ring := drv.Ring()
	if ring.Capacity() != 8 || ring.Format() != buffer.Mono16 {
		t.Fatalf("Ring: capacity %d format %v, want 8 mono16", ring.Capacity(), ring.Format())
	}
	if diff := cmp.Diff([]int{2, 3}, ring.Shape()); diff != "" {
		t.Errorf("Shape (-want, +got):\n%s", diff)
	}

	px := make([]uint16, 12)
	for i := range px {
		px[i] = uint16(i)
	}
	slot, err := drv.Put(p, buffer.Mono16Item(px...))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if slot != 0 {
		t.Errorf("Put: got slot %d, want 0", slot)
	}
	if diff := cmp.Diff(px[6:], ring.Latest().Uint16s()); diff != "" {
		t.Errorf("Latest (-want, +got):\n%s", diff)
	}
	want := capability.Produced{Buffer: ring.Name(), Slot: 0, Items: 2}
	if diff := cmp.Diff(want, <-got); diff != "" {
		t.Errorf("Event (-want, +got):\n%s", diff)
	}

	if _, err := drv.Put(p, buffer.Mono8Item(1)); !errors.Is(err, buffer.ErrValidation) {
		t.Errorf("Put wrong format: got %v, want ErrValidation", err)
	}
}

func TestProducerBadArgs(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	c := kpaltest.NewCore(t)

	tests := []struct {
		name    string
		args    kpal.Args
		wantErr error
	}{
		{"Format", kpal.Args{"format": kpal.Text("rgb8")}, buffer.ErrUnsupportedFormat},
		{"Shape", kpal.Args{"shape": kpal.Text("3,x")}, kpal.ErrInvalidArgs},
		{"Sizing", kpal.Args{"capacity": kpal.Int(1)}, buffer.ErrSizing},
		{"Packing", kpal.Args{"format": kpal.Text("mono12p"), "shape": kpal.Text("7,7")}, buffer.ErrSizing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			devs := make(chan fakeDevice, 1)
			tc.args["url"] = kpal.Text("/dev/ttyX")
			_, err := c.Build(t.Context(), instrumentType(devs), tc.name, tc.args)
			if !errors.Is(err, tc.wantErr) || !errors.Is(err, kpal.ErrBuild) {
				t.Errorf("Build: got %v, want %v", err, tc.wantErr)
			}
			// The serial port was opened, then closed by the failed build.
			dev := <-devs
			if _, err := dev.conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
				t.Errorf("Device read after failed build: got %v, want EOF", err)
			}
			dev.conn.Close()
		})
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		input string
		want  []int
		ok    bool
	}{
		{"", nil, true},
		{"  ", nil, true},
		{"5", []int{5}, true},
		{"480,640", []int{480, 640}, true},
		{" 2 , 3 ,4", []int{2, 3, 4}, true},
		{"0", nil, false},
		{"-1,2", nil, false},
		{"a", nil, false},
		{"1,,2", nil, false},
	}
	for _, tc := range tests {
		got, err := capability.ParseShape(tc.input)
		if (err == nil) != tc.ok {
			t.Errorf("ParseShape(%q): got error %v, want ok=%v", tc.input, err, tc.ok)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseShape(%q) (-want, +got):\n%s", tc.input, diff)
		}
	}
}
