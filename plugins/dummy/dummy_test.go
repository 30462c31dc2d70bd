// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package dummy_test

import (
	"context"
	"testing"
	"time"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/capability"
	"github.com/creachadair/kpal/kpaltest"
	"github.com/creachadair/kpal/plugins/dummy"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestDummy(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	c := kpaltest.NewCore(t)
	events := make(chan capability.Produced, 4)
	c.HandleEvent(capability.EventProduced, func(_ context.Context, ev kpal.Event) error {
		events <- ev.Payload.(capability.Produced)
		return nil
	})

	ctx := context.Background()
	p := kpaltest.MustBuild(t, c, dummy.Type, "d0", kpal.Args{
		"msg":      kpal.Text("hello"),
		"capacity": kpal.Int(16),
	})
	d := p.Driver().(*dummy.Driver)
	if d.Message != "hello" {
		t.Errorf("Message: got %q, want hello", d.Message)
	}

	t.Run("Defaults", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			want kpal.Value
		}{
			{"foo", kpal.Int(42)},
			{"bar", kpal.Float(42)},
			{"baz", kpal.Text("42")},
		} {
			got, err := c.Get(ctx, "d0", tc.name)
			if err != nil {
				t.Errorf("Get %q: unexpected error: %v", tc.name, err)
			} else if !got.Equal(tc.want) {
				t.Errorf("Get %q: got %v, want %v", tc.name, got, tc.want)
			}
		}
	})

	t.Run("Set", func(t *testing.T) {
		if err := c.Set(ctx, "d0", "bar", kpal.Int(3)); err != nil {
			t.Fatalf("Set bar: unexpected error: %v", err)
		}
		if got, err := c.Get(ctx, "d0", "bar"); err != nil || !got.Equal(kpal.Float(3)) {
			t.Errorf("Get bar: got (%v, %v), want 3", got, err)
		}
		if err := c.Set(ctx, "d0", "foo", kpal.Text("x")); err == nil {
			t.Error("Set foo to text: got nil, want error")
		}
	})

	t.Run("Produce", func(t *testing.T) {
		r := d.Ring()
		if r.Capacity() != 8 {
			t.Errorf("Capacity: got %d, want 8", r.Capacity())
		}
		for range 2 {
			if err := c.Produce(ctx, "d0"); err != nil {
				t.Fatalf("Produce: unexpected error: %v", err)
			}
		}
		if d.Produced != 4 {
			t.Errorf("Produced: got %d, want 4", d.Produced)
		}
		if got := r.Cursor(); got != 4 {
			t.Errorf("Cursor: got %d, want 4", got)
		}
		var got []int16
		for i := range 4 {
			got = append(got, r.Item(i).Int16s()...)
		}
		if diff := cmp.Diff([]int16{0, 1, 0, 1}, got); diff != "" {
			t.Errorf("Items (-want, +got):\n%s", diff)
		}

		for _, wantSlot := range []int{0, 2} {
			select {
			case ev := <-events:
				want := capability.Produced{Buffer: r.Name(), Slot: wantSlot, Items: 2}
				if ev != want {
					t.Errorf("Event: got %+v, want %+v", ev, want)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Timed out waiting for a produced event")
			}
		}
	})
}

func TestPattern(t *testing.T) {
	tests := []struct {
		format buffer.Format
		shape  []int
		want   buffer.Item
	}{
		{buffer.Int16, nil, buffer.Int16Item(0, 1)},
		{buffer.Mono8, []int{2, 2}, buffer.Mono8Item(0, 1, 0, 1)},
		{buffer.Mono16, []int{3}, buffer.Mono16Item(0, 1, 0, 1, 0, 1)},
		{buffer.Float64, []int{1}, buffer.Float64Item(0, 1)},
		{buffer.Float32, []int{2}, buffer.Float32Item(0, 1)},
		{buffer.Mono12p, []int{2}, buffer.Mono12pItem(0, 1)},
		{buffer.Mono12p, []int{2, 3}, buffer.Mono12pItem(0, 1, 0, 1, 0, 1)},
	}
	for _, tc := range tests {
		got := dummy.Pattern(tc.format, tc.shape)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Pattern(%v, %v) (-want, +got):\n%s", tc.format, tc.shape, diff)
		}
		n, err := buffer.ItemBytes(tc.shape, tc.format)
		if err != nil {
			t.Fatalf("ItemBytes: unexpected error: %v", err)
		}
		if len(got.Data)%n != 0 {
			t.Errorf("Pattern(%v, %v): %d bytes is not a whole number of %d-byte items",
				tc.format, tc.shape, len(got.Data), n)
		}
	}
}
