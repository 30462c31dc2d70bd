// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/catalog"
	"github.com/creachadair/kpal/kpaltest"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

var gizmo = kpal.MustDefine(kpal.TypeSpec{
	Name: "gizmo",
	Help: "A device that does nothing",
	New:  func() kpal.Driver { return new(kpaltest.Counter) },
	Attributes: []kpal.Attribute{{
		Name:        "mode",
		Description: "Operating mode",
		Kind:        kpal.KindText,
		Get: func(context.Context, *kpal.Peripheral) (kpal.Value, error) {
			return kpal.Text("idle"), nil
		},
	}, {
		Name: "reset",
		Set:  func(context.Context, *kpal.Peripheral, kpal.Value) error { return nil },
	}},
	Params: []kpal.Param{
		{Name: "port", Kind: kpal.KindText, Required: true, Help: "Device port"},
		{Name: "rate", Kind: kpal.KindFloat, Default: kpal.Float(2.5)},
	},
})

func TestCatalogUsage(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	cat := catalog.New().Add(gizmo, kpaltest.CounterType)
	if got, want := cat.Len(), 2; got != want {
		t.Errorf("Len: got %d, want %d", got, want)
	}
	if diff := cmp.Diff([]string{"counter", "gizmo"}, cat.Names()); diff != "" {
		t.Errorf("Names (-want, +got):\n%s", diff)
	}
	if got := cat.Lookup("gizmo"); got != gizmo {
		t.Errorf("Lookup(gizmo): got %v, want %v", got, gizmo)
	}
	if got := cat.Lookup("nonesuch"); got != nil {
		t.Errorf("Lookup(nonesuch): got %v, want nil", got)
	}

	// Copies of a catalog share the same mapping.
	cp := cat
	cp.Add(kpal.MustDefine(kpal.TypeSpec{
		Name: "extra",
		New:  func() kpal.Driver { return new(kpaltest.Counter) },
	}))
	if cat.Lookup("extra") == nil {
		t.Error("Lookup(extra): type added to a copy is missing")
	}

	c := kpaltest.NewCore(t)
	ctx := context.Background()

	t.Run("Build", func(t *testing.T) {
		p, err := cat.Build(ctx, c, "counter", "c0", nil)
		if err != nil {
			t.Fatalf("Build counter: unexpected error: %v", err)
		}
		if p.Type() != kpaltest.CounterType {
			t.Errorf("Build: got type %v, want %v", p.Type(), kpaltest.CounterType)
		}
		if got := c.Peripheral("c0"); got != p {
			t.Errorf("Peripheral(c0): got %v, want %v", got, p)
		}
	})

	t.Run("BuildUnknown", func(t *testing.T) {
		p, err := cat.Build(ctx, c, "nonesuch", "n0", nil)
		if !errors.Is(err, catalog.ErrUnknownType) {
			t.Errorf("Build nonesuch: got (%v, %v), want %v", p, err, catalog.ErrUnknownType)
		}
		if got := c.Names(); len(got) != 1 {
			t.Errorf("Names: got %q, want only c0", got)
		}
	})

	t.Run("BuildArgs", func(t *testing.T) {
		_, err := cat.Build(ctx, c, "gizmo", "g0", nil)
		if !errors.Is(err, kpal.ErrInvalidArgs) {
			t.Errorf("Build gizmo without port: got %v, want %v", err, kpal.ErrInvalidArgs)
		}
		if _, err := cat.Build(ctx, c, "gizmo", "g0", kpal.Args{"port": kpal.Text("/dev/null")}); err != nil {
			t.Errorf("Build gizmo: unexpected error: %v", err)
		}
	})
}

func TestDescribe(t *testing.T) {
	cat := catalog.New().Add(gizmo)
	want := []catalog.TypeInfo{{
		Name: "gizmo",
		Help: "A device that does nothing",
		Params: []catalog.ParamInfo{
			{Name: "port", Kind: "text", Required: true, Help: "Device port"},
			{Name: "rate", Kind: "float", Default: 2.5},
		},
		Attributes: []catalog.AttrInfo{
			{Name: "mode", Description: "Operating mode", Kind: "text", Access: "ro"},
			{Name: "reset", Access: "wo"},
		},
	}}
	if diff := cmp.Diff(want, cat.Describe()); diff != "" {
		t.Errorf("Describe (-want, +got):\n%s", diff)
	}

	data, err := cat.Encode()
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	t.Logf("Encoded: %s", data)
	got, err := catalog.Decode(data)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	// Decoded defaults are generic JSON values; float64 matches here.
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode (-want, +got):\n%s", diff)
	}
}
