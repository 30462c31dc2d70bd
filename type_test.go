// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/kpaltest"
	"github.com/creachadair/mds/mtest"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// capsDriver is a driver whose capabilities declare the given params.
type capsDriver []kpal.Capability

func (d capsDriver) Capabilities() []kpal.Capability { return d }

func declaring(groups ...[]kpal.Param) func() kpal.Driver {
	return func() kpal.Driver {
		var d capsDriver
		for _, g := range groups {
			d = append(d, &kpaltest.Recorder{Log: new(kpaltest.Log), Declare: g})
		}
		return d
	}
}

func TestDefineComposition(t *testing.T) {
	url := kpal.Param{Name: "url", Kind: kpal.KindText, Required: true, Help: "device URL"}
	baud := kpal.Param{Name: "baudrate", Kind: kpal.KindInt, Default: kpal.Int(115200)}
	capacity := kpal.Param{Name: "capacity", Kind: kpal.KindInt, Default: kpal.Int(1024)}

	t.Run("Merge", func(t *testing.T) {
		typ, err := kpal.Define(kpal.TypeSpec{
			Name:   "merged",
			New:    declaring([]kpal.Param{url, baud}, []kpal.Param{capacity, {Name: "url", Kind: kpal.KindText}}),
			Params: []kpal.Param{{Name: "msg", Kind: kpal.KindText}},
		})
		if err != nil {
			t.Fatalf("Define: unexpected error: %v", err)
		}
		want := []kpal.Param{url, baud, capacity, {Name: "msg", Kind: kpal.KindText}}
		if diff := cmp.Diff(want, typ.Params()); diff != "" {
			t.Errorf("Params (-want, +got):\n%s", diff)
		}
	})

	t.Run("DefaultSatisfiesRequired", func(t *testing.T) {
		typ, err := kpal.Define(kpal.TypeSpec{
			Name: "merged",
			New: declaring(
				[]kpal.Param{{Name: "n", Kind: kpal.KindInt, Required: true}},
				[]kpal.Param{{Name: "n", Kind: kpal.KindInt, Default: kpal.Int(3)}},
			),
		})
		if err != nil {
			t.Fatalf("Define: unexpected error: %v", err)
		}
		want := []kpal.Param{{Name: "n", Kind: kpal.KindInt, Default: kpal.Int(3)}}
		if diff := cmp.Diff(want, typ.Params()); diff != "" {
			t.Errorf("Params (-want, +got):\n%s", diff)
		}
	})

	conflicts := []struct {
		name   string
		groups [][]kpal.Param
	}{
		{"Kind", [][]kpal.Param{{url}, {{Name: "url", Kind: kpal.KindInt}}}},
		{"Default", [][]kpal.Param{{baud}, {{Name: "baudrate", Kind: kpal.KindInt, Default: kpal.Int(9600)}}}},
		{"DefaultKind", [][]kpal.Param{{{Name: "x", Kind: kpal.KindInt, Default: kpal.Text("1")}}}},
		{"EmptyName", [][]kpal.Param{{{Kind: kpal.KindInt}}}},
	}
	for _, tc := range conflicts {
		t.Run("Conflict"+tc.name, func(t *testing.T) {
			typ, err := kpal.Define(kpal.TypeSpec{Name: "bad", New: declaring(tc.groups...)})
			if !errors.Is(err, kpal.ErrComposition) {
				t.Fatalf("Define: got (%v, %v), want ErrComposition", typ, err)
			}
			var cerr *kpal.CompositionError
			if !errors.As(err, &cerr) || cerr.Type != "bad" {
				t.Errorf("Define: got %#v, want *CompositionError for type bad", err)
			}
			mtest.MustPanic(t, func() { kpal.MustDefine(kpal.TypeSpec{Name: "bad", New: declaring(tc.groups...)}) })
		})
	}

	t.Run("DuplicateAttribute", func(t *testing.T) {
		mtest.MustPanic(t, func() {
			kpal.Define(kpal.TypeSpec{
				Name:       "dup",
				New:        declaring(),
				Attributes: []kpal.Attribute{{Name: "a"}, {Name: "b"}, {Name: "a"}},
			})
		})
	})

	t.Run("MissingConstructor", func(t *testing.T) {
		if _, err := kpal.Define(kpal.TypeSpec{Name: "empty"}); !errors.Is(err, kpal.ErrComposition) {
			t.Errorf("Define: got %v, want ErrComposition", err)
		}
	})
}

func TestBuildArgs(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	c := kpaltest.NewCore(t)

	var got kpal.Args
	typ := kpal.MustDefine(kpal.TypeSpec{
		Name: "args",
		New: func() kpal.Driver {
			return capsDriver{&argsCap{got: &got}}
		},
		Params: []kpal.Param{
			{Name: "url", Kind: kpal.KindText, Required: true},
			{Name: "rate", Kind: kpal.KindFloat, Default: kpal.Float(1.5)},
			{Name: "note", Kind: kpal.KindText},
		},
	})

	tests := []struct {
		name    string
		args    kpal.Args
		want    kpal.Args
		wantErr error
	}{
		{"Defaults", kpal.Args{"url": kpal.Text("a")},
			kpal.Args{"url": kpal.Text("a"), "rate": kpal.Float(1.5)}, nil},
		{"Widen", kpal.Args{"url": kpal.Text("b"), "rate": kpal.Int(3), "note": kpal.Text("hi")},
			kpal.Args{"url": kpal.Text("b"), "rate": kpal.Float(3), "note": kpal.Text("hi")}, nil},
		{"Missing", kpal.Args{"rate": kpal.Float(2)}, nil, kpal.ErrInvalidArgs},
		{"Unknown", kpal.Args{"url": kpal.Text("c"), "bogus": kpal.Int(1)}, nil, kpal.ErrInvalidArgs},
		{"WrongKind", kpal.Args{"url": kpal.Int(5)}, nil, kpal.ErrInvalidArgs},
		{"NoNarrow", kpal.Args{"url": kpal.Text("d"), "rate": kpal.Text("2")}, nil, kpal.ErrInvalidArgs},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got = nil
			p, err := c.Build(t.Context(), typ, tc.name, tc.args)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) || !errors.Is(err, kpal.ErrBuild) {
					t.Fatalf("Build: got (%v, %v), want %v", p, err, tc.wantErr)
				}
				if got != nil {
					t.Errorf("Build ran with invalid args %v", got)
				}
				return
			} else if err != nil {
				t.Fatalf("Build: unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Build args (-want, +got):\n%s", diff)
			}
		})
	}
}

// argsCap is a capability that records its build arguments.
type argsCap struct{ got *kpal.Args }

func (argsCap) Params() []kpal.Param { return nil }
func (argsCap) Teardown() error      { return nil }

func (a *argsCap) Build(_ context.Context, _ *kpal.Peripheral, args kpal.Args) error {
	*a.got = args
	return nil
}

func TestParseArgs(t *testing.T) {
	params := []kpal.Param{
		{Name: "n", Kind: kpal.KindInt},
		{Name: "f", Kind: kpal.KindFloat},
		{Name: "s", Kind: kpal.KindText},
	}
	got, err := kpal.ParseArgs(params, map[string]string{"n": "12", "f": "0.5", "s": "x y"})
	if err != nil {
		t.Fatalf("ParseArgs: unexpected error: %v", err)
	}
	want := kpal.Args{"n": kpal.Int(12), "f": kpal.Float(0.5), "s": kpal.Text("x y")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseArgs (-want, +got):\n%s", diff)
	}
	if _, err := kpal.ParseArgs(params, map[string]string{"q": "1"}); !errors.Is(err, kpal.ErrInvalidArgs) {
		t.Errorf("ParseArgs unknown: got %v, want ErrInvalidArgs", err)
	}
	if _, err := kpal.ParseArgs(params, map[string]string{"n": "one"}); !errors.Is(err, kpal.ErrInvalidArgs) {
		t.Errorf("ParseArgs bad int: got %v, want ErrInvalidArgs", err)
	}
}
