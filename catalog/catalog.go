// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package catalog defines a registry of peripheral types, mapping type names
// to kpal.Type values for use with a kpal.Core.
//
// # Usage
//
// Construct a new empty catalog and add types to it:
//
//	cat := catalog.New().Add(dummy.Type, linedev.Type)
//
// To recover a type by name, use the Lookup method:
//
//	typ := cat.Lookup("dummy")
//
// To build a peripheral of a named type on a core, use Build:
//
//	p, err := cat.Build(ctx, core, "dummy", "d0", args)
//
// A catalog can describe its types in JSON, for example to report the build
// parameters and attributes of each type to a user:
//
//	data, err := cat.Encode()
package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/creachadair/kpal"
	"github.com/sugawarayuuta/sonnet"
)

// ErrUnknownType is reported for a type name not registered in a catalog.
var ErrUnknownType = errors.New("unknown peripheral type")

// A Catalog is a static mapping from type names to peripheral types.
type Catalog struct {
	types map[string]*kpal.Type
}

// New creates a new empty catalog.  It is safe to copy the resulting value,
// all copies share a reference to the same mapping.
func New() Catalog { return Catalog{types: make(map[string]*kpal.Type)} }

// Add adds the specified types to c under their names, and returns c to
// allow chaining. A type with the same name as an existing one replaces it.
//
// It is not safe to call Add while c is used concurrently by other goroutines
// without external synchronization.
func (c Catalog) Add(types ...*kpal.Type) Catalog {
	for _, t := range types {
		c.types[t.Name()] = t
	}
	return c
}

// Lookup returns the type registered as name, or nil.
func (c Catalog) Lookup(name string) *kpal.Type { return c.types[name] }

// Names returns the names of the types in c in sorted order.
func (c Catalog) Names() []string { return slices.Sorted(maps.Keys(c.types)) }

// Len reports the number of types in c.
func (c Catalog) Len() int { return len(c.types) }

// Build builds a peripheral of the type registered as typeName on core.
func (c Catalog) Build(ctx context.Context, core *kpal.Core, typeName, name string, args kpal.Args) (*kpal.Peripheral, error) {
	t := c.Lookup(typeName)
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return core.Build(ctx, t, name, args)
}

// TypeInfo describes a peripheral type.
type TypeInfo struct {
	Name       string      `json:"name"`
	Help       string      `json:"help,omitempty"`
	Params     []ParamInfo `json:"params,omitempty"`
	Attributes []AttrInfo  `json:"attributes,omitempty"`
}

// ParamInfo describes a build parameter of a peripheral type.
type ParamInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// AttrInfo describes an attribute of a peripheral type.
type AttrInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Access      string `json:"access"` // "rw", "ro", or "wo"
}

// Describe reports descriptions of the types in c, in order by name.
func (c Catalog) Describe() []TypeInfo {
	var out []TypeInfo
	for _, name := range c.Names() {
		t := c.types[name]
		ti := TypeInfo{Name: name, Help: t.Help()}
		for _, p := range t.Params() {
			ti.Params = append(ti.Params, ParamInfo{
				Name:     p.Name,
				Kind:     p.Kind.String(),
				Required: p.Required,
				Default:  p.Default.Interface(),
				Help:     p.Help,
			})
		}
		for _, aname := range t.Attributes() {
			a := t.Attribute(aname)
			ai := AttrInfo{Name: aname, Description: a.Description, Access: "rw"}
			if a.Kind != kpal.KindInvalid {
				ai.Kind = a.Kind.String()
			}
			if a.ReadOnly() {
				ai.Access = "ro"
			} else if a.WriteOnly() {
				ai.Access = "wo"
			}
			ti.Attributes = append(ti.Attributes, ai)
		}
		out = append(out, ti)
	}
	return out
}

// Encode encodes the descriptions of the types in c as JSON.
func (c Catalog) Encode() ([]byte, error) { return sonnet.Marshal(c.Describe()) }

// Decode decodes the output of Encode.
func Decode(data []byte) ([]TypeInfo, error) {
	var out []TypeInfo
	if err := sonnet.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
