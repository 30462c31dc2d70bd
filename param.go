// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// A Param declares a build argument accepted by a peripheral type or one of
// its capabilities.
type Param struct {
	Name     string
	Kind     Kind
	Required bool   // the argument must be given (unless Default is valid)
	Default  Value  // if valid, used when the argument is omitted
	Help     string // human-readable description
}

// Args are the build arguments of a peripheral, keyed by parameter name.
type Args map[string]Value

// Has reports whether a has a value for name.
func (a Args) Has(name string) bool { _, ok := a[name]; return ok }

// Int returns the integer value of name, or 0 if it is not set.
func (a Args) Int(name string) int64 { return a[name].Int() }

// Float returns the numeric value of name, or 0 if it is not set.
func (a Args) Float(name string) float64 { return a[name].Float() }

// Text returns the text of name, or "" if it is not set.
func (a Args) Text(name string) string {
	if v, ok := a[name]; ok {
		return v.Text()
	}
	return ""
}

// mergeParams merges the declarations in each group into a single list, in
// order of first appearance. Identical declarations of the same name merge.
// Declarations that disagree on kind, or that give different defaults,
// report a *CompositionError.
func mergeParams(typeName string, groups ...[]Param) ([]Param, error) {
	var out []Param
	pos := make(map[string]int)
	for _, group := range groups {
		for _, p := range group {
			if p.Name == "" {
				return nil, &CompositionError{Type: typeName, Reason: "empty parameter name"}
			} else if p.Default.IsValid() && p.Default.Kind() != p.Kind {
				return nil, &CompositionError{Type: typeName, Param: p.Name,
					Reason: fmt.Sprintf("default %v has kind %v, want %v", p.Default, p.Default.Kind(), p.Kind)}
			}
			i, ok := pos[p.Name]
			if !ok {
				pos[p.Name] = len(out)
				out = append(out, p)
				continue
			}
			old := &out[i]
			if old.Kind != p.Kind {
				return nil, &CompositionError{Type: typeName, Param: p.Name,
					Reason: fmt.Sprintf("declared as both %v and %v", old.Kind, p.Kind)}
			}
			if old.Default.IsValid() && p.Default.IsValid() && !old.Default.Equal(p.Default) {
				return nil, &CompositionError{Type: typeName, Param: p.Name,
					Reason: fmt.Sprintf("conflicting defaults %v and %v", old.Default, p.Default)}
			}
			if !old.Default.IsValid() {
				old.Default = p.Default
			}
			if old.Help == "" {
				old.Help = p.Help
			}
			old.Required = old.Required || p.Required
		}
	}
	for i := range out {
		if out[i].Default.IsValid() {
			out[i].Required = false
		}
	}
	return out, nil
}

// checkArgs validates args against params, and returns a new Args with
// defaults applied. An integer argument is accepted for a float parameter.
func checkArgs(params []Param, args Args) (Args, error) {
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Name] = true
	}
	var unknown []string
	for name := range args {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) != 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("%w: unknown parameters %s", ErrInvalidArgs, strings.Join(unknown, ", "))
	}

	out := make(Args, len(params))
	var missing []string
	for _, p := range params {
		v, ok := args[p.Name]
		if !ok || !v.IsValid() {
			if p.Default.IsValid() {
				out[p.Name] = p.Default
			} else if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}
		if v.Kind() != p.Kind {
			if v.Kind() != KindInt || p.Kind != KindFloat {
				return nil, fmt.Errorf("%w: parameter %q has kind %v, want %v", ErrInvalidArgs, p.Name, v.Kind(), p.Kind)
			}
			v = Float(v.Float())
		}
		out[p.Name] = v
	}
	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: missing required parameters %s", ErrInvalidArgs, strings.Join(missing, ", "))
	}
	return out, nil
}

// ParseArgs converts a map of textual arguments into Args, using the kinds
// declared by params.
func ParseArgs(params []Param, text map[string]string) (Args, error) {
	kinds := make(map[string]Kind, len(params))
	for _, p := range params {
		kinds[p.Name] = p.Kind
	}
	out := make(Args, len(text))
	for _, name := range slices.Sorted(maps.Keys(text)) {
		k, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidArgs, name)
		}
		v, err := ParseValue(k, text[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
