// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package main

import (
	"fmt"
	"os"

	"github.com/creachadair/command"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/transport"
	"github.com/sugawarayuuta/sonnet"
)

func typesCmd(env *command.Env) error {
	data, err := plugins.Encode()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// itemReport is the output format of the read command.
type itemReport struct {
	Buffer   string `json:"buffer"`
	Format   string `json:"format"`
	Shape    []int  `json:"shape,omitempty"`
	Capacity int    `json:"capacity"`
	Cursor   int    `json:"cursor"`
	Slot     *int   `json:"slot,omitempty"`
	Values   any    `json:"values,omitempty"`
}

func readCmd(env *command.Env, name string) error {
	r, err := buffer.Attach(name)
	if err != nil {
		return err
	}
	defer r.Close()

	rpt := itemReport{
		Buffer:   r.Name(),
		Format:   r.Format().String(),
		Shape:    r.Shape(),
		Capacity: r.Capacity(),
		Cursor:   r.Cursor(),
	}
	if !readFlags.Meta {
		slot := readFlags.Slot
		if slot < 0 {
			slot = r.Cursor() - 1
		} else if slot >= r.Capacity() {
			return env.Usagef("slot %d out of range (capacity %d)", slot, r.Capacity())
		}
		slot = (slot + r.Capacity()) % r.Capacity()
		rpt.Slot = &slot
		rpt.Values = decodeItem(r.Item(slot))
	}
	data, err := sonnet.Marshal(rpt)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// decodeItem returns the elements of it as a slice of numbers.
func decodeItem(it buffer.Item) any {
	switch it.Format {
	case buffer.Mono8:
		return widen(it.Uint8s())
	case buffer.Mono12p, buffer.Mono16:
		return widen(it.Uint16s())
	case buffer.Int16:
		return widen(it.Int16s())
	case buffer.Float32:
		return it.Float32s()
	case buffer.Float64:
		return it.Float64s()
	}
	return nil
}

func widen[T uint8 | uint16 | int16](vs []T) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}
	return out
}

func portsCmd(env *command.Env) error {
	ports, err := transport.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
