// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"fmt"
	"strconv"
)

type DataType uint8

const (
	DataNone DataType = iota
	DataInteger
	DataBoolean
)

var dataTypeNames = map[DataType]string{
	DataNone:    "none",
	DataInteger: "integer",
	DataBoolean: "boolean",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "Unknown DataType (" + strconv.Itoa(int(t)) + ")"
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for t, name := range dataTypeNames {
		if name == s {
			return t, nil
		}
	}
	return DataNone, fmt.Errorf("unknown data type %q", s)
}

// Value is an integer, a boolean or unset.
type Value struct {
	typ     DataType
	integer int64
	boolean bool
}

func IntegerValue(v int64) Value {
	return Value{typ: DataInteger, integer: v}
}

func BooleanValue(v bool) Value {
	return Value{typ: DataBoolean, boolean: v}
}

func (v Value) Type() DataType {
	return v.typ
}

func (v Value) IsSet() bool {
	return v.typ != DataNone
}

func (v Value) Int64() (int64, bool) {
	return v.integer, v.typ == DataInteger
}

func (v Value) Bool() (bool, bool) {
	return v.boolean, v.typ == DataBoolean
}

// Data is one metric slot: the current value plus the origin and precedence
// of the write that produced it.
type Data struct {
	value      Value
	origin     *Origin
	precedence Precedence
}

// Set writes v if the slot is empty or precedence is at least the stored
// precedence. It reports whether the slot was written.
func (d *Data) Set(origin *Origin, precedence Precedence, v Value) bool {
	if origin == nil || !v.IsSet() {
		return false
	}
	if d.HasValue() && precedence < d.precedence {
		return false
	}
	d.value = v
	d.origin = origin
	d.precedence = precedence
	return true
}

// Get returns the value and its origin; ok is false for an unset slot.
func (d *Data) Get() (v Value, origin *Origin, ok bool) {
	if !d.HasValue() {
		return Value{}, nil, false
	}
	return d.value, d.origin, true
}

func (d *Data) HasValue() bool {
	return d.value.IsSet()
}

func (d *Data) Value() Value {
	return d.value
}

func (d *Data) Origin() *Origin {
	return d.origin
}

func (d *Data) Precedence() Precedence {
	return d.precedence
}

func (d *Data) Reset() {
	*d = Data{}
}

// RemoveOrigin clears the slot if it was written by o.
func (d *Data) RemoveOrigin(o *Origin) bool {
	if d.HasValue() && d.origin == o {
		d.Reset()
		return true
	}
	return false
}
