// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataPrecedence(t *testing.T) {
	reg := NewOriginRegistry()
	a := reg.Register("a", 5)
	b := reg.Register("b", 3)

	var d Data
	assert.True(t, d.Set(a, 5, IntegerValue(100)))

	// lower precedence does not overwrite
	assert.False(t, d.Set(b, 3, IntegerValue(200)))
	v, o, ok := d.Get()
	require.True(t, ok)
	assert.Same(t, a, o)
	assert.Equal(t, IntegerValue(100), v)

	// higher precedence overwrites
	assert.True(t, d.Set(b, 7, IntegerValue(300)))
	v, o, _ = d.Get()
	assert.Same(t, b, o)
	assert.Equal(t, IntegerValue(300), v)
	assert.Equal(t, Precedence(7), d.Precedence())

	// equal precedence: newer write wins
	assert.True(t, d.Set(a, 7, IntegerValue(400)))
	assert.Same(t, a, d.Origin())
}

func TestDataSetRejects(t *testing.T) {
	o := NewOriginRegistry().Register("x", PrecedenceReliable)
	var d Data
	assert.False(t, d.Set(nil, 10, IntegerValue(1)))
	assert.False(t, d.Set(o, 10, Value{}))
	assert.False(t, d.HasValue())

	_, _, ok := d.Get()
	assert.False(t, ok)
}

func TestDataRemoveOrigin(t *testing.T) {
	reg := NewOriginRegistry()
	x := reg.Register("x", PrecedenceReliable)
	y := reg.Register("y", PrecedenceReliable)

	var d Data
	d.Set(x, x.Precedence, BooleanValue(true))
	assert.False(t, d.RemoveOrigin(y))
	assert.True(t, d.HasValue())
	assert.True(t, d.RemoveOrigin(x))
	assert.False(t, d.HasValue())
	assert.Nil(t, d.Origin())
}

func TestOriginRegistry(t *testing.T) {
	reg := NewOriginRegistry()
	first := reg.Register("dlep", PrecedenceReliable)
	again := reg.Register("dlep", PrecedenceOverride)
	assert.Same(t, first, again)
	assert.Equal(t, PrecedenceReliable, again.Precedence)

	reg.Register("alpha", PrecedenceDefault)
	names := []string{}
	for _, o := range reg.All() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"alpha", "dlep"}, names)

	_, ok := reg.Get("missing")
	assert.False(t, ok)

	// registries are independent
	other := NewOriginRegistry()
	_, ok = other.Get("dlep")
	assert.False(t, ok)
}

func TestValueAccessors(t *testing.T) {
	i, ok := IntegerValue(-5).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(-5), i)
	_, ok = IntegerValue(1).Bool()
	assert.False(t, ok)
	b, ok := BooleanValue(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)
	assert.False(t, Value{}.IsSet())
	assert.Equal(t, "integer", IntegerValue(0).Type().String())

	dt, err := ParseDataType("boolean")
	require.NoError(t, err)
	assert.Equal(t, DataBoolean, dt)
	_, err = ParseDataType("float")
	assert.Error(t, err)
}
