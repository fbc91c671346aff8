// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package netaddr

import (
	"net/netip"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		family    Family
		prefixLen int
		expected  string
		err       bool
	}{
		{
			name:      "IPv4 address",
			input:     "192.0.2.1",
			family:    FamilyIPv4,
			prefixLen: 32,
			expected:  "192.0.2.1",
		},
		{
			name:      "IPv6 prefix",
			input:     "2001:db8::/32",
			family:    FamilyIPv6,
			prefixLen: 32,
			expected:  "2001:db8::/32",
		},
		{
			name:      "MAC48",
			input:     "02:00:00:aa:bb:cc",
			family:    FamilyMAC48,
			prefixLen: 48,
			expected:  "02:00:00:aa:bb:cc",
		},
		{
			name:      "EUI64",
			input:     "02:00:00:ff:fe:aa:bb:cc",
			family:    FamilyEUI64,
			prefixLen: 64,
			expected:  "02:00:00:ff:fe:aa:bb:cc",
		},
		{
			name:      "EUI64 with hyphens",
			input:     "02-00-00-FF-FE-AA-BB-CC",
			family:    FamilyEUI64,
			prefixLen: 64,
			expected:  "02:00:00:ff:fe:aa:bb:cc",
		},
		{
			name:      "IPv6 with short groups",
			input:     "2:0:0:ff:fe:aa:bb:cc",
			family:    FamilyIPv6,
			prefixLen: 128,
			expected:  "2::ff:fe:aa:bb:cc",
		},
		{
			name:      "IPv6 full form",
			input:     "2001:0db8:0000:0000:0000:0000:0000:0001",
			family:    FamilyIPv6,
			prefixLen: 128,
			expected:  "2001:db8::1",
		},
		{
			name:  "mixed separators",
			input: "02:00-00:aa:bb:cc",
			err:   true,
		},
		{
			name:  "garbage",
			input: "not-an-address",
			err:   true,
		},
		{
			name:  "zoned IPv6",
			input: "fe80::1%eth0",
			err:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.family, a.Family())
			assert.Equal(t, tt.prefixLen, a.PrefixLen())
			assert.Equal(t, tt.expected, a.String())
		})
	}
}

func TestHardwareAddrTextRoundTrip(t *testing.T) {
	for _, b := range [][]byte{
		{0x02, 0x00, 0x00, 0xaa, 0xbb, 0xcc},
		{0x02, 0x00, 0x00, 0xff, 0xfe, 0xaa, 0xbb, 0xcc},
		{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80},
	} {
		a, err := FromBinary(b, len(b), FamilyUnspec)
		require.NoError(t, err)
		parsed, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed, a.String())
	}
}

func TestFromBinary(t *testing.T) {
	a, err := FromBinary([]byte{10, 0, 0, 1}, 4, FamilyUnspec)
	require.NoError(t, err)
	assert.True(t, a.Is4())
	assert.Equal(t, MustParse("10.0.0.1"), a)

	_, err = FromBinary([]byte{10, 0, 0}, 3, FamilyUnspec)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = FromBinary([]byte{10, 0, 0, 1}, 4, FamilyIPv6)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = FromBinary([]byte{10, 0}, 4, FamilyIPv4)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddrAsMapKey(t *testing.T) {
	m := map[Addr]int{}
	m[MustParse("10.0.0.1")] = 1
	m[MustParse("10.0.0.1")] = 2
	m[MustParse("10.0.0.1/24")] = 3
	assert.Len(t, m, 2)
	assert.Equal(t, 2, m[MustParse("10.0.0.1")])
}

func TestCompare(t *testing.T) {
	addrs := []Addr{
		MustParse("02:00:00:00:00:01"),
		MustParse("10.0.0.2"),
		MustParse("2001:db8::1"),
		MustParse("10.0.0.1"),
		{},
	}
	slices.SortFunc(addrs, Addr.Compare)

	var got []string
	for _, a := range addrs {
		got = append(got, a.String())
	}
	assert.Equal(t, []string{"-", "10.0.0.1", "10.0.0.2", "2001:db8::1", "02:00:00:00:00:01"}, got)
}

func TestNetipConversion(t *testing.T) {
	ip := netip.MustParseAddr("2001:db8::5")
	a := FromNetip(ip)
	back, ok := a.Netip()
	require.True(t, ok)
	assert.Equal(t, ip, back)

	_, ok = MustParse("02:00:00:00:00:01").Netip()
	assert.False(t, ok)

	p, err := a.WithPrefixLen(64)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5/64", p.String())
	_, err = a.WithPrefixLen(129)
	assert.Error(t, err)
}

func TestTextMarshaling(t *testing.T) {
	var a Addr
	require.NoError(t, a.UnmarshalText([]byte("fe80::1")))
	text, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "fe80::1", string(text))
	assert.Error(t, a.UnmarshalText([]byte("fe80::zz")))
}
