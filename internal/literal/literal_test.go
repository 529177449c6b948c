package literal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func big10(n int64) *big.Int { return big.NewInt(n) }

func TestParseInteger(t *testing.T) {
	cases := []struct {
		in   string
		want *big.Int
		ok   bool
	}{
		{"10", big10(10), true},
		{"0x10", big10(0x10), true},
		{"-0x10", big10(-0x10), true},
		{"0b11", big10(3), true},
		{"0", big10(0), true},
		{"", nil, false},
		{"0xbeef", big10(0xbeef), true},
		{"010", big10(8), true},
		{"abcdef", nil, false},
		{"-0xbeef", big10(-0xbeef), true},
		{"0x1ull", big10(1), true},
		{"0x100ULL", big10(0x100), true},
		{"0x100z", big10(0x100), true},
		{"100'000", big10(100000), true},
		{"0.0", nil, false},
		{"not-a-literal", nil, false},
		{"-", nil, false},
	}

	for _, c := range cases {
		got, ok := ParseInteger(c.in)
		assert.Equalf(t, c.ok, ok, "ParseInteger(%q) ok", c.in)
		if c.ok {
			assert.Equalf(t, 0, c.want.Cmp(got), "ParseInteger(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
