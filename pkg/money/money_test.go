package money_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/money"
)

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"1.5", "1.5"},
		{"-1.5", "-1.5"},
		{"+2.000000001", "2.000000001"},
		{"0.000000000", "0"},
		{"3.100", "3.1"},
	}
	for _, c := range cases {
		amt, err := money.Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, amt.String(), c.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2345678901", "1.2.3", "--1", "1-"} {
		_, err := money.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestMulFloatMultiplierTruncatesTowardZero(t *testing.T) {
	base := money.FromNano(1_000_000_003) // 1.000000003 USD
	got, err := money.MulFloatMultiplier(base, 0.5)
	require.NoError(t, err)
	n, ok := got.Nano()
	require.True(t, ok)
	// 1000000003 * 500000000 / 1e9 = 500000001 (truncated, not rounded up)
	assert.Equal(t, int64(500000001), n)
}

func TestMulFloatMultiplierRejectsNegativeAndNonFinite(t *testing.T) {
	base := money.FromNano(1000)
	_, err := money.MulFloatMultiplier(base, -1)
	assert.ErrorIs(t, err, money.ErrNotComputable)

	_, err = money.MulFloatMultiplier(base, math.NaN())
	assert.ErrorIs(t, err, money.ErrNotComputable)

	_, err = money.MulFloatMultiplier(base, math.Inf(1))
	assert.ErrorIs(t, err, money.ErrNotComputable)
}

func TestMulFloatMultiplierZero(t *testing.T) {
	base := money.FromNano(123456789)
	got, err := money.MulFloatMultiplier(base, 0)
	require.NoError(t, err)
	n, _ := got.Nano()
	assert.Equal(t, int64(0), n)
}

func TestCheckedAddOverflow(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	huge := money.FromBigNano(max)
	one := money.FromNano(1)
	_, err := money.CheckedAdd(huge, one)
	assert.ErrorIs(t, err, money.ErrNotComputable)
}
