package units

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("4000103000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(4000103000000), v.Uint64())

	_, err = Parse("-1")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	assert.Error(t, err, "2^256 溢出")
}

func TestParseUnitsAndFormat(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals int32
		want     string
		wantErr  bool
	}{
		{"一个以太", "1", PaymentDecimals, "1000000000000000000", false},
		{"半个以太", "0.5", PaymentDecimals, "500000000000000000", false},
		{"token 精度", "100.25", TokenDecimals, "100250000", false},
		{"精度超出", "0.0000001", TokenDecimals, "", true},
		{"负数", "-3", TokenDecimals, "", true},
		{"非法", "abc", TokenDecimals, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseUnits(tt.in, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Dec())
			assert.Equal(t, tt.in, Format(v, tt.decimals))
		})
	}
}

func TestFormat_Nil(t *testing.T) {
	assert.Equal(t, "0", Format(nil, 18))
	assert.Equal(t, "0.000004", Format(uint256.NewInt(4e12), PaymentDecimals))
}
