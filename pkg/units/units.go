// Package units 处理链上整数金额与人类可读小数之间的转换
package units

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	PaymentDecimals int32 = 18 // 支付资产，和 ETH 一样 1e18
	TokenDecimals   int32 = 6  // ACDM
)

// Parse 十进制整数字符串 -> uint256，负数或溢出报错
func Parse(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("units: empty amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("units: bad amount %q: %w", s, err)
	}
	return v, nil
}

// ParseUnits "0.5" + 18 -> 500000000000000000，超过精度的部分报错而不是截断
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("units: bad amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("units: negative amount %q", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("units: %q has more than %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("units: %q overflows uint256", s)
	}
	return v, nil
}

// Format 整数金额按精度展示，去掉末尾的 0
func Format(v *uint256.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}
