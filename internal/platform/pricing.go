package platform

import "github.com/holiman/uint256"

// NextPrice newPrice = p + p*3/100 + 4e12，整数截断
func NextPrice(old *uint256.Int) (*uint256.Int, error) {
	step, overflow := new(uint256.Int).MulOverflow(old, uint256.NewInt(PriceStepPercent))
	if overflow {
		return nil, ErrOverflow
	}
	step.Div(step, uint256.NewInt(100))
	price, overflow := new(uint256.Int).AddOverflow(old, step)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = price.AddOverflow(price, uint256.NewInt(PriceFlatIncrement)); overflow {
		return nil, ErrOverflow
	}
	return price, nil
}

// NextSupply floor(tradeVolume / price)
func NextSupply(tradeVolume, price *uint256.Int) (*uint256.Int, error) {
	if price.IsZero() {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Div(tradeVolume, price), nil
}

// Share floor(amount * fraction / 1000)
func Share(amount *uint256.Int, fraction uint64) (*uint256.Int, error) {
	v, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(fraction))
	if overflow {
		return nil, ErrOverflow
	}
	return v.Div(v, uint256.NewInt(FractionBase)), nil
}
