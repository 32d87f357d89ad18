package platform

import (
	"time"

	"github.com/holiman/uint256"
)

// StartSaleRound 首轮无条件开启；之后必须等交易轮到期
func (p *Platform) StartSaleRound(now time.Time, emit Emitter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &p.round
	switch r.Phase {
	case PhaseSale:
		return ErrSaleActive
	case PhaseTrade:
		if now.Before(r.EndTime) {
			return ErrTradeNotEnded
		}
	}

	var (
		price, supply *uint256.Int
		err           error
	)
	if r.IsFirstRound {
		price = uint256.NewInt(FirstRoundPrice)
		supply = uint256.NewInt(FirstRoundSupply)
	} else {
		if price, err = NextPrice(r.PricePerUnit); err != nil {
			return err
		}
		if supply, err = NextSupply(r.TradeVolume, price); err != nil {
			return err
		}
	}

	if err := p.settle(func() error {
		if supply.IsZero() {
			return nil
		}
		return p.ledger.Mint(p.self, supply)
	}); err != nil {
		return err
	}

	r.Number++
	r.Phase = PhaseSale
	r.IsFirstRound = false
	r.PricePerUnit = price
	r.SupplyRemaining = supply.Clone()
	r.EndTime = now.Add(p.roundDuration)

	events{{
		Type:    EvSaleRoundStarted,
		Round:   r.Number,
		Price:   price.Clone(),
		Amount:  supply,
		Value:   r.TradeVolume.Clone(),
		EndTime: r.EndTime.Unix(),
	}}.flush(emit)
	return nil
}

// StartTradeRound 销售轮到期或售罄后切换，未售出部分直接销毁
func (p *Platform) StartTradeRound(now time.Time, emit Emitter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &p.round
	if r.Phase != PhaseSale {
		return ErrSaleNotActive
	}
	if now.Before(r.EndTime) && !r.SupplyRemaining.IsZero() {
		return ErrSaleNotEnded
	}

	burned := r.SupplyRemaining.Clone()
	if err := p.settle(func() error {
		if burned.IsZero() {
			return nil
		}
		return p.ledger.Burn(p.self, burned)
	}); err != nil {
		return err
	}

	r.Phase = PhaseTrade
	r.SupplyRemaining = new(uint256.Int)
	r.TradeVolume = new(uint256.Int)
	r.EndTime = now.Add(p.roundDuration)

	events{{
		Type:    EvTradeRoundStarted,
		Round:   r.Number,
		Amount:  burned,
		EndTime: r.EndTime.Unix(),
	}}.flush(emit)
	return nil
}
