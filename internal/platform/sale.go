package platform

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BuyACDM 销售轮按固定价购买，返佣按整笔付款计算，零头留在平台
func (p *Platform) BuyACDM(buyer common.Address, payment *uint256.Int, emit Emitter) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &p.round
	if r.Phase != PhaseSale {
		return nil, ErrSaleNotActive
	}
	if buyer == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	units := new(uint256.Int).Div(payment, r.PricePerUnit)
	if units.IsZero() {
		return nil, ErrPaymentTooSmall
	}
	if units.Gt(r.SupplyRemaining) {
		return nil, ErrInsufficientSupply
	}
	l1, l2, s1, s2, err := p.referralShares(buyer, payment, SaleRef1, SaleRef2)
	if err != nil {
		return nil, err
	}

	if err := p.settle(
		p.pay(buyer, p.self, payment),
		p.transfer(p.self, buyer, units),
		p.pay(p.self, l1, s1),
		p.pay(p.self, l2, s2),
	); err != nil {
		return nil, err
	}

	r.SupplyRemaining = new(uint256.Int).Sub(r.SupplyRemaining, units)

	var evs events
	evs.add(Event{
		Type:    EvPurchased,
		Round:   r.Number,
		Account: buyer,
		Amount:  units.Clone(),
		Price:   r.PricePerUnit.Clone(),
		Value:   payment.Clone(),
	})
	referralEvents(&evs, r.Number, buyer, l1, l2, s1, s2)
	evs.flush(emit)
	return units, nil
}
