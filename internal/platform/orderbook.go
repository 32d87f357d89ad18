package platform

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OrderBook arena：orders[id-1]，id 单调递增不复用
type OrderBook struct {
	orders      []Order
	activeCount int
}

func NewOrderBook() *OrderBook {
	return &OrderBook{orders: make([]Order, 0, 256)}
}

func (b *OrderBook) nextID() uint64 { return uint64(len(b.orders)) + 1 }

func (b *OrderBook) get(id uint64) (Order, bool) {
	if id == 0 || id > uint64(len(b.orders)) {
		return Order{}, false
	}
	return b.orders[id-1], true
}

func (b *OrderBook) ref(id uint64) *Order {
	if id == 0 || id > uint64(len(b.orders)) {
		return nil
	}
	return &b.orders[id-1]
}

func (b *OrderBook) active() []Order {
	out := make([]Order, 0, b.activeCount)
	for _, o := range b.orders {
		if o.Active {
			out = append(out, o.Clone())
		}
	}
	return out
}

// AddOrder 交易轮挂单，token 先托管到平台（需要卖家事先授权）
func (p *Platform) AddOrder(seller common.Address, amount, price *uint256.Int, emit Emitter) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.round.Phase != PhaseTrade {
		return 0, ErrTradeNotActive
	}
	if seller == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if amount.IsZero() {
		return 0, ErrZeroAmount
	}
	if price.IsZero() {
		return 0, ErrZeroPrice
	}

	if err := p.settle(func() error {
		return p.ledger.TransferFrom(p.self, seller, p.self, amount)
	}); err != nil {
		return 0, err
	}

	id := p.book.nextID()
	p.book.orders = append(p.book.orders, Order{
		ID:              id,
		Seller:          seller,
		PricePerUnit:    price.Clone(),
		AmountRemaining: amount.Clone(),
		Active:          true,
	})
	p.book.activeCount++

	events{{
		Type:    EvOrderAdded,
		Round:   p.round.Number,
		OrderID: id,
		Account: seller,
		Amount:  amount.Clone(),
		Price:   price.Clone(),
	}}.flush(emit)
	return id, nil
}

// RemoveOrder 只有卖家能撤单，任何阶段都可以，剩余托管原路退回
func (p *Platform) RemoveOrder(caller common.Address, id uint64, emit Emitter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.book.ref(id)
	if o == nil || !o.Active {
		return ErrOrderNotFound
	}
	if caller != o.Seller {
		return ErrNotSeller
	}

	returned := o.AmountRemaining.Clone()
	if err := p.settle(p.transfer(p.self, o.Seller, returned)); err != nil {
		return err
	}

	o.AmountRemaining = new(uint256.Int)
	o.Active = false
	p.book.activeCount--

	events{{
		Type:    EvOrderRemoved,
		Round:   p.round.Number,
		OrderID: id,
		Account: o.Seller,
		Amount:  returned,
	}}.flush(emit)
	return nil
}

// FillResult 一次吃单的结果
type FillResult struct {
	Units     *uint256.Int
	Cost      *uint256.Int
	Refund    *uint256.Int
	Remaining *uint256.Int
}

// BuyOrder 吃单，支持部分成交。多付的部分退回买家；
// 返佣走卖家的推荐链，从成交额里扣，卖家拿剩下的
func (p *Platform) BuyOrder(buyer common.Address, id uint64, payment *uint256.Int, emit Emitter) (FillResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &p.round
	if r.Phase != PhaseTrade {
		return FillResult{}, ErrTradeNotActive
	}
	if buyer == (common.Address{}) {
		return FillResult{}, ErrZeroAddress
	}
	o := p.book.ref(id)
	if o == nil || !o.Active {
		return FillResult{}, ErrOrderNotFound
	}

	units := new(uint256.Int).Div(payment, o.PricePerUnit)
	if units.Gt(o.AmountRemaining) {
		units.Set(o.AmountRemaining)
	}
	if units.IsZero() {
		return FillResult{}, ErrPaymentTooSmall
	}
	cost, overflow := new(uint256.Int).MulOverflow(units, o.PricePerUnit)
	if overflow {
		return FillResult{}, ErrOverflow
	}
	refund := new(uint256.Int).Sub(payment, cost)
	volume, overflow := new(uint256.Int).AddOverflow(r.TradeVolume, cost)
	if overflow {
		return FillResult{}, ErrOverflow
	}

	l1, l2, s1, s2, err := p.referralShares(o.Seller, cost, TradeRef1, TradeRef2)
	if err != nil {
		return FillResult{}, err
	}
	// 两级比例之和超过 1000 时卖家拿 0，差额由平台储备垫付
	proceeds := new(uint256.Int)
	if fees, overflow := new(uint256.Int).AddOverflow(s1, s2); !overflow && fees.Lt(cost) {
		proceeds.Sub(cost, fees)
	}

	if err := p.settle(
		p.pay(buyer, p.self, payment),
		p.transfer(p.self, buyer, units),
		p.pay(p.self, o.Seller, proceeds),
		p.pay(p.self, l1, s1),
		p.pay(p.self, l2, s2),
		p.pay(p.self, buyer, refund),
	); err != nil {
		return FillResult{}, err
	}

	o.AmountRemaining = new(uint256.Int).Sub(o.AmountRemaining, units)
	if o.AmountRemaining.IsZero() {
		o.Active = false
		p.book.activeCount--
	}
	r.TradeVolume = volume

	var evs events
	evs.add(Event{
		Type:      EvOrderFilled,
		Round:     r.Number,
		OrderID:   id,
		Account:   buyer,
		Peer:      o.Seller,
		Amount:    units.Clone(),
		Price:     o.PricePerUnit.Clone(),
		Value:     cost.Clone(),
		Remaining: o.AmountRemaining.Clone(),
	})
	referralEvents(&evs, r.Number, o.Seller, l1, l2, s1, s2)
	evs.flush(emit)

	return FillResult{
		Units:     units,
		Cost:      cost,
		Refund:    refund,
		Remaining: o.AmountRemaining.Clone(),
	}, nil
}
