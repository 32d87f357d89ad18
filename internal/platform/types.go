package platform

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Phase 轮次阶段，首轮开始前是 Inactive
type Phase uint8

const (
	PhaseInactive Phase = iota
	PhaseSale
	PhaseTrade
)

func (p Phase) String() string {
	switch p {
	case PhaseSale:
		return "sale"
	case PhaseTrade:
		return "trade"
	default:
		return "inactive"
	}
}

// 首轮常量
const (
	FirstRoundPrice       uint64 = 1e8
	FirstRoundSupply      uint64 = 1e10
	FirstRoundTradeVolume uint64 = 1e18 // 只用于上报
	PriceFlatIncrement    uint64 = 4e12 // 0.000004 * 1e18
	PriceStepPercent      uint64 = 3
	FractionBase          uint64 = 1000

	DefaultRoundDuration = time.Hour
)

// Round 全局唯一的轮次记录，原地修改
type Round struct {
	Number          uint64
	Phase           Phase
	IsFirstRound    bool
	EndTime         time.Time
	PricePerUnit    *uint256.Int
	SupplyRemaining *uint256.Int
	TradeVolume     *uint256.Int
}

func initialRound() Round {
	return Round{
		Phase:           PhaseInactive,
		IsFirstRound:    true,
		PricePerUnit:    uint256.NewInt(FirstRoundPrice),
		SupplyRemaining: new(uint256.Int),
		TradeVolume:     uint256.NewInt(FirstRoundTradeVolume),
	}
}

func (r Round) Clone() Round {
	r.PricePerUnit = r.PricePerUnit.Clone()
	r.SupplyRemaining = r.SupplyRemaining.Clone()
	r.TradeVolume = r.TradeVolume.Clone()
	return r
}

// Order id 从 1 开始，永不复用
type Order struct {
	ID              uint64
	Seller          common.Address
	PricePerUnit    *uint256.Int
	AmountRemaining *uint256.Int
	Active          bool
}

func (o Order) Clone() Order {
	o.PricePerUnit = o.PricePerUnit.Clone()
	o.AmountRemaining = o.AmountRemaining.Clone()
	return o
}

// FractionKind 四个返佣比例
type FractionKind uint8

const (
	SaleRef1 FractionKind = iota + 1
	SaleRef2
	TradeRef1
	TradeRef2
)

var fractionNames = map[FractionKind]string{
	SaleRef1:  "sale-ref1",
	SaleRef2:  "sale-ref2",
	TradeRef1: "trade-ref1",
	TradeRef2: "trade-ref2",
}

func (k FractionKind) String() string {
	if s, ok := fractionNames[k]; ok {
		return s
	}
	return fmt.Sprintf("fraction(%d)", uint8(k))
}

func (k FractionKind) Valid() bool { return k >= SaleRef1 && k <= TradeRef2 }

func ParseFractionKind(s string) (FractionKind, error) {
	for k, name := range fractionNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown reward fraction %q", s)
}

// Fractions 千分比
type Fractions struct {
	SaleRef1  uint64 `mapstructure:"sale_ref1" json:"sale_ref1"`
	SaleRef2  uint64 `mapstructure:"sale_ref2" json:"sale_ref2"`
	TradeRef1 uint64 `mapstructure:"trade_ref1" json:"trade_ref1"`
	TradeRef2 uint64 `mapstructure:"trade_ref2" json:"trade_ref2"`
}

// DefaultFractions 销售 5% / 3%，交易 2.5% / 2.5%
func DefaultFractions() Fractions {
	return Fractions{SaleRef1: 50, SaleRef2: 30, TradeRef1: 25, TradeRef2: 25}
}

func (f Fractions) Get(k FractionKind) uint64 {
	switch k {
	case SaleRef1:
		return f.SaleRef1
	case SaleRef2:
		return f.SaleRef2
	case TradeRef1:
		return f.TradeRef1
	case TradeRef2:
		return f.TradeRef2
	}
	return 0
}

func (f *Fractions) set(k FractionKind, v uint64) {
	switch k {
	case SaleRef1:
		f.SaleRef1 = v
	case SaleRef2:
		f.SaleRef2 = v
	case TradeRef1:
		f.TradeRef1 = v
	case TradeRef2:
		f.TradeRef2 = v
	}
}

// Balances 单个地址的账本视图
type Balances struct {
	Token     *uint256.Int
	Payment   *uint256.Int
	Allowance *uint256.Int // 对平台的授权
}
