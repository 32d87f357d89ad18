package platform

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventType uint8

const (
	EvUserRegistered EventType = iota + 1
	EvSaleRoundStarted
	EvTradeRoundStarted
	EvPurchased
	EvOrderAdded
	EvOrderRemoved
	EvOrderFilled
	EvReferralPaid
	EvRewardFractionChanged
	EvEditorChanged
)

var eventNames = map[EventType]string{
	EvUserRegistered:        "UserRegistered",
	EvSaleRoundStarted:      "SaleRoundStarted",
	EvTradeRoundStarted:     "TradeRoundStarted",
	EvPurchased:             "Purchased",
	EvOrderAdded:            "OrderAdded",
	EvOrderRemoved:          "OrderRemoved",
	EvOrderFilled:           "OrderFilled",
	EvReferralPaid:          "ReferralPaid",
	EvRewardFractionChanged: "RewardFractionChanged",
	EvEditorChanged:         "EditorChanged",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "Unknown"
}

// Event 扁平结构，按类型复用字段，方便定长编码：
//
//	UserRegistered        Account=user  Peer=referer
//	SaleRoundStarted      Round Price Amount=supply Value=上一轮成交额 EndTime
//	TradeRoundStarted     Round Amount=销毁数量 EndTime
//	Purchased             Account=buyer Amount=units Price Value=payment
//	OrderAdded            OrderID Account=seller Amount Price
//	OrderRemoved          OrderID Account=seller Amount=退回数量
//	OrderFilled           OrderID Account=buyer Peer=seller Amount=units Price Value=cost Remaining
//	ReferralPaid          Account=referer Peer=付款人 Level Value=返佣
//	RewardFractionChanged Level=FractionKind Amount=新值
//	EditorChanged         Account=editor
type Event struct {
	Type      EventType      `json:"type"`
	Round     uint64         `json:"round"`
	OrderID   uint64         `json:"order_id,omitempty"`
	Account   common.Address `json:"account"`
	Peer      common.Address `json:"peer"`
	Amount    *uint256.Int   `json:"amount,omitempty"`
	Price     *uint256.Int   `json:"price,omitempty"`
	Value     *uint256.Int   `json:"value,omitempty"`
	Remaining *uint256.Int   `json:"remaining,omitempty"`
	Level     uint8          `json:"level,omitempty"`
	EndTime   int64          `json:"end_time,omitempty"` // unix 秒
}

// Emitter 只在命令提交成功后收到事件
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc 适配普通函数
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// NopEmitter 回放时用
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// events 命令执行期间暂存，提交后统一 flush
type events []Event

func (es *events) add(ev Event) { *es = append(*es, ev) }

func (es events) flush(emit Emitter) {
	if emit == nil {
		return
	}
	for _, ev := range es {
		emit.Emit(ev)
	}
}
