package api

import (
	"acdmx.com/internal/engine"
	"acdmx.com/internal/platform"
	"github.com/holiman/uint256"
)

// 请求体里金额都是十进制整数字符串，避免 js number 精度问题

// RegisterReq user 为空时注册调用者自己，也可以替别的地址注册
type RegisterReq struct {
	User    string `json:"user"`
	Referer string `json:"referer"`
}

type PaymentReq struct {
	Payment string `json:"payment" binding:"required"`
}

type AddOrderReq struct {
	Amount string `json:"amount" binding:"required"`
	Price  string `json:"price" binding:"required"`
}

type FractionReq struct {
	Value string `json:"value" binding:"required"`
}

type EditorReq struct {
	Editor string `json:"editor" binding:"required"`
}

type ProposalReq struct {
	Target    string `json:"target" binding:"required"`
	CallData  string `json:"call_data" binding:"required"` // 0x 开头的 hex
	Recipient string `json:"recipient"`
}

type AmountReq struct {
	Amount string `json:"amount" binding:"required"` // approve 可以传 "max"
}

type DepositReq struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type RoundView struct {
	Number          uint64 `json:"number"`
	Phase           string `json:"phase"`
	IsFirstRound    bool   `json:"is_first_round"`
	EndTime         int64  `json:"end_time"`
	PricePerUnit    string `json:"price_per_unit"`
	SupplyRemaining string `json:"supply_remaining"`
	TradeVolume     string `json:"trade_volume"`
}

func toRoundView(r platform.Round) RoundView {
	v := RoundView{
		Number:          r.Number,
		Phase:           r.Phase.String(),
		IsFirstRound:    r.IsFirstRound,
		PricePerUnit:    dec(r.PricePerUnit),
		SupplyRemaining: dec(r.SupplyRemaining),
		TradeVolume:     dec(r.TradeVolume),
	}
	if !r.EndTime.IsZero() {
		v.EndTime = r.EndTime.Unix()
	}
	return v
}

type OrderView struct {
	ID              uint64 `json:"id"`
	Seller          string `json:"seller"`
	PricePerUnit    string `json:"price_per_unit"`
	AmountRemaining string `json:"amount_remaining"`
	Active          bool   `json:"active"`
}

func toOrderView(o platform.Order) OrderView {
	return OrderView{
		ID:              o.ID,
		Seller:          o.Seller.Hex(),
		PricePerUnit:    dec(o.PricePerUnit),
		AmountRemaining: dec(o.AmountRemaining),
		Active:          o.Active,
	}
}

type FillView struct {
	Units     string `json:"units"`
	Cost      string `json:"cost"`
	Refund    string `json:"refund"`
	Remaining string `json:"remaining"`
}

func toFillView(f platform.FillResult) FillView {
	return FillView{
		Units:     dec(f.Units),
		Cost:      dec(f.Cost),
		Refund:    dec(f.Refund),
		Remaining: dec(f.Remaining),
	}
}

type BalancesView struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	Payment   string `json:"payment"`
	Allowance string `json:"allowance"`
}

type ParamsView struct {
	Fractions platform.Fractions `json:"fractions"`
	Editor    string             `json:"editor"`
	Owner     string             `json:"owner"`
}

// CommandView 写接口统一回 seq 和本次产生的事件名
type CommandView struct {
	Seq    uint64   `json:"seq"`
	Events []string `json:"events"`
}

func toCommandView(res engine.Result) CommandView {
	v := CommandView{Seq: res.Seq, Events: make([]string, 0, len(res.Events))}
	for _, ev := range res.Events {
		v.Events = append(v.Events, ev.Type.String())
	}
	return v
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
