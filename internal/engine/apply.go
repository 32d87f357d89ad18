package engine

import (
	"time"

	"acdmx.com/internal/platform"
	"github.com/holiman/uint256"
)

// apply 把一条命令落到平台上。实时执行和回放走同一条路径，
// 时间只取 cmd.Ts，保证回放结果一致
func apply(p *platform.Platform, cmd Command, emit platform.Emitter) Result {
	var res Result
	now := time.Unix(0, cmd.Ts)
	amount := orZero(cmd.Amount)

	switch cmd.Type {
	case CmdRegister:
		res.Registered, res.Err = p.Register(cmd.RegisterUser(), cmd.Target, emit)
	case CmdStartSale:
		res.Err = p.StartSaleRound(now, emit)
	case CmdStartTrade:
		res.Err = p.StartTradeRound(now, emit)
	case CmdBuyACDM:
		res.Units, res.Err = p.BuyACDM(cmd.Caller, amount, emit)
	case CmdAddOrder:
		res.OrderID, res.Err = p.AddOrder(cmd.Caller, amount, orZero(cmd.Price), emit)
	case CmdRemoveOrder:
		res.Err = p.RemoveOrder(cmd.Caller, cmd.OrderID, emit)
	case CmdBuyOrder:
		res.Fill, res.Err = p.BuyOrder(cmd.Caller, cmd.OrderID, amount, emit)
		res.Units = res.Fill.Units
	case CmdSetFraction:
		res.Err = p.SetRewardFraction(cmd.Caller, platform.FractionKind(cmd.Kind), amount, emit)
	case CmdSetEditor:
		res.Err = p.SetEditor(cmd.Caller, cmd.Target, emit)
	case CmdApprove:
		res.Err = p.Approve(cmd.Caller, amount)
	case CmdDeposit:
		res.Err = p.Deposit(cmd.Target, amount)
	case CmdWithdraw:
		res.Err = p.Withdraw(cmd.Caller, amount)
	default:
		res.Err = ErrBadCommand
	}
	return res
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// collector 收集一条命令产生的事件，成功后再统一写 outbox
type collector struct {
	seq uint64
	req uint64
	evs []Event
}

func (c *collector) Emit(ev platform.Event) {
	c.evs = append(c.evs, Event{Seq: c.seq, Idx: uint16(len(c.evs)), ReqID: c.req, Event: ev})
}

func (c *collector) reset(seq, req uint64) {
	c.seq, c.req = seq, req
	c.evs = c.evs[:0]
}
