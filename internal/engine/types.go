package engine

import (
	"errors"

	"acdmx.com/internal/platform"
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// 命令类型
type CmdType uint8

const (
	CmdRegister CmdType = iota + 1
	CmdStartSale
	CmdStartTrade
	CmdBuyACDM
	CmdAddOrder
	CmdRemoveOrder
	CmdBuyOrder
	CmdSetFraction
	CmdSetEditor
	CmdApprove
	CmdDeposit
	CmdWithdraw
)

var cmdNames = map[CmdType]string{
	CmdRegister:    "register",
	CmdStartSale:   "start_sale_round",
	CmdStartTrade:  "start_trade_round",
	CmdBuyACDM:     "buy_acdm",
	CmdAddOrder:    "add_order",
	CmdRemoveOrder: "remove_order",
	CmdBuyOrder:    "buy_order",
	CmdSetFraction: "set_reward_fraction",
	CmdSetEditor:   "set_editor",
	CmdApprove:     "approve",
	CmdDeposit:     "deposit",
	CmdWithdraw:    "withdraw",
}

func (t CmdType) String() string {
	if s, ok := cmdNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t CmdType) Valid() bool { return t >= CmdRegister && t <= CmdWithdraw }

// Command 扁平结构，按类型复用字段：
//
//	Register      Caller Target=referer User（为空时注册 Caller 自己）
//	BuyACDM       Caller=buyer Amount=payment
//	AddOrder      Caller=seller Amount Price
//	RemoveOrder   Caller OrderID
//	BuyOrder      Caller=buyer OrderID Amount=payment
//	SetFraction   Caller Kind Amount=value
//	SetEditor     Caller Target=editor
//	Approve       Caller=owner Amount
//	Deposit       Target Amount
//	Withdraw      Caller Amount
//
// Ts 在入队时打上（unix 纳秒），回放时作为 now 使用，保证结果确定
type Command struct {
	Type    CmdType        `json:"type"`
	ReqID   uint64         `json:"req_id"`
	Ts      int64          `json:"ts"`
	Caller  common.Address `json:"caller"`
	Target  common.Address `json:"target"`
	User    common.Address `json:"user"`
	OrderID uint64         `json:"order_id,omitempty"`
	Amount  *uint256.Int   `json:"amount,omitempty"`
	Price   *uint256.Int   `json:"price,omitempty"`
	Kind    uint8          `json:"kind,omitempty"`

	reply chan Result
	start int64
}

// RegisterUser 注册命令要登记的账户，没带 User 时就是调用者本人
func (c Command) RegisterUser() common.Address {
	if c.User != (common.Address{}) {
		return c.User
	}
	return c.Caller
}

// Event 平台事件加上引擎序号。Seq 是命令序号，Idx 是命令内第几个事件，
// (Seq, Idx) 全局唯一，下游按它去重
type Event struct {
	Seq   uint64 `json:"seq"`
	Idx   uint16 `json:"idx"`
	ReqID uint64 `json:"req_id"`
	platform.Event
}

// 命令结束标记，只出现在 outbox 里，不会发布
const EvCmdEnd platform.EventType = 250

// Result 命令的同步结果，只有 Err == nil 时 Events 才非空
type Result struct {
	Seq    uint64
	Events []Event

	Registered bool
	Units      *uint256.Int
	OrderID    uint64
	Fill       platform.FillResult

	Err error
}

var (
	ErrEngineBusy    = xerr.New(xerr.EngineBusy, "engine busy: mailbox full")
	ErrEngineStopped = xerr.New(xerr.EngineBusy, "engine stopped")
	ErrBadCommand    = xerr.New(xerr.RequestParamsError, "bad command")
	ErrNotStarted    = errors.New("engine not started")
)

type CmdCodec interface {
	Encode(dst []byte, seq uint64, cmd Command) ([]byte, error)
	Decode(payload []byte) (seq uint64, cmd Command, err error)
}

type EvCodec interface {
	Encode(dst []byte, ev Event) ([]byte, error)
	Decode(payload []byte) (Event, error)
}
