// Package governance 把外部提案的 (target, calldata, recipient) 翻译成平台命令。
// calldata 按固定的 setter ABI 解码，只接受枚举出来的几个方法，不做任意调用。
package governance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"acdmx.com/internal/engine"
	"acdmx.com/internal/platform"
	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

const SetterABI = `[
{"type":"function","name":"setRewardFractionForSaleRef1","inputs":[{"name":"fraction","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"setRewardFractionForSaleRef2","inputs":[{"name":"fraction","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"setRewardFractionForTradeRef1","inputs":[{"name":"fraction","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"setRewardFractionForTradeRef2","inputs":[{"name":"fraction","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"setEditor","inputs":[{"name":"editor","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const methodSetEditor = "setEditor"

var fractionMethods = map[string]platform.FractionKind{
	"setRewardFractionForSaleRef1":  platform.SaleRef1,
	"setRewardFractionForSaleRef2":  platform.SaleRef2,
	"setRewardFractionForTradeRef1": platform.TradeRef1,
	"setRewardFractionForTradeRef2": platform.TradeRef2,
}

var (
	ErrWrongTarget     = xerr.New(xerr.Unauthorized, "proposal target is not the platform")
	ErrUnknownSelector = xerr.New(xerr.Validation, "unknown method selector")
	ErrBadCallData     = xerr.New(xerr.Validation, "malformed call data")
)

// Proposal 外部治理提交过来的调用
type Proposal struct {
	Target    common.Address `json:"target"`
	CallData  []byte         `json:"call_data"`
	Recipient common.Address `json:"recipient"`
}

type Submitter interface {
	Submit(ctx context.Context, cmd engine.Command) (engine.Result, error)
}

type Executor struct {
	abi      abi.ABI
	platform common.Address
	caller   common.Address
	sub      Submitter
}

// NewExecutor caller 是治理合约在平台上的身份，需要是 owner 或 editor
func NewExecutor(platformAddr, caller common.Address, sub Submitter) (*Executor, error) {
	parsed, err := abi.JSON(strings.NewReader(SetterABI))
	if err != nil {
		return nil, fmt.Errorf("governance: parse abi: %w", err)
	}
	return &Executor{abi: parsed, platform: platformAddr, caller: caller, sub: sub}, nil
}

// Decode calldata -> 命令，Caller 由 Execute 填
func (e *Executor) Decode(data []byte) (engine.Command, error) {
	if len(data) < 4 {
		return engine.Command{}, ErrBadCallData
	}
	method, err := e.abi.MethodById(data[:4])
	if err != nil {
		return engine.Command{}, ErrUnknownSelector
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 1 {
		return engine.Command{}, ErrBadCallData
	}

	if method.Name == methodSetEditor {
		editor, ok := args[0].(common.Address)
		if !ok {
			return engine.Command{}, ErrBadCallData
		}
		return engine.Command{Type: engine.CmdSetEditor, Target: editor}, nil
	}

	kind, ok := fractionMethods[method.Name]
	if !ok {
		return engine.Command{}, ErrUnknownSelector
	}
	raw, ok := args[0].(*big.Int)
	if !ok {
		return engine.Command{}, ErrBadCallData
	}
	value, overflow := uint256.FromBig(raw)
	if overflow {
		return engine.Command{}, platform.ErrFractionRange
	}
	return engine.Command{Type: engine.CmdSetFraction, Kind: uint8(kind), Amount: value}, nil
}

// Execute 校验 target，解码后以治理身份提交
func (e *Executor) Execute(ctx context.Context, p Proposal) (engine.Result, error) {
	if p.Target != e.platform {
		return engine.Result{}, ErrWrongTarget
	}
	cmd, err := e.Decode(p.CallData)
	if err != nil {
		return engine.Result{}, err
	}
	cmd.Caller = e.caller
	res, err := e.sub.Submit(ctx, cmd)
	logger.Info(ctx, "governance proposal executed",
		zap.String("cmd", cmd.Type.String()),
		zap.String("recipient", p.Recipient.Hex()),
		zap.Error(err),
	)
	return res, err
}

func (e *Executor) Caller() common.Address { return e.caller }

// EncodeSetRewardFraction 生成 setter calldata，CLI 和测试用
func EncodeSetRewardFraction(kind platform.FractionKind, value *big.Int) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(SetterABI))
	if err != nil {
		return nil, err
	}
	for name, k := range fractionMethods {
		if k == kind {
			return parsed.Pack(name, value)
		}
	}
	return nil, platform.ErrUnknownFraction
}

func EncodeSetEditor(editor common.Address) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(SetterABI))
	if err != nil {
		return nil, err
	}
	return parsed.Pack(methodSetEditor, editor)
}
