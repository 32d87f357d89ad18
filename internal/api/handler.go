package api

import (
	"context"
	"strconv"
	"strings"

	"acdmx.com/internal/engine"
	"acdmx.com/internal/governance"
	"acdmx.com/internal/platform"
	"acdmx.com/internal/readmodel"
	"acdmx.com/pkg/common"
	"acdmx.com/pkg/units"
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const HeaderCaller = "X-Caller-Address"

var (
	ErrNoCaller   = xerr.New(xerr.RequestParamsError, "missing or invalid "+HeaderCaller)
	ErrBadAddress = xerr.New(xerr.RequestParamsError, "invalid address")
	ErrBadAmount  = xerr.New(xerr.RequestParamsError, "invalid amount")
	ErrBadID      = xerr.New(xerr.RequestParamsError, "invalid order id")
	ErrNoReadSide = xerr.New(xerr.ServerCommonError, "read model is not configured")
)

// Engine 写入口 + 平台只读视图
type Engine interface {
	Submit(ctx context.Context, cmd engine.Command) (engine.Result, error)
	Platform() *platform.Platform
}

type Handler struct {
	eng Engine
	gov *governance.Executor
	rm  *readmodel.Service // 可以为空
}

func NewHandler(eng Engine, gov *governance.Executor, rm *readmodel.Service) *Handler {
	return &Handler{eng: eng, gov: gov, rm: rm}
}

// ---- 参数解析 ----

func parseAddr(s string) (ethcommon.Address, error) {
	s = strings.TrimSpace(s)
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, ErrBadAddress
	}
	return ethcommon.HexToAddress(s), nil
}

func caller(c *gin.Context) (ethcommon.Address, error) {
	addr, err := parseAddr(c.GetHeader(HeaderCaller))
	if err != nil || addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, ErrNoCaller
	}
	return addr, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := units.Parse(s)
	if err != nil {
		return nil, ErrBadAmount
	}
	return v, nil
}

func orderID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrBadID
	}
	return id, nil
}

func (h *Handler) submit(c *gin.Context, cmd engine.Command) (engine.Result, bool) {
	res, err := h.eng.Submit(c.Request.Context(), cmd)
	if err != nil {
		common.FailFromErr(c, err)
		return res, false
	}
	return res, true
}

// ---- 注册 ----

func (h *Handler) Register(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	var user, referer ethcommon.Address
	if req.User != "" {
		if user, err = parseAddr(req.User); err != nil {
			common.FailFromErr(c, err)
			return
		}
	}
	if req.Referer != "" {
		if referer, err = parseAddr(req.Referer); err != nil {
			common.FailFromErr(c, err)
			return
		}
	}
	cmd := engine.Command{Type: engine.CmdRegister, Caller: who, User: user, Target: referer}
	res, ok := h.submit(c, cmd)
	if !ok {
		return
	}
	common.Success(c, gin.H{"seq": res.Seq, "user": cmd.RegisterUser().Hex(), "registered": res.Registered})
}

func (h *Handler) Referers(c *gin.Context) {
	user, err := parseAddr(c.Param("addr"))
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	p := h.eng.Platform()
	l1, l2 := p.Referers(user)
	out := gin.H{"registered": p.IsRegistered(user), "referer1": "", "referer2": ""}
	if l1 != (ethcommon.Address{}) {
		out["referer1"] = l1.Hex()
	}
	if l2 != (ethcommon.Address{}) {
		out["referer2"] = l2.Hex()
	}
	common.Success(c, out)
}

// Referrals 下级数量和返佣流水，走读模型
func (h *Handler) Referrals(c *gin.Context) {
	if h.rm == nil {
		common.FailFromErr(c, ErrNoReadSide)
		return
	}
	user, err := parseAddr(c.Param("addr"))
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	page, limit := pageArgs(c)
	stats, err := h.rm.Referrals(c.Request.Context(), user.Hex(), page, limit)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, stats)
}

// ---- 轮次 ----

func (h *Handler) StartSale(c *gin.Context) {
	h.startRound(c, engine.CmdStartSale)
}

func (h *Handler) StartTrade(c *gin.Context) {
	h.startRound(c, engine.CmdStartTrade)
}

// 任何人都可以推动轮次切换，条件由平台判断
func (h *Handler) startRound(c *gin.Context, t engine.CmdType) {
	who, _ := caller(c)
	if _, ok := h.submit(c, engine.Command{Type: t, Caller: who}); !ok {
		return
	}
	common.Success(c, toRoundView(h.eng.Platform().Round()))
}

func (h *Handler) CurrentRound(c *gin.Context) {
	common.Success(c, toRoundView(h.eng.Platform().Round()))
}

// RoundHistory 历史轮次统计，走读模型
func (h *Handler) RoundHistory(c *gin.Context) {
	if h.rm == nil {
		common.FailFromErr(c, ErrNoReadSide)
		return
	}
	n, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, "invalid round number"))
		return
	}
	row, err := h.rm.Round(c.Request.Context(), n)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, row)
}

// ---- 销售 ----

func (h *Handler) BuyACDM(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req PaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdBuyACDM, Caller: buyer, Amount: payment})
	if !ok {
		return
	}
	common.Success(c, gin.H{"seq": res.Seq, "units": dec(res.Units)})
}

// ---- 订单 ----

func (h *Handler) AddOrder(c *gin.Context) {
	seller, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req AddOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdAddOrder, Caller: seller, Amount: amount, Price: price})
	if !ok {
		return
	}
	common.Success(c, gin.H{"seq": res.Seq, "order_id": res.OrderID})
}

func (h *Handler) RemoveOrder(c *gin.Context) {
	seller, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	id, err := orderID(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdRemoveOrder, Caller: seller, OrderID: id})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

func (h *Handler) BuyOrder(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	id, err := orderID(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req PaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdBuyOrder, Caller: buyer, OrderID: id, Amount: payment})
	if !ok {
		return
	}
	common.Success(c, gin.H{"seq": res.Seq, "fill": toFillView(res.Fill)})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, err := orderID(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	o, ok := h.eng.Platform().Order(id)
	if !ok {
		common.FailFromErr(c, platform.ErrOrderNotFound)
		return
	}
	out := gin.H{"order": toOrderView(o)}
	if h.rm != nil {
		// 读模型可能落后几条事件，成交记录拿不到不影响订单本身
		if _, fills, err := h.rm.Order(c.Request.Context(), id); err == nil {
			out["fills"] = fills
		}
	}
	common.Success(c, out)
}

func (h *Handler) ActiveOrders(c *gin.Context) {
	orders := h.eng.Platform().ActiveOrders()
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	common.Success(c, out)
}

// ---- 参数 ----

func (h *Handler) Params(c *gin.Context) {
	p := h.eng.Platform()
	common.Success(c, ParamsView{
		Fractions: p.Fractions(),
		Editor:    p.Editor().Hex(),
		Owner:     p.Owner().Hex(),
	})
}

func (h *Handler) SetFraction(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	kind, err := platform.ParseFractionKind(c.Param("name"))
	if err != nil {
		common.FailFromErr(c, platform.ErrUnknownFraction)
		return
	}
	var req FractionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdSetFraction, Caller: who, Kind: uint8(kind), Amount: value})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

func (h *Handler) SetEditor(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req EditorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	editor, err := parseAddr(req.Editor)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdSetEditor, Caller: who, Target: editor})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

// ExecuteProposal 治理提案执行入口，调用方身份由 executor 决定
func (h *Handler) ExecuteProposal(c *gin.Context) {
	if h.gov == nil {
		common.FailFromErr(c, xerr.New(xerr.ServerCommonError, "governance is not configured"))
		return
	}
	var req ProposalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	target, err := parseAddr(req.Target)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var recipient ethcommon.Address
	if req.Recipient != "" {
		if recipient, err = parseAddr(req.Recipient); err != nil {
			common.FailFromErr(c, err)
			return
		}
	}
	data, err := hexutil.Decode(req.CallData)
	if err != nil {
		common.FailFromErr(c, governance.ErrBadCallData)
		return
	}
	res, err := h.gov.Execute(c.Request.Context(), governance.Proposal{Target: target, CallData: data, Recipient: recipient})
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toCommandView(res))
}

// ---- 账本 ----

func (h *Handler) Approve(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req AmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	amount := platform.MaxApproval()
	if req.Amount != "max" {
		if amount, err = parseAmount(req.Amount); err != nil {
			common.FailFromErr(c, err)
			return
		}
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdApprove, Caller: owner, Amount: amount})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

// Deposit 开发环境充值，只有 owner 能调
func (h *Handler) Deposit(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	if who != h.eng.Platform().Owner() {
		common.FailFromErr(c, platform.ErrNotOwner)
		return
	}
	var req DepositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	to, err := parseAddr(req.To)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdDeposit, Caller: who, Target: to, Amount: amount})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

func (h *Handler) Withdraw(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	var req AmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	res, ok := h.submit(c, engine.Command{Type: engine.CmdWithdraw, Caller: who, Amount: amount})
	if !ok {
		return
	}
	common.Success(c, toCommandView(res))
}

func (h *Handler) Balances(c *gin.Context) {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	b := h.eng.Platform().Balances(addr)
	common.Success(c, BalancesView{
		Address:   addr.Hex(),
		Token:     dec(b.Token),
		Payment:   dec(b.Payment),
		Allowance: dec(b.Allowance),
	})
}

func pageArgs(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
