package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"acdmx.com/internal/engine"
	"acdmx.com/internal/governance"
	"acdmx.com/internal/ledger"
	"acdmx.com/internal/platform"
	"acdmx.com/internal/readmodel"
	"acdmx.com/pkg/common"
	"acdmx.com/pkg/orm"
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	t0       = time.Unix(1_700_000_000, 0)
	selfAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000acd00")
	owner    = ethcommon.HexToAddress("0x000000000000000000000000000000000000000a")
	dao      = ethcommon.HexToAddress("0x0000000000000000000000000000000000000da0")
	alice    = ethcommon.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = ethcommon.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type testEnv struct {
	r     *gin.Engine
	eng   *engine.Engine
	clock atomic.Int64
}

func newEnv(t *testing.T, withReadModel bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p := platform.New(platform.Config{
		Self:          selfAddr,
		Owner:         owner,
		Editor:        dao,
		RoundDuration: time.Hour,
		Fractions:     platform.DefaultFractions(),
	}, ledger.New())
	env := &testEnv{eng: engine.NewEngine(engine.Config{}, p)}
	env.clock.Store(t0.UnixNano())
	env.eng.SetClock(func() time.Time { return time.Unix(0, env.clock.Load()) })
	require.NoError(t, env.eng.Start())
	t.Cleanup(env.eng.Stop)

	gov, err := governance.NewExecutor(selfAddr, dao, env.eng)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var rm *readmodel.Service
	if withReadModel {
		db, err := orm.Open(&orm.Config{Driver: "sqlite", LogLevel: "silent"})
		require.NoError(t, err)
		repo := readmodel.NewRepo(db)
		require.NoError(t, repo.Migrate(ctx))
		rm = readmodel.NewService(repo, nil, time.Second)
		go engine.Dispatch(ctx, env.eng.Events(), readmodel.NewProjector(repo, nil))
	}
	env.r = NewRouter(ctx, Config{}, NewHandler(env.eng, gov, rm), nil, nil)
	return env
}

func (e *testEnv) advance(d time.Duration) { e.clock.Add(int64(d)) }

func (e *testEnv) do(t *testing.T, method, path string, from ethcommon.Address, body any) (int, common.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if from != (ethcommon.Address{}) {
		req.Header.Set(HeaderCaller, from.Hex())
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body=%s", w.Body.String())
	return w.Code, resp
}

// ok 断言成功并取出 data
func (e *testEnv) ok(t *testing.T, method, path string, from ethcommon.Address, body any) map[string]any {
	t.Helper()
	status, resp := e.do(t, method, path, from, body)
	require.Equal(t, http.StatusOK, status, "%s %s: %s", method, path, resp.Message)
	m, _ := resp.Data.(map[string]any)
	return m
}

// 注册 + 开销售轮 + 给 bob 充值并买入
func (e *testEnv) saleSetup(t *testing.T) {
	t.Helper()
	e.ok(t, http.MethodPost, "/api/v1/users/register", alice, RegisterReq{})
	data := e.ok(t, http.MethodPost, "/api/v1/users/register", bob, RegisterReq{Referer: alice.Hex()})
	assert.Equal(t, true, data["registered"])

	data = e.ok(t, http.MethodPost, "/api/v1/rounds/sale", ethcommon.Address{}, nil)
	assert.Equal(t, "sale", data["phase"])
	assert.Equal(t, "100000000", data["price_per_unit"])
	assert.Equal(t, "10000000000", data["supply_remaining"])

	e.ok(t, http.MethodPost, "/api/v1/ledger/deposit", owner, DepositReq{To: bob.Hex(), Amount: "1000000000000"})
	data = e.ok(t, http.MethodPost, "/api/v1/sale/buy", bob, PaymentReq{Payment: "1000000000000"})
	assert.Equal(t, "10000", data["units"])
}

func TestAPI_SaleFlow(t *testing.T) {
	env := newEnv(t, false)
	env.saleSetup(t)

	data := env.ok(t, http.MethodGet, "/api/v1/users/"+bob.Hex()+"/referers", ethcommon.Address{}, nil)
	assert.Equal(t, true, data["registered"])
	assert.Equal(t, alice.Hex(), data["referer1"])
	assert.Equal(t, "", data["referer2"])

	data = env.ok(t, http.MethodGet, "/api/v1/ledger/"+bob.Hex(), ethcommon.Address{}, nil)
	assert.Equal(t, "10000", data["token"])
	assert.Equal(t, "0", data["payment"])
	// 一级返佣 5%
	data = env.ok(t, http.MethodGet, "/api/v1/ledger/"+alice.Hex(), ethcommon.Address{}, nil)
	assert.Equal(t, "50000000000", data["payment"])

	data = env.ok(t, http.MethodGet, "/api/v1/rounds/current", ethcommon.Address{}, nil)
	assert.Equal(t, "9999990000", data["supply_remaining"])
	assert.Equal(t, float64(t0.Add(time.Hour).Unix()), data["end_time"])

	// alice 提走返佣
	env.ok(t, http.MethodPost, "/api/v1/ledger/withdraw", alice, AmountReq{Amount: "50000000000"})
	data = env.ok(t, http.MethodGet, "/api/v1/ledger/"+alice.Hex(), ethcommon.Address{}, nil)
	assert.Equal(t, "0", data["payment"])
}

func TestAPI_TradeFlow(t *testing.T) {
	env := newEnv(t, false)
	env.saleSetup(t)

	// 销售轮没到期也没卖完
	status, resp := env.do(t, http.MethodPost, "/api/v1/rounds/trade", ethcommon.Address{}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, xerr.Timing, resp.Code)

	env.advance(time.Hour)
	data := env.ok(t, http.MethodPost, "/api/v1/rounds/trade", ethcommon.Address{}, nil)
	assert.Equal(t, "trade", data["phase"])

	env.ok(t, http.MethodPost, "/api/v1/ledger/approve", bob, AmountReq{Amount: "max"})
	data = env.ok(t, http.MethodPost, "/api/v1/orders", bob, AddOrderReq{Amount: "100", Price: "1000"})
	assert.Equal(t, float64(1), data["order_id"])

	status, resp = env.do(t, http.MethodGet, "/api/v1/orders", ethcommon.Address{}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Data, 1)

	env.ok(t, http.MethodPost, "/api/v1/ledger/deposit", owner, DepositReq{To: alice.Hex(), Amount: "100000"})
	data = env.ok(t, http.MethodPost, "/api/v1/orders/1/buy", alice, PaymentReq{Payment: "30500"})
	fill := data["fill"].(map[string]any)
	assert.Equal(t, "30", fill["units"])
	assert.Equal(t, "30000", fill["cost"])
	assert.Equal(t, "500", fill["refund"])
	assert.Equal(t, "70", fill["remaining"])

	data = env.ok(t, http.MethodGet, "/api/v1/orders/1", ethcommon.Address{}, nil)
	order := data["order"].(map[string]any)
	assert.Equal(t, "70", order["amount_remaining"])
	assert.Equal(t, true, order["active"])

	status, resp = env.do(t, http.MethodDelete, "/api/v1/orders/1", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "only seller can remove order", resp.Message)

	data = env.ok(t, http.MethodDelete, "/api/v1/orders/1", bob, nil)
	assert.Equal(t, []any{"OrderRemoved"}, data["events"])
	data = env.ok(t, http.MethodGet, "/api/v1/ledger/"+bob.Hex(), ethcommon.Address{}, nil)
	// 10000 - 30 卖出
	assert.Equal(t, "9970", data["token"])
}

func TestAPI_Rejections(t *testing.T) {
	env := newEnv(t, false)
	tests := []struct {
		name       string
		method     string
		path       string
		from       ethcommon.Address
		body       any
		wantStatus int
		wantCode   int
	}{
		{"缺少调用方", http.MethodPost, "/api/v1/sale/buy", ethcommon.Address{}, PaymentReq{Payment: "1"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"非销售轮购买", http.MethodPost, "/api/v1/sale/buy", bob, PaymentReq{Payment: "100000000"}, http.StatusConflict, xerr.PhaseViolation},
		{"金额非法", http.MethodPost, "/api/v1/sale/buy", bob, PaymentReq{Payment: "abc"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"负数金额", http.MethodPost, "/api/v1/sale/buy", bob, PaymentReq{Payment: "-1"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"缺少字段", http.MethodPost, "/api/v1/orders", bob, AddOrderReq{Amount: "1"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"非 owner 充值", http.MethodPost, "/api/v1/ledger/deposit", bob, DepositReq{To: bob.Hex(), Amount: "1"}, http.StatusForbidden, xerr.Unauthorized},
		{"订单不存在", http.MethodGet, "/api/v1/orders/99", ethcommon.Address{}, nil, http.StatusNotFound, xerr.RecordNotFound},
		{"订单号非法", http.MethodGet, "/api/v1/orders/0", ethcommon.Address{}, nil, http.StatusBadRequest, xerr.RequestParamsError},
		{"未知比例", http.MethodPut, "/api/v1/params/sale-ref9", owner, FractionReq{Value: "1"}, http.StatusBadRequest, xerr.Validation},
		{"比例越界", http.MethodPut, "/api/v1/params/sale-ref1", owner, FractionReq{Value: "1000"}, http.StatusBadRequest, xerr.Validation},
		{"普通用户改比例", http.MethodPut, "/api/v1/params/sale-ref1", bob, FractionReq{Value: "10"}, http.StatusForbidden, xerr.Unauthorized},
		{"editor 不能换 editor", http.MethodPut, "/api/v1/params/editor", dao, EditorReq{Editor: bob.Hex()}, http.StatusForbidden, xerr.Unauthorized},
		{"自己推荐自己", http.MethodPost, "/api/v1/users/register", bob, RegisterReq{Referer: bob.Hex()}, http.StatusBadRequest, xerr.Validation},
		{"注册地址非法", http.MethodPost, "/api/v1/users/register", owner, RegisterReq{User: "0x12"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"地址非法", http.MethodGet, "/api/v1/ledger/0x123", ethcommon.Address{}, nil, http.StatusBadRequest, xerr.RequestParamsError},
		{"没有读模型", http.MethodGet, "/api/v1/rounds/1", ethcommon.Address{}, nil, http.StatusInternalServerError, xerr.ServerCommonError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := env.do(t, tt.method, tt.path, tt.from, tt.body)
			assert.Equal(t, tt.wantStatus, status, resp.Message)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestAPI_RegisterOnBehalf(t *testing.T) {
	env := newEnv(t, false)
	carol := ethcommon.HexToAddress("0x00000000000000000000000000000000000ca201")

	env.ok(t, http.MethodPost, "/api/v1/users/register", alice, RegisterReq{})
	// owner 替 carol 注册，上级是 alice
	data := env.ok(t, http.MethodPost, "/api/v1/users/register", owner, RegisterReq{User: carol.Hex(), Referer: alice.Hex()})
	assert.Equal(t, true, data["registered"])
	assert.Equal(t, carol.Hex(), data["user"])

	data = env.ok(t, http.MethodGet, "/api/v1/users/"+carol.Hex()+"/referers", ethcommon.Address{}, nil)
	assert.Equal(t, true, data["registered"])
	assert.Equal(t, alice.Hex(), data["referer1"])

	// 调用方本人没有被注册
	data = env.ok(t, http.MethodGet, "/api/v1/users/"+owner.Hex()+"/referers", ethcommon.Address{}, nil)
	assert.Equal(t, false, data["registered"])

	// 再替 carol 注册一次是空操作
	data = env.ok(t, http.MethodPost, "/api/v1/users/register", bob, RegisterReq{User: carol.Hex(), Referer: bob.Hex()})
	assert.Equal(t, false, data["registered"])
}

func TestAPI_ParamsAndGovernance(t *testing.T) {
	env := newEnv(t, false)

	env.ok(t, http.MethodPut, "/api/v1/params/trade-ref2", owner, FractionReq{Value: "40"})

	call, err := governance.EncodeSetRewardFraction(platform.SaleRef1, big.NewInt(70))
	require.NoError(t, err)
	data := env.ok(t, http.MethodPost, "/api/v1/governance/execute", ethcommon.Address{}, ProposalReq{
		Target:    selfAddr.Hex(),
		CallData:  hexutil.Encode(call),
		Recipient: dao.Hex(),
	})
	assert.Equal(t, []any{"RewardFractionChanged"}, data["events"])

	data = env.ok(t, http.MethodGet, "/api/v1/params", ethcommon.Address{}, nil)
	fr := data["fractions"].(map[string]any)
	assert.Equal(t, float64(70), fr["sale_ref1"])
	assert.Equal(t, float64(30), fr["sale_ref2"])
	assert.Equal(t, float64(40), fr["trade_ref2"])
	assert.Equal(t, dao.Hex(), data["editor"])

	// 目标不是平台
	status, resp := env.do(t, http.MethodPost, "/api/v1/governance/execute", ethcommon.Address{}, ProposalReq{
		Target:   bob.Hex(),
		CallData: hexutil.Encode(call),
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, xerr.Unauthorized, resp.Code)

	status, _ = env.do(t, http.MethodPost, "/api/v1/governance/execute", ethcommon.Address{}, ProposalReq{
		Target:   selfAddr.Hex(),
		CallData: "0xzz",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// owner 换 editor 之后旧的治理身份失效
	env.ok(t, http.MethodPut, "/api/v1/params/editor", owner, EditorReq{Editor: alice.Hex()})
	status, _ = env.do(t, http.MethodPost, "/api/v1/governance/execute", ethcommon.Address{}, ProposalReq{
		Target:   selfAddr.Hex(),
		CallData: hexutil.Encode(call),
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAPI_ReadModel(t *testing.T) {
	env := newEnv(t, true)
	env.saleSetup(t)

	var data map[string]any
	require.Eventually(t, func() bool {
		status, resp := env.do(t, http.MethodGet, "/api/v1/rounds/1", ethcommon.Address{}, nil)
		if status != http.StatusOK {
			return false
		}
		data, _ = resp.Data.(map[string]any)
		return data["purchases"] == float64(1)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "10000", data["sold"])
	assert.Equal(t, "1000000000000", data["raised"])

	data = env.ok(t, http.MethodGet, "/api/v1/users/"+alice.Hex()+"/referrals", ethcommon.Address{}, nil)
	assert.Equal(t, float64(1), data["referrals"])
	payouts := data["payouts"].([]any)
	require.Len(t, payouts, 1)
	assert.Equal(t, "50000000000", payouts[0].(map[string]any)["amount"])
}
