package governance

import (
	"context"
	"math/big"
	"testing"
	"time"

	"acdmx.com/internal/engine"
	"acdmx.com/internal/ledger"
	"acdmx.com/internal/platform"
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	platformAddr = common.HexToAddress("0x00000000000000000000000000000000000acd00")
	owner        = common.HexToAddress("0x000000000000000000000000000000000000000a")
	dao          = common.HexToAddress("0x0000000000000000000000000000000000000da0")
	newEditor    = common.HexToAddress("0x00000000000000000000000000000000000000ed")
)

func newExecutor(t *testing.T) (*Executor, *platform.Platform) {
	t.Helper()
	p := platform.New(platform.Config{
		Self:      platformAddr,
		Owner:     owner,
		Editor:    dao,
		Fractions: platform.DefaultFractions(),
	}, ledger.New())
	eng := engine.NewEngine(engine.Config{}, p)
	require.NoError(t, eng.Start())
	t.Cleanup(eng.Stop)

	ex, err := NewExecutor(platformAddr, dao, eng)
	require.NoError(t, err)
	return ex, p
}

func mustEncode(t *testing.T, kind platform.FractionKind, v int64) []byte {
	t.Helper()
	data, err := EncodeSetRewardFraction(kind, big.NewInt(v))
	require.NoError(t, err)
	return data
}

func TestExecute_SetRewardFraction(t *testing.T) {
	cases := []struct {
		name  string
		kind  platform.FractionKind
		value int64
		want  error
	}{
		{"销售一级 999", platform.SaleRef1, 999, nil},
		{"销售二级 0", platform.SaleRef2, 0, nil},
		{"交易一级 1000", platform.TradeRef1, 1000, platform.ErrFractionRange},
		{"交易二级 20", platform.TradeRef2, 20, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ex, p := newExecutor(t)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			res, err := ex.Execute(ctx, Proposal{Target: platformAddr, CallData: mustEncode(t, c.kind, c.value)})
			if c.want != nil {
				assert.ErrorIs(t, err, c.want)
				assert.Equal(t, platform.DefaultFractions(), p.Fractions())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(c.value), p.Fractions().Get(c.kind))
			require.Len(t, res.Events, 1)
			assert.Equal(t, platform.EvRewardFractionChanged, res.Events[0].Type)
		})
	}
}

func TestExecute_SetEditor(t *testing.T) {
	ex, p := newExecutor(t)
	data, err := EncodeSetEditor(newEditor)
	require.NoError(t, err)

	// dao 只是 editor，不能换 editor
	_, err = ex.Execute(context.Background(), Proposal{Target: platformAddr, CallData: data})
	assert.ErrorIs(t, err, platform.ErrNotOwner)

	ownerEx, err := NewExecutor(platformAddr, owner, ex.sub)
	require.NoError(t, err)
	_, err = ownerEx.Execute(context.Background(), Proposal{Target: platformAddr, CallData: data, Recipient: dao})
	require.NoError(t, err)
	assert.Equal(t, newEditor, p.Editor())
}

func TestExecute_Rejections(t *testing.T) {
	ex, _ := newExecutor(t)
	good := mustEncode(t, platform.SaleRef1, 10)

	_, err := ex.Execute(context.Background(), Proposal{Target: owner, CallData: good})
	assert.ErrorIs(t, err, ErrWrongTarget)
	assert.ErrorIs(t, err, xerr.ErrUnauthorized)

	_, err = ex.Execute(context.Background(), Proposal{Target: platformAddr, CallData: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrBadCallData)

	_, err = ex.Execute(context.Background(), Proposal{Target: platformAddr, CallData: []byte{0xde, 0xad, 0xbe, 0xef}})
	assert.ErrorIs(t, err, ErrUnknownSelector)

	_, err = ex.Execute(context.Background(), Proposal{Target: platformAddr, CallData: good[:20]})
	assert.ErrorIs(t, err, ErrBadCallData)
}

func TestDecode_HugeFraction(t *testing.T) {
	ex, _ := newExecutor(t)
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	data, err := EncodeSetRewardFraction(platform.TradeRef2, huge)
	require.NoError(t, err)

	cmd, err := ex.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, engine.CmdSetFraction, cmd.Type)
	assert.Equal(t, uint8(platform.TradeRef2), cmd.Kind)

	_, err = ex.Execute(context.Background(), Proposal{Target: platformAddr, CallData: data})
	assert.ErrorIs(t, err, platform.ErrFractionRange)
}
