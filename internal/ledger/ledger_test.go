package ledger

import (
	"testing"

	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	platform = common.HexToAddress("0x00000000000000000000000000000000000acd00")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestMintTransferBurn(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, u(100)))
	require.NoError(t, l.Transfer(alice, bob, u(40)))
	assert.Equal(t, u(60), l.BalanceOf(alice))
	assert.Equal(t, u(40), l.BalanceOf(bob))
	assert.Equal(t, u(100), l.TotalSupply())

	require.NoError(t, l.Burn(bob, u(40)))
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.Equal(t, u(60), l.TotalSupply())

	err := l.Burn(bob, u(1))
	assert.ErrorIs(t, err, xerr.ErrInsufficient)
	assert.ErrorIs(t, l.Transfer(alice, bob, u(61)), ErrInsufficientBalance)
}

func TestTransferFrom_Allowance(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, u(100)))

	// 没授权
	assert.ErrorIs(t, l.TransferFrom(platform, alice, platform, u(10)), ErrInsufficientAllowance)

	require.NoError(t, l.Approve(alice, platform, u(30)))
	require.NoError(t, l.TransferFrom(platform, alice, platform, u(10)))
	assert.Equal(t, u(20), l.Allowance(alice, platform))
	assert.Equal(t, u(10), l.BalanceOf(platform))

	assert.ErrorIs(t, l.TransferFrom(platform, alice, platform, u(21)), ErrInsufficientAllowance)

	// 无限授权不扣减
	require.NoError(t, l.Approve(alice, platform, MaxAllowance))
	require.NoError(t, l.TransferFrom(platform, alice, platform, u(50)))
	assert.Equal(t, MaxAllowance, l.Allowance(alice, platform))

	// 授权够但余额不够
	assert.ErrorIs(t, l.TransferFrom(platform, alice, platform, u(41)), ErrInsufficientBalance)
}

func TestPayments(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, u(1000)))
	require.NoError(t, l.Pay(alice, platform, u(700)))
	assert.Equal(t, u(300), l.PaymentBalanceOf(alice))
	assert.Equal(t, u(700), l.PaymentBalanceOf(platform))

	assert.ErrorIs(t, l.Pay(alice, platform, u(301)), ErrInsufficientPayment)
	assert.ErrorIs(t, l.Withdraw(alice, u(301)), ErrInsufficientPayment)
	require.NoError(t, l.Withdraw(alice, u(300)))
	assert.True(t, l.PaymentBalanceOf(alice).IsZero())

	assert.ErrorIs(t, l.Deposit(common.Address{}, u(1)), ErrZeroAddress)
}

func TestSnapshotRevert(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, u(100)))
	require.NoError(t, l.Deposit(bob, u(50)))
	l.Commit()

	snap := l.Snapshot()
	require.NoError(t, l.Transfer(alice, bob, u(30)))
	require.NoError(t, l.Pay(bob, alice, u(50)))
	require.NoError(t, l.Approve(alice, platform, u(7)))
	require.NoError(t, l.Burn(alice, u(70)))
	require.NoError(t, l.Mint(platform, u(5)))
	l.RevertToSnapshot(snap)

	assert.Equal(t, u(100), l.BalanceOf(alice))
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.True(t, l.BalanceOf(platform).IsZero())
	assert.Equal(t, u(50), l.PaymentBalanceOf(bob))
	assert.True(t, l.PaymentBalanceOf(alice).IsZero())
	assert.True(t, l.Allowance(alice, platform).IsZero())
	assert.Equal(t, u(100), l.TotalSupply())
}

func TestNestedSnapshots(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, u(10)))
	outer := l.Snapshot()
	require.NoError(t, l.Pay(alice, bob, u(3)))
	inner := l.Snapshot()
	require.NoError(t, l.Pay(alice, bob, u(3)))

	l.RevertToSnapshot(inner)
	assert.Equal(t, u(3), l.PaymentBalanceOf(bob))
	l.RevertToSnapshot(outer)
	assert.True(t, l.PaymentBalanceOf(bob).IsZero())
	assert.Equal(t, u(10), l.PaymentBalanceOf(alice))
}

func TestReturnedBalancesAreCopies(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, u(5)))
	b := l.BalanceOf(alice)
	b.SetUint64(999)
	assert.Equal(t, u(5), l.BalanceOf(alice))
}

func TestMintOverflow(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, MaxAllowance))
	assert.ErrorIs(t, l.Mint(bob, u(1)), ErrOverflow)
	assert.True(t, l.BalanceOf(bob).IsZero())
}
