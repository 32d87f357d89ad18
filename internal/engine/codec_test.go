package engine

import (
	"testing"

	"acdmx.com/internal/platform"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func sampleCmd() Command {
	return Command{
		Type:    CmdAddOrder,
		ReqID:   7,
		Ts:      1_700_000_000_123_456_789,
		Caller:  alice,
		Target:  bob,
		User:    common.HexToAddress("0x00000000000000000000000000000000000ca201"),
		OrderID: 42,
		Amount:  new(uint256.Int).Lsh(uint256.NewInt(1), 200),
		Price:   uint256.NewInt(0),
		Kind:    3,
	}
}

func sampleEvent() Event {
	return Event{
		Seq:   9,
		Idx:   2,
		ReqID: 7,
		Event: platform.Event{
			Type:      platform.EvOrderFilled,
			Round:     3,
			OrderID:   42,
			Account:   bob,
			Peer:      alice,
			Amount:    uint256.NewInt(6),
			Price:     uint256.NewInt(1000),
			Value:     uint256.NewInt(6000),
			Remaining: uint256.NewInt(0),
			Level:     1,
			EndTime:   1_700_003_600,
		},
	}
}

func TestCmdCodecs(t *testing.T) {
	codecs := []struct {
		name  string
		codec CmdCodec
	}{
		{"binary", BinaryCmdCodec{}},
		{"json", JSONCmdCodec{Version: 1}},
	}
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			in := sampleCmd()
			b, err := c.codec.Encode(nil, 11, in)
			require.NoError(t, err)
			seq, out, err := c.codec.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, uint64(11), seq)
			assert.Equal(t, in.Type, out.Type)
			assert.Equal(t, in.ReqID, out.ReqID)
			assert.Equal(t, in.Ts, out.Ts)
			assert.Equal(t, in.Caller, out.Caller)
			assert.Equal(t, in.Target, out.Target)
			assert.Equal(t, in.User, out.User)
			assert.Equal(t, in.OrderID, out.OrderID)
			assert.Equal(t, in.Amount, out.Amount)
			assert.Equal(t, in.Kind, out.Kind)
		})
	}
}

func TestBinaryCmdCodec_NilAmounts(t *testing.T) {
	in := Command{Type: CmdStartSale, Ts: 1}
	b, err := BinaryCmdCodec{}.Encode(make([]byte, 0, cmdRecordLen), 1, in)
	require.NoError(t, err)
	assert.Len(t, b, cmdRecordLen)

	_, out, err := BinaryCmdCodec{}.Decode(b)
	require.NoError(t, err)
	assert.Nil(t, out.Amount)
	assert.Nil(t, out.Price)

	// 零值和 nil 要区分
	in = sampleCmd()
	b, _ = BinaryCmdCodec{}.Encode(nil, 1, in)
	_, out, _ = BinaryCmdCodec{}.Decode(b)
	require.NotNil(t, out.Price)
	assert.True(t, out.Price.IsZero())
}

func TestBinaryCmdCodec_Corrupt(t *testing.T) {
	b, _ := BinaryCmdCodec{}.Encode(nil, 1, sampleCmd())

	_, _, err := BinaryCmdCodec{}.Decode(b[:len(b)-1])
	assert.ErrorIs(t, err, ErrBadCmdRecordLen)

	bad := append([]byte(nil), b...)
	bad[offVer] = 9
	_, _, err = BinaryCmdCodec{}.Decode(bad)
	assert.ErrorIs(t, err, ErrBadCmdVersion)

	bad = append([]byte(nil), b...)
	bad[offType] = 0
	_, _, err = BinaryCmdCodec{}.Decode(bad)
	assert.ErrorIs(t, err, ErrBadCmdType)

	_, _, err = JSONCmdCodec{}.Decode([]byte(`{"v":1,"seq":1,"cmd":{"type":99}}`))
	assert.ErrorIs(t, err, ErrBadCmdType)
}

func TestEvCodecs(t *testing.T) {
	codecs := []struct {
		name  string
		codec EvCodec
	}{
		{"binary", BinaryEvCodec{}},
		{"json", JSONEvCodec{Version: 1}},
	}
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			in := sampleEvent()
			b, err := c.codec.Encode(nil, in)
			require.NoError(t, err)
			out, err := c.codec.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, in, out)

			// 命令边界标记
			var end Event
			end.Type = EvCmdEnd
			end.Seq = 5
			b, err = c.codec.Encode(nil, end)
			require.NoError(t, err)
			out, err = c.codec.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, EvCmdEnd, out.Type)
			assert.Equal(t, uint64(5), out.Seq)
			assert.Nil(t, out.Amount)
		})
	}
}

func TestBinaryEvCodec_Corrupt(t *testing.T) {
	b, _ := BinaryEvCodec{}.Encode(nil, sampleEvent())
	_, err := BinaryEvCodec{}.Decode(b[:10])
	assert.ErrorIs(t, err, ErrBadEvRecordLen)

	b[evOffVer] = 2
	_, err = BinaryEvCodec{}.Decode(b)
	assert.ErrorIs(t, err, ErrBadEvVersion)
}
