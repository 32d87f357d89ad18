package engine

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	cmdWalVersion = 2
	cmdRecordLen  = 160

	offVer     = 0
	offType    = 1
	offSeq     = 2  // uint64
	offReqID   = 10 // uint64
	offTs      = 18 // int64 as uint64
	offCaller  = 26 // [20]byte
	offTarget  = 46 // [20]byte
	offOrderID = 66 // uint64
	offMask    = 74 // bit0 amount, bit1 price
	offAmount  = 75 // uint256 big endian
	offPrice   = 107
	offKind    = 139
	offUser    = 140 // [20]byte
)

const (
	maskAmount = 1 << iota
	maskPrice
	maskValue
	maskRemaining
)

var (
	ErrBadCmdRecordLen = errors.New("wal cmd: bad record length")
	ErrBadCmdVersion   = errors.New("wal cmd: bad version")
	ErrBadCmdType      = errors.New("wal cmd: bad cmd type")
)

// BinaryCmdCodec 定长记录，热路径不分配
type BinaryCmdCodec struct{}

func (BinaryCmdCodec) Encode(dst []byte, seq uint64, cmd Command) ([]byte, error) {
	if cap(dst) < cmdRecordLen {
		dst = make([]byte, cmdRecordLen)
	} else {
		dst = dst[:cmdRecordLen]
	}

	dst[offVer] = byte(cmdWalVersion)
	dst[offType] = byte(cmd.Type)
	binary.LittleEndian.PutUint64(dst[offSeq:offSeq+8], seq)
	binary.LittleEndian.PutUint64(dst[offReqID:offReqID+8], cmd.ReqID)
	binary.LittleEndian.PutUint64(dst[offTs:offTs+8], uint64(cmd.Ts))
	copy(dst[offCaller:offCaller+common.AddressLength], cmd.Caller[:])
	copy(dst[offTarget:offTarget+common.AddressLength], cmd.Target[:])
	binary.LittleEndian.PutUint64(dst[offOrderID:offOrderID+8], cmd.OrderID)

	var mask byte
	mask |= putU256(dst[offAmount:offAmount+32], cmd.Amount, maskAmount)
	mask |= putU256(dst[offPrice:offPrice+32], cmd.Price, maskPrice)
	dst[offMask] = mask
	dst[offKind] = cmd.Kind
	copy(dst[offUser:offUser+common.AddressLength], cmd.User[:])
	return dst, nil
}

func (BinaryCmdCodec) Decode(payload []byte) (seq uint64, cmd Command, err error) {
	if len(payload) != cmdRecordLen {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	if int(payload[offVer]) != cmdWalVersion {
		return 0, Command{}, ErrBadCmdVersion
	}
	ct := CmdType(payload[offType])
	if !ct.Valid() {
		return 0, Command{}, ErrBadCmdType
	}

	seq = binary.LittleEndian.Uint64(payload[offSeq : offSeq+8])
	cmd.Type = ct
	cmd.ReqID = binary.LittleEndian.Uint64(payload[offReqID : offReqID+8])
	cmd.Ts = int64(binary.LittleEndian.Uint64(payload[offTs : offTs+8]))
	cmd.Caller = common.BytesToAddress(payload[offCaller : offCaller+common.AddressLength])
	cmd.Target = common.BytesToAddress(payload[offTarget : offTarget+common.AddressLength])
	cmd.OrderID = binary.LittleEndian.Uint64(payload[offOrderID : offOrderID+8])

	mask := payload[offMask]
	cmd.Amount = getU256(payload[offAmount:offAmount+32], mask, maskAmount)
	cmd.Price = getU256(payload[offPrice:offPrice+32], mask, maskPrice)
	cmd.Kind = payload[offKind]
	cmd.User = common.BytesToAddress(payload[offUser : offUser+common.AddressLength])
	return seq, cmd, nil
}

// nil 和 0 要区分开，用 mask 记录哪些字段存在
func putU256(dst []byte, v *uint256.Int, bit byte) byte {
	if v == nil {
		clear(dst)
		return 0
	}
	v.PutUint256(dst)
	return bit
}

func getU256(src []byte, mask, bit byte) *uint256.Int {
	if mask&bit == 0 {
		return nil
	}
	return new(uint256.Int).SetBytes32(src)
}
