package engine

import (
	"encoding/binary"
	"errors"

	"acdmx.com/internal/platform"
	"github.com/ethereum/go-ethereum/common"
)

const (
	evWalVersion = 1
	evRecordLen  = 214

	evOffVer       = 0
	evOffType      = 1   // uint8
	evOffSeq       = 2   // uint64
	evOffIdx       = 10  // uint16
	evOffReqID     = 12  // uint64
	evOffRound     = 20  // uint64
	evOffOrder     = 28  // uint64
	evOffAccount   = 36  // [20]byte
	evOffPeer      = 56  // [20]byte
	evOffMask      = 76  // uint8
	evOffAmount    = 77  // uint256
	evOffPrice     = 109 // uint256
	evOffValue     = 141 // uint256
	evOffRemaining = 173 // uint256
	evOffLevel     = 205 // uint8
	evOffEndTime   = 206 // int64 as uint64
)

var (
	ErrBadEvRecordLen = errors.New("outbox: bad record length")
	ErrBadEvVersion   = errors.New("outbox: bad version")
)

type BinaryEvCodec struct{}

func (BinaryEvCodec) Encode(dst []byte, ev Event) ([]byte, error) {
	if cap(dst) < evRecordLen {
		dst = make([]byte, evRecordLen)
	} else {
		dst = dst[:evRecordLen]
	}

	dst[evOffVer] = byte(evWalVersion)
	dst[evOffType] = byte(ev.Type)
	binary.LittleEndian.PutUint64(dst[evOffSeq:evOffSeq+8], ev.Seq)
	binary.LittleEndian.PutUint16(dst[evOffIdx:evOffIdx+2], ev.Idx)
	binary.LittleEndian.PutUint64(dst[evOffReqID:evOffReqID+8], ev.ReqID)
	binary.LittleEndian.PutUint64(dst[evOffRound:evOffRound+8], ev.Round)
	binary.LittleEndian.PutUint64(dst[evOffOrder:evOffOrder+8], ev.OrderID)
	copy(dst[evOffAccount:evOffAccount+common.AddressLength], ev.Account[:])
	copy(dst[evOffPeer:evOffPeer+common.AddressLength], ev.Peer[:])

	var mask byte
	mask |= putU256(dst[evOffAmount:evOffAmount+32], ev.Amount, maskAmount)
	mask |= putU256(dst[evOffPrice:evOffPrice+32], ev.Price, maskPrice)
	mask |= putU256(dst[evOffValue:evOffValue+32], ev.Value, maskValue)
	mask |= putU256(dst[evOffRemaining:evOffRemaining+32], ev.Remaining, maskRemaining)
	dst[evOffMask] = mask

	dst[evOffLevel] = ev.Level
	binary.LittleEndian.PutUint64(dst[evOffEndTime:evOffEndTime+8], uint64(ev.EndTime))
	return dst, nil
}

func (BinaryEvCodec) Decode(payload []byte) (Event, error) {
	if len(payload) != evRecordLen {
		return Event{}, ErrBadEvRecordLen
	}
	if int(payload[evOffVer]) != evWalVersion {
		return Event{}, ErrBadEvVersion
	}

	var ev Event
	ev.Type = platform.EventType(payload[evOffType])
	ev.Seq = binary.LittleEndian.Uint64(payload[evOffSeq : evOffSeq+8])
	ev.Idx = binary.LittleEndian.Uint16(payload[evOffIdx : evOffIdx+2])
	ev.ReqID = binary.LittleEndian.Uint64(payload[evOffReqID : evOffReqID+8])
	ev.Round = binary.LittleEndian.Uint64(payload[evOffRound : evOffRound+8])
	ev.OrderID = binary.LittleEndian.Uint64(payload[evOffOrder : evOffOrder+8])
	ev.Account = common.BytesToAddress(payload[evOffAccount : evOffAccount+common.AddressLength])
	ev.Peer = common.BytesToAddress(payload[evOffPeer : evOffPeer+common.AddressLength])

	mask := payload[evOffMask]
	ev.Amount = getU256(payload[evOffAmount:evOffAmount+32], mask, maskAmount)
	ev.Price = getU256(payload[evOffPrice:evOffPrice+32], mask, maskPrice)
	ev.Value = getU256(payload[evOffValue:evOffValue+32], mask, maskValue)
	ev.Remaining = getU256(payload[evOffRemaining:evOffRemaining+32], mask, maskRemaining)

	ev.Level = payload[evOffLevel]
	ev.EndTime = int64(binary.LittleEndian.Uint64(payload[evOffEndTime : evOffEndTime+8]))
	return ev, nil
}
