package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"

	"acdmx.com/pkg/wal"
)

type Outbox interface {
	Append(ev Event) error
	AppendCmdEnd(seq uint64) error
	Flush() error
	Close() error
}

// EventOutbox ev.wal 写端，事件按命令分组，每组以 EvCmdEnd 结尾
type EventOutbox struct {
	w      *wal.Writer
	codec  EvCodec
	binBuf []byte
}

func OpenEventOutbox(path string, bufSize int, codec EvCodec) (*EventOutbox, error) {
	wr, err := wal.OpenWrite(path, bufSize)
	if err != nil {
		return nil, err
	}
	return &EventOutbox{w: wr, codec: codec, binBuf: make([]byte, evRecordLen)}, nil
}

func (o *EventOutbox) Append(ev Event) error {
	var dst []byte
	switch o.codec.(type) {
	case JSONEvCodec:
		dst = make([]byte, 0, 512)
	default:
		dst = o.binBuf[:0]
	}
	payload, err := o.codec.Encode(dst, ev)
	if err != nil {
		return err
	}
	return o.w.Append(payload)
}

func (o *EventOutbox) AppendCmdEnd(seq uint64) error {
	var ev Event
	ev.Type = EvCmdEnd
	ev.Seq = seq
	return o.Append(ev)
}

func (o *EventOutbox) Flush() error { return o.w.Flush() }
func (o *EventOutbox) Close() error { return o.w.Close() }

// ScanAndRepairOutbox 启动时扫描 ev.wal：截掉半写的尾巴，
// 再截掉最后一个 EvCmdEnd 之后的残留事件，返回最后一个完整命令的 seq
func ScanAndRepairOutbox(path string, codec EvCodec) (lastCompleteSeq uint64, lastCompleteOffset int64, err error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return 0, 0, nil
	}
	r, err := wal.OpenReader(path, 0, wal.ReaderOptions{AllowTruncatedTail: true})
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	for {
		p, nextOff, e := r.Next()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return 0, 0, e
		}
		ev, err := codec.Decode(p)
		if err != nil {
			return 0, 0, err
		}
		if ev.Type == EvCmdEnd {
			lastCompleteSeq = ev.Seq
			lastCompleteOffset = nextOff
		}
	}

	if r.TruncatedTail() {
		if err := wal.TruncateTo(path, r.LastGoodOffset()); err != nil {
			return 0, 0, err
		}
	}
	// 没有任何完整命令时整个文件都是残留
	if err := wal.TruncateTo(path, lastCompleteOffset); err != nil {
		return 0, 0, err
	}
	return lastCompleteSeq, lastCompleteOffset, nil
}

func cmdWalPath(dir, stream string) string {
	return filepath.Join(dir, safeName(stream)+".cmd.wal")
}

func outboxWalPath(dir, stream string) string {
	return filepath.Join(dir, safeName(stream)+".ev.wal")
}

func outboxCursorPath(dir, stream string) string {
	return filepath.Join(dir, safeName(stream)+".ev.cursor")
}

// cursor 文件：8 字节 little endian offset
func loadCursor(path string) int64 {
	b, err := os.ReadFile(path)
	if err != nil || len(b) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b[:8]))
}

func storeCursor(path string, off int64) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(off))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b[:], 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func safeName(s string) string {
	sb := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == '_' || r == '-' {
			sb = append(sb, r)
		} else {
			sb = append(sb, '_')
		}
	}
	return string(sb)
}
