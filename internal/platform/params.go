package platform

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SetRewardFraction owner 或 editor 可改，取值必须 < 1000。
// 先鉴权，再校验 kind 和取值
func (p *Platform) SetRewardFraction(caller common.Address, kind FractionKind, value *uint256.Int, emit Emitter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner && caller != p.editor {
		return ErrNotEditor
	}
	if !kind.Valid() {
		return ErrUnknownFraction
	}
	if !value.LtUint64(FractionBase) {
		return ErrFractionRange
	}

	p.fractions.set(kind, value.Uint64())
	events{{
		Type:   EvRewardFractionChanged,
		Round:  p.round.Number,
		Level:  uint8(kind),
		Amount: value.Clone(),
	}}.flush(emit)
	return nil
}

// SetEditor 只有 owner 能换 editor，零地址表示撤销
func (p *Platform) SetEditor(caller, editor common.Address, emit Emitter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return ErrNotOwner
	}
	p.editor = editor
	events{{Type: EvEditorChanged, Round: p.round.Number, Account: editor}}.flush(emit)
	return nil
}
