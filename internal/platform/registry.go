package platform

import "github.com/ethereum/go-ethereum/common"

// Registry 推荐关系：每个用户最多一个上级，首次注册后不可更改
type Registry struct {
	referer map[common.Address]common.Address
}

func NewRegistry() *Registry {
	return &Registry{referer: make(map[common.Address]common.Address, 1024)}
}

func (r *Registry) IsRegistered(user common.Address) bool {
	_, ok := r.referer[user]
	return ok
}

func (r *Registry) Len() int { return len(r.referer) }

// register 已注册返回 false 且不改任何东西，零地址 referer 表示没有上级
func (r *Registry) register(user, referer common.Address) (bool, error) {
	if user == (common.Address{}) {
		return false, ErrZeroAddress
	}
	if user == referer {
		return false, ErrSelfReferral
	}
	if r.IsRegistered(user) {
		return false, nil
	}
	// 上级的上级不能是自己，否则二级返佣会回到自己身上
	if referer != (common.Address{}) && r.referer[referer] == user {
		return false, ErrReferralCycle
	}
	r.referer[user] = referer
	return true, nil
}

// Referers 最多向上两级，缺哪一级就返回零地址
func (r *Registry) Referers(user common.Address) (l1, l2 common.Address) {
	l1 = r.referer[user]
	if l1 == (common.Address{}) {
		return
	}
	l2 = r.referer[l1]
	return
}

// Register 任何人都可以替任何地址注册。已注册时什么都不做，返回 false
func (p *Platform) Register(user, referer common.Address, emit Emitter) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	created, err := p.registry.register(user, referer)
	if err != nil || !created {
		return false, err
	}
	events{{Type: EvUserRegistered, Account: user, Peer: referer}}.flush(emit)
	return true, nil
}
