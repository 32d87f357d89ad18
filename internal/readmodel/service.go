package readmodel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service 查询入口：轮次走缓存 + singleflight，其余直接查库
type Service struct {
	repo  *Repo
	cache Cache
	sf    singleflight.Group
	ttl   time.Duration
}

func NewService(repo *Repo, cache Cache, ttl time.Duration) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// Round number=0 取最新一轮
func (s *Service) Round(ctx context.Context, number uint64) (*Round, error) {
	if row, ok, err := s.cache.GetRound(ctx, number); err == nil && ok {
		return row, nil
	}
	// singleflight 防击穿
	v, err, _ := s.sf.Do(fmt.Sprintf("round:%d", number), func() (interface{}, error) {
		var (
			row *Round
			err error
		)
		if number == 0 {
			row, err = s.repo.LatestRound(ctx)
		} else {
			row, err = s.repo.GetRound(ctx, number)
		}
		if err != nil {
			return nil, err
		}
		_ = s.cache.SetRound(ctx, number, row, s.ttl)
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	// 共享结果拷一份出去
	cp := *v.(*Round)
	return &cp, nil
}

func (s *Service) Order(ctx context.Context, id uint64) (*Order, []Fill, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fills, err := s.repo.ListFills(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, fills, nil
}

func (s *Service) Orders(ctx context.Context, q OrderQuery) ([]Order, error) {
	return s.repo.ListOrders(ctx, q)
}

func (s *Service) Purchases(ctx context.Context, buyer string, page, limit int) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, buyer, page, limit)
}

// ReferralStats 某个推荐人的直接下级数和返佣流水
type ReferralStats struct {
	Referer   string           `json:"referer"`
	Referrals int64            `json:"referrals"`
	Payouts   []ReferralPayout `json:"payouts"`
}

func (s *Service) Referrals(ctx context.Context, referer string, page, limit int) (*ReferralStats, error) {
	n, err := s.repo.CountReferrals(ctx, referer)
	if err != nil {
		return nil, err
	}
	payouts, err := s.repo.ListPayouts(ctx, referer, page, limit)
	if err != nil {
		return nil, err
	}
	return &ReferralStats{Referer: referer, Referrals: n, Payouts: payouts}, nil
}
