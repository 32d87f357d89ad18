package readmodel

import (
	"context"
	"errors"
	"fmt"

	"acdmx.com/pkg/orm"
	"acdmx.com/pkg/xerr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txKey struct{}

// ErrProjectionGap 前面还有事件没投影成功
var ErrProjectionGap = errors.New("readmodel: projection gap")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(Tables()...)
}

func (r *Repo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func dbErr(op string, err error) error {
	return xerr.New(xerr.DbError, fmt.Sprintf("%s failed: %v", op, err))
}

func notFound(msg string) error {
	return xerr.New(xerr.RecordNotFound, msg)
}

// ---- cursor ----

// LoadCursor 没有记录时返回零值
func (r *Repo) LoadCursor(ctx context.Context, name string) (Cursor, error) {
	var c Cursor
	err := r.getDb(ctx).Where("name = ?", name).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Cursor{Name: name}, nil
	}
	if err != nil {
		return Cursor{}, dbErr("load cursor", err)
	}
	return c, nil
}

func (r *Repo) SaveCursor(ctx context.Context, c *Cursor) error {
	if err := r.getDb(ctx).Save(c).Error; err != nil {
		return dbErr("save cursor", err)
	}
	return nil
}

// ---- registrations ----

// CreateRegistration 重复注册忽略
func (r *Repo) CreateRegistration(ctx context.Context, reg *Registration) error {
	err := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reg).Error
	if err != nil {
		return dbErr("create registration", err)
	}
	return nil
}

func (r *Repo) GetRegistration(ctx context.Context, account string) (*Registration, error) {
	var reg Registration
	if err := r.getDb(ctx).Where("account = ?", account).Take(&reg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user is not registered")
		}
		return nil, dbErr("get registration", err)
	}
	return &reg, nil
}

// CountReferrals 直接下级数量
func (r *Repo) CountReferrals(ctx context.Context, referer string) (int64, error) {
	var n int64
	if err := r.getDb(ctx).Model(&Registration{}).Where("referer = ?", referer).Count(&n).Error; err != nil {
		return 0, dbErr("count referrals", err)
	}
	return n, nil
}

// ---- rounds ----

func (r *Repo) GetRound(ctx context.Context, number uint64) (*Round, error) {
	var row Round
	if err := r.getDb(ctx).Where("number = ?", number).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("round not found")
		}
		return nil, dbErr("get round", err)
	}
	return &row, nil
}

func (r *Repo) LatestRound(ctx context.Context) (*Round, error) {
	var row Round
	if err := r.getDb(ctx).Order("number DESC").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no round started yet")
		}
		return nil, dbErr("latest round", err)
	}
	return &row, nil
}

func (r *Repo) SaveRound(ctx context.Context, row *Round) error {
	if err := r.getDb(ctx).Save(row).Error; err != nil {
		return dbErr("save round", err)
	}
	return nil
}

// ---- orders ----

type OrderQuery struct {
	Seller     string
	ActiveOnly bool
	Page       int
	Limit      int
}

func (r *Repo) GetOrder(ctx context.Context, id uint64) (*Order, error) {
	var o Order
	if err := r.getDb(ctx).Where("id = ?", id).Take(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("order not found")
		}
		return nil, dbErr("get order", err)
	}
	return &o, nil
}

func (r *Repo) SaveOrder(ctx context.Context, o *Order) error {
	if err := r.getDb(ctx).Save(o).Error; err != nil {
		return dbErr("save order", err)
	}
	return nil
}

// ListOrders 按 id 升序
func (r *Repo) ListOrders(ctx context.Context, q OrderQuery) ([]Order, error) {
	db := r.getDb(ctx).Model(&Order{})
	if q.Seller != "" {
		db = db.Where("seller = ?", q.Seller)
	}
	if q.ActiveOnly {
		db = db.Where("active = ?", true)
	}
	var rows []Order
	if err := db.Scopes(orm.Paginate(q.Page, q.Limit)).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, dbErr("list orders", err)
	}
	return rows, nil
}

// ---- 流水：fills / purchases / referral payouts，主键 (seq, idx)，重复写入忽略 ----

func (r *Repo) CreateFill(ctx context.Context, f *Fill) error {
	if err := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error; err != nil {
		return dbErr("create fill", err)
	}
	return nil
}

func (r *Repo) ListFills(ctx context.Context, orderID uint64) ([]Fill, error) {
	var rows []Fill
	if err := r.getDb(ctx).Where("order_id = ?", orderID).Order("seq ASC, idx ASC").Find(&rows).Error; err != nil {
		return nil, dbErr("list fills", err)
	}
	return rows, nil
}

func (r *Repo) CreatePurchase(ctx context.Context, p *Purchase) error {
	if err := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
		return dbErr("create purchase", err)
	}
	return nil
}

func (r *Repo) ListPurchases(ctx context.Context, buyer string, page, limit int) ([]Purchase, error) {
	var rows []Purchase
	err := r.getDb(ctx).Where("buyer = ?", buyer).
		Scopes(orm.Paginate(page, limit)).
		Order("seq DESC, idx DESC").
		Find(&rows).Error
	if err != nil {
		return nil, dbErr("list purchases", err)
	}
	return rows, nil
}

func (r *Repo) CreatePayout(ctx context.Context, p *ReferralPayout) error {
	if err := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
		return dbErr("create referral payout", err)
	}
	return nil
}

// ListPayouts 最新的在前
func (r *Repo) ListPayouts(ctx context.Context, referer string, page, limit int) ([]ReferralPayout, error) {
	var rows []ReferralPayout
	err := r.getDb(ctx).Where("referer = ?", referer).
		Scopes(orm.Paginate(page, limit)).
		Order("seq DESC, idx DESC").
		Find(&rows).Error
	if err != nil {
		return nil, dbErr("list referral payouts", err)
	}
	return rows, nil
}
