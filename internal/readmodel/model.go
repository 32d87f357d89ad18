// Package readmodel 把引擎事件投影成可查询的表，金额一律存十进制字符串（uint256 超出 bigint）
package readmodel

import "time"

type Registration struct {
	Account   string    `gorm:"column:account;primaryKey;type:varchar(42);not null"`
	Referer   string    `gorm:"column:referer;type:varchar(42);index;not null"`
	Seq       uint64    `gorm:"column:seq;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Registration) TableName() string {
	return "registrations"
}

// Round 一行对应一个轮次编号，销售轮和紧随其后的交易轮共用
type Round struct {
	Number       uint64    `gorm:"column:number;primaryKey;autoIncrement:false" json:"number"`
	Phase        string    `gorm:"column:phase;type:varchar(8);not null" json:"phase"`
	Price        string    `gorm:"column:price;type:varchar(80);not null" json:"price"`
	Supply       string    `gorm:"column:supply;type:varchar(80);not null" json:"supply"`
	Sold         string    `gorm:"column:sold;type:varchar(80);not null" json:"sold"`
	Raised       string    `gorm:"column:raised;type:varchar(80);not null" json:"raised"`
	Burned       string    `gorm:"column:burned;type:varchar(80);not null" json:"burned"`
	BaseVolume   string    `gorm:"column:base_volume;type:varchar(80);not null" json:"base_volume"` // 定价用的上一轮成交额
	TradeVolume  string    `gorm:"column:trade_volume;type:varchar(80);not null" json:"trade_volume"`
	Purchases    uint64    `gorm:"column:purchases;not null" json:"purchases"`
	Fills        uint64    `gorm:"column:fills;not null" json:"fills"`
	SaleEndTime  int64     `gorm:"column:sale_end_time;not null" json:"sale_end_time"`
	TradeEndTime int64     `gorm:"column:trade_end_time;not null" json:"trade_end_time"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Round) TableName() string {
	return "rounds"
}

type Order struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Round     uint64    `gorm:"column:round;not null" json:"round"`
	Seller    string    `gorm:"column:seller;type:varchar(42);index;not null" json:"seller"`
	Price     string    `gorm:"column:price;type:varchar(80);not null" json:"price"`
	Amount    string    `gorm:"column:amount;type:varchar(80);not null" json:"amount"`
	Remaining string    `gorm:"column:remaining;type:varchar(80);not null" json:"remaining"`
	Active    bool      `gorm:"column:active;index;not null" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type Fill struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement:false" json:"seq"`
	Idx       uint16    `gorm:"column:idx;primaryKey;autoIncrement:false" json:"idx"`
	OrderID   uint64    `gorm:"column:order_id;index;not null" json:"order_id"`
	Round     uint64    `gorm:"column:round;not null" json:"round"`
	Buyer     string    `gorm:"column:buyer;type:varchar(42);index;not null" json:"buyer"`
	Seller    string    `gorm:"column:seller;type:varchar(42);not null" json:"seller"`
	Units     string    `gorm:"column:units;type:varchar(80);not null" json:"units"`
	Price     string    `gorm:"column:price;type:varchar(80);not null" json:"price"`
	Cost      string    `gorm:"column:cost;type:varchar(80);not null" json:"cost"`
	Remaining string    `gorm:"column:remaining;type:varchar(80);not null" json:"remaining"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Fill) TableName() string {
	return "fills"
}

type Purchase struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement:false" json:"seq"`
	Idx       uint16    `gorm:"column:idx;primaryKey;autoIncrement:false" json:"idx"`
	Round     uint64    `gorm:"column:round;index;not null" json:"round"`
	Buyer     string    `gorm:"column:buyer;type:varchar(42);index;not null" json:"buyer"`
	Units     string    `gorm:"column:units;type:varchar(80);not null" json:"units"`
	Price     string    `gorm:"column:price;type:varchar(80);not null" json:"price"`
	Payment   string    `gorm:"column:payment;type:varchar(80);not null" json:"payment"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

type ReferralPayout struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement:false" json:"seq"`
	Idx       uint16    `gorm:"column:idx;primaryKey;autoIncrement:false" json:"idx"`
	Round     uint64    `gorm:"column:round;not null" json:"round"`
	Referer   string    `gorm:"column:referer;type:varchar(42);index;not null" json:"referer"`
	Payer     string    `gorm:"column:payer;type:varchar(42);not null" json:"payer"`
	Level     uint8     `gorm:"column:level;not null" json:"level"`
	Amount    string    `gorm:"column:amount;type:varchar(80);not null" json:"amount"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReferralPayout) TableName() string {
	return "referral_payouts"
}

// Cursor 投影进度，(seq, idx) 不大于它的事件直接跳过
type Cursor struct {
	Name      string    `gorm:"column:name;primaryKey;type:varchar(32)"`
	Seq       uint64    `gorm:"column:seq;not null"`
	Idx       uint16    `gorm:"column:idx;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cursor) TableName() string {
	return "projector_cursors"
}

// Tables AutoMigrate 用
func Tables() []any {
	return []any{&Registration{}, &Round{}, &Order{}, &Fill{}, &Purchase{}, &ReferralPayout{}, &Cursor{}}
}
