package orm

import "gorm.io/gorm"

const MaxPageSize = 200

// Paginate 分页 scope，page 从 1 开始；非法参数不分页，limit 超过上限会被截断
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page <= 0 || limit <= 0 {
			return db
		}
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}
