package query

import (
	"context"

	"chorus/internal/models"

	"gorm.io/gorm"
)

// Meta describes the window returned by Execute.
type Meta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"totalPage"`
}

// Page is one window of a listing plus its meta.
type Page[T any] struct {
	Meta Meta `json:"meta"`
	Data []T  `json:"data"`
}

// Live restricts db to rows of table that have not been soft-deleted.
// Every read and count goes through it.
func Live(db *gorm.DB, table string) *gorm.DB {
	return db.Where(table+".is_deleted = ?", false)
}

// NewMeta computes totalPage as ceil(total/limit).
func NewMeta(page, limit int, total int64) Meta {
	totalPage := 0
	if limit > 0 {
		totalPage = int((total + int64(limit) - 1) / int64(limit))
	}
	return Meta{Page: page, Limit: limit, Total: total, TotalPage: totalPage}
}

// Execute counts the rows matching the plan and fetches the requested window.
// scopes run on the fetch only (preloads, joins for display).
func Execute[T any](ctx context.Context, db *gorm.DB, plan Plan, scopes ...func(*gorm.DB) *gorm.DB) (*Page[T], error) {
	var model T
	base := db.WithContext(ctx).Model(&model)

	var total int64
	if err := plan.filter(base.Session(&gorm.Session{})).Count(&total).Error; err != nil {
		return nil, models.NewOperationFailedError("failed to count records", err)
	}

	items := make([]T, 0, plan.Limit)
	fetch := plan.window(plan.filter(db.WithContext(ctx).Model(&model)))
	if len(scopes) > 0 {
		fetch = fetch.Scopes(scopes...)
	}
	if err := fetch.Find(&items).Error; err != nil {
		return nil, models.NewOperationFailedError("failed to fetch records", err)
	}

	return &Page[T]{
		Meta: NewMeta(plan.Page, plan.Limit, total),
		Data: items,
	}, nil
}
