package query

import (
	"fmt"
	"math"
	"strings"

	"chorus/internal/models"

	"gorm.io/gorm"
)

type condition struct {
	sql  string
	args []any
}

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Column string
	Desc   bool
}

// Plan is a composed retrieval: predicate, projection, order and window.
// It never touches storage until Execute.
type Plan struct {
	Table   string
	Page    int
	Limit   int
	Offset  int
	Order   []OrderTerm
	Columns []string

	conds []condition
}

// Compose validates d against c and builds a Plan. Keys outside the
// collection's allow-lists are ignored; only a non-positive or out-of-range page, or a non-positive limit, fail.
func Compose(d Descriptor, c Collection) (Plan, error) {
	if d.Page < 1 {
		return Plan{}, models.NewInvalidDescriptorError("page must be a positive integer")
	}
	if d.Limit < 1 {
		return Plan{}, models.NewInvalidDescriptorError("limit must be a positive integer")
	}
	limit := d.Limit
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if d.Page-1 > math.MaxInt/limit {
		return Plan{}, models.NewInvalidDescriptorError("page is out of range")
	}

	p := Plan{
		Table:  c.Table,
		Page:   d.Page,
		Limit:  limit,
		Offset: (d.Page - 1) * limit,
	}

	if term := strings.TrimSpace(d.SearchTerm); term != "" {
		var ors []string
		var args []any
		pattern := likePattern(term)
		for _, name := range c.Search {
			col := c.column(name)
			if col == "" {
				continue
			}
			ors = append(ors, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col))
			args = append(args, pattern)
		}
		if len(ors) > 0 {
			p.conds = append(p.conds, condition{sql: "(" + strings.Join(ors, " OR ") + ")", args: args})
		}
	}

	for _, f := range d.Filters {
		if !contains(c.Filter, f.Field) {
			continue
		}
		field := c.Fields[f.Field]
		values := field.convert(f.Values)
		if len(values) == 0 {
			p.conds = append(p.conds, condition{sql: "1 = 0"})
			continue
		}
		p.conds = append(p.conds, condition{
			sql:  c.column(f.Field) + " IN ?",
			args: []any{values},
		})
	}

	p.Order = composeOrder(d.Sort, c)
	p.Columns = composeProjection(d.Include, d.Exclude, c)

	return p, nil
}

func composeOrder(keys []SortKey, c Collection) []OrderTerm {
	var order []OrderTerm
	for _, k := range keys {
		if k.Field == "id" {
			order = append(order, OrderTerm{Column: c.Table + ".id", Desc: k.Desc})
			return order
		}
		if !contains(c.Sort, k.Field) {
			continue
		}
		if col := c.column(k.Field); col != "" {
			order = append(order, OrderTerm{Column: col, Desc: k.Desc})
		}
	}
	desc := true
	if len(keys) > 0 {
		desc = keys[0].Desc
	}
	if len(order) == 0 {
		if col := c.column(DefaultSort); col != "" {
			order = append(order, OrderTerm{Column: col, Desc: desc})
		}
	}
	if len(order) > 0 {
		desc = order[0].Desc
	}
	return append(order, OrderTerm{Column: c.Table + ".id", Desc: desc})
}

func composeProjection(include, exclude []string, c Collection) []string {
	var names []string
	switch {
	case len(include) > 0:
		for _, name := range include {
			if contains(c.Project, name) && !contains(names, name) {
				names = append(names, name)
			}
		}
	case len(exclude) > 0:
		for _, name := range c.Project {
			if !contains(exclude, name) {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	cols := []string{c.Table + ".id"}
	for _, keep := range c.Keep {
		cols = appendUnique(cols, c.Table+"."+keep)
	}
	for _, name := range names {
		if col := c.column(name); col != "" {
			cols = appendUnique(cols, col)
		}
	}
	return cols
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

// And returns a copy of p with an extra caller-owned condition, e.g. a fixed
// author for "my posts". The condition applies to both count and fetch.
func (p Plan) And(sql string, args ...any) Plan {
	conds := make([]condition, len(p.conds), len(p.conds)+1)
	copy(conds, p.conds)
	p.conds = append(conds, condition{sql: sql, args: args})
	return p
}

// filter applies the soft-delete scope and every predicate of the plan.
func (p Plan) filter(db *gorm.DB) *gorm.DB {
	db = Live(db, p.Table)
	for _, c := range p.conds {
		db = db.Where(c.sql, c.args...)
	}
	return db
}

// window applies projection, order and pagination.
func (p Plan) window(db *gorm.DB) *gorm.DB {
	if len(p.Columns) > 0 {
		db = db.Select(p.Columns)
	}
	for _, o := range p.Order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		db = db.Order(o.Column + " " + dir)
	}
	return db.Offset(p.Offset).Limit(p.Limit)
}
