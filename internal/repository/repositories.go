package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactor runs fn inside one database transaction. The Repositories
// handed to fn are bound to that transaction; returning an error rolls
// every write back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *Repositories) error) error
}

// Repositories holds all repository instances
type Repositories struct {
	Transactor

	Party   PartyRepository
	Product ProductRepository
	Plan    PlanRepository
	Entry   EntryRepository
	Ledger  LedgerRepository
	Receipt ReceiptRepository
	Audit   AuditRepository
	Stats   StatsRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transactor: &gormTransactor{db: db},
		Party:      NewPartyRepository(db),
		Product:    NewProductRepository(db),
		Plan:       NewPlanRepository(db),
		Entry:      NewEntryRepository(db),
		Ledger:     NewLedgerRepository(db),
		Receipt:    NewReceiptRepository(db),
		Audit:      NewAuditRepository(db),
		Stats:      NewStatsRepository(db),
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// forUpdate adds SELECT ... FOR UPDATE. Drivers without row locks (SQLite) drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// paginate applies ordering and page bounds. allowedSort guards SortBy
// against arbitrary column injection.
func (q *ListQuery) paginate(db *gorm.DB, defaultOrder string, allowedSort ...string) *gorm.DB {
	order := defaultOrder
	for _, col := range allowedSort {
		if q.SortBy == col {
			order = col
			if q.SortDir == "desc" {
				order += " DESC"
			}
			break
		}
	}
	db = db.Order(order)

	if q.PerPage > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * q.PerPage).Limit(q.PerPage)
	}
	return db
}
