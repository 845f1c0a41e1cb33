package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/testutil"
)

// recordingPublisher keeps every published event in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	pub   *recordingPublisher
	today models.Date
}

// newFixture wires every service against sqlite with a fixed clock of
// 2026-03-15. A nil worker makes event publishing synchronous.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	repos := repository.NewRepositories(db)
	pub := &recordingPublisher{}
	today := models.NewDate(2026, time.March, 15)
	clock := func() time.Time { return today.Time().Add(10 * time.Hour) }
	return &fixture{
		db:    db,
		repos: repos,
		svc:   NewServices(repos, nil, pub, nil, clock),
		pub:   pub,
		today: today,
	}
}

func (f *fixture) entry(t *testing.T, planID uint, no int) models.RepaymentEntry {
	t.Helper()
	var e models.RepaymentEntry
	require.NoError(t, f.db.Where("plan_id = ? AND installment_no = ?", planID, no).First(&e).Error)
	return e
}

func (f *fixture) plan(t *testing.T, planID uint) models.InstallmentPlan {
	t.Helper()
	var p models.InstallmentPlan
	require.NoError(t, f.db.First(&p, planID).Error)
	return p
}

func (f *fixture) ledger(t *testing.T, customerID uint) []models.MiscLedgerEntry {
	t.Helper()
	var rows []models.MiscLedgerEntry
	require.NoError(t, f.db.Where("customer_id = ?", customerID).Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
