package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-installments/internal/models"
)

// Entry events
const (
	EventEntrySettle  = "settle"
	EventEntryPartial = "partial"
)

var unsettled = []string{
	string(models.EntryStatusUpcoming),
	string(models.EntryStatusDue),
	string(models.EntryStatusOverdue),
	string(models.EntryStatusPartial),
}

// EntryFSM wraps a repayment entry with its state machine. paid is terminal:
// an entry is never re-opened.
type EntryFSM struct {
	entry *models.RepaymentEntry
	fsm   *fsm.FSM
}

// NewEntryFSM creates a new entry state machine
func NewEntryFSM(entry *models.RepaymentEntry) *EntryFSM {
	ef := &EntryFSM{
		entry: entry,
	}

	ef.fsm = fsm.NewFSM(
		string(entry.Status),
		fsm.Events{
			// any unsettled → paid
			{Name: EventEntrySettle, Src: unsettled, Dst: string(models.EntryStatusPaid)},

			// any unsettled → partial (partial → partial is a self loop)
			{Name: EventEntryPartial, Src: unsettled, Dst: string(models.EntryStatusPartial)},
		},
		fsm.Callbacks{},
	)

	return ef
}

// Settle marks the entry paid on the given date
func (e *EntryFSM) Settle(ctx context.Context, on models.Date) error {
	if !e.entry.MayPay() {
		return fmt.Errorf("entry %d cannot be settled in current state: %s", e.entry.InstallmentNo, e.entry.Status)
	}

	if err := e.event(ctx, EventEntrySettle); err != nil {
		return fmt.Errorf("failed to settle entry: %w", err)
	}

	e.entry.Status = models.EntryStatus(e.fsm.Current())
	e.entry.PaidDate = on.Ptr()
	return nil
}

// MarkPartial records that part of the entry is still owed
func (e *EntryFSM) MarkPartial(ctx context.Context) error {
	if !e.entry.MayPay() {
		return fmt.Errorf("entry %d cannot take a partial payment in current state: %s", e.entry.InstallmentNo, e.entry.Status)
	}

	if err := e.event(ctx, EventEntryPartial); err != nil {
		return fmt.Errorf("failed to mark entry partial: %w", err)
	}

	e.entry.Status = models.EntryStatus(e.fsm.Current())
	return nil
}

// event treats a self transition (partial → partial) as success
func (e *EntryFSM) event(ctx context.Context, name string) error {
	err := e.fsm.Event(ctx, name)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// Current returns the current state
func (e *EntryFSM) Current() models.EntryStatus {
	return models.EntryStatus(e.fsm.Current())
}

// Can checks if a transition is possible
func (e *EntryFSM) Can(event string) bool {
	return e.fsm.Can(event)
}
