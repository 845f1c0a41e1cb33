package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-installments/internal/models"
)

// Plan events
const (
	EventPlanComplete = "complete"
	EventPlanCancel   = "cancel"
)

// PlanFSM wraps an installment plan with its state machine.
// completed and cancelled are terminal.
type PlanFSM struct {
	plan *models.InstallmentPlan
	fsm  *fsm.FSM
}

// NewPlanFSM creates a new plan state machine
func NewPlanFSM(plan *models.InstallmentPlan) *PlanFSM {
	pf := &PlanFSM{
		plan: plan,
	}

	pf.fsm = fsm.NewFSM(
		string(plan.Status),
		fsm.Events{
			// active → completed (every entry paid)
			{Name: EventPlanComplete, Src: []string{string(models.PlanStatusActive)}, Dst: string(models.PlanStatusCompleted)},

			// active → cancelled
			{Name: EventPlanCancel, Src: []string{string(models.PlanStatusActive)}, Dst: string(models.PlanStatusCancelled)},
		},
		fsm.Callbacks{},
	)

	return pf
}

// Complete transitions the plan to completed
func (p *PlanFSM) Complete(ctx context.Context) error {
	if !p.plan.MayComplete() {
		return fmt.Errorf("plan cannot be completed in current state: %s (%d/%d paid)",
			p.plan.Status, p.plan.PaidInstallments, p.plan.Tenure)
	}

	if err := p.fsm.Event(ctx, EventPlanComplete); err != nil {
		return fmt.Errorf("failed to complete plan: %w", err)
	}

	p.plan.Status = models.PlanStatus(p.fsm.Current())
	return nil
}

// Cancel transitions the plan to cancelled
func (p *PlanFSM) Cancel(ctx context.Context) error {
	if !p.plan.MayCancel() {
		return fmt.Errorf("plan cannot be cancelled in current state: %s", p.plan.Status)
	}

	if err := p.fsm.Event(ctx, EventPlanCancel); err != nil {
		return fmt.Errorf("failed to cancel plan: %w", err)
	}

	p.plan.Status = models.PlanStatus(p.fsm.Current())
	return nil
}

// Current returns the current state
func (p *PlanFSM) Current() models.PlanStatus {
	return models.PlanStatus(p.fsm.Current())
}

// Can checks if a transition is possible
func (p *PlanFSM) Can(event string) bool {
	return p.fsm.Can(event)
}
