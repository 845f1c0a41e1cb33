package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sjperalta/fintera-installments/internal/actor"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record writes an audit row through repo, which callers bind to the
// operation's transaction so the row commits or rolls back with it.
func (s *AuditService) Record(ctx context.Context, repo repository.AuditRepository, action models.AuditAction, entity string, entityID uint, opID uuid.UUID, details map[string]any) error {
	a := actor.FromContext(ctx)
	body, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &models.AuditLog{
		ActorKind:   string(a.Kind),
		ActorID:     a.ID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		OperationID: opID.String(),
		Details:     string(body),
	})
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}
