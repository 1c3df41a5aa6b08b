// Package audit records who touched which imaging entity. When no database
// is configured the service degrades to structured logging only; in either
// mode a failed audit never fails the operation it describes.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/repository"
	"github.com/mriview/dicom-api/pkg/logger"
)

type Service struct {
	repo repository.AuditRepository
	log  *logger.Logger
}

// NewService accepts a nil repository for log-only operation.
func NewService(repo repository.AuditRepository, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	return &Service{repo: repo, log: lg}
}

type LogOptions struct {
	Detail    interface{}
	IPAddress string
	UserAgent string
}

// Log records one action against an imaging entity.
func (s *Service) Log(ctx context.Context, action, entityType, entityID, outcome string, opts *LogOptions) {
	var detail json.RawMessage
	ip, agent := "", ""
	if opts != nil {
		if opts.Detail != nil {
			if b, err := json.Marshal(opts.Detail); err == nil {
				detail = b
			}
		}
		ip = opts.IPAddress
		agent = opts.UserAgent
	}

	s.log.Info("access",
		"action", action,
		"entity_type", entityType,
		"entity_id", entityID,
		"outcome", outcome,
	)

	if s.repo == nil {
		return
	}

	entry := &model.AccessLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    outcome,
		Detail:     detail,
		IPAddress:  ip,
		UserAgent:  agent,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn("failed to persist access log", "action", action, "error", err.Error())
	}
}

// List returns persisted access-log rows. Without a database there is
// nothing to list.
func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AccessLog, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, filters)
}
