package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/repository"
)

type accessLogRepository struct {
	db *sqlx.DB
}

func NewAccessLogRepository(db *sqlx.DB) repository.AuditRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) Create(ctx context.Context, entry *model.AccessLog) error {
	query := `
        INSERT INTO access_logs (
            id, action, entity_type, entity_id, outcome,
            detail, ip_address, user_agent, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Outcome,
		entry.Detail,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access log: %w", err)
	}
	return nil
}

func (r *accessLogRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.AccessLog, error) {
	query := `
        SELECT * FROM access_logs WHERE 1=1
    `
	var args []interface{}

	if v, ok := filters["action"]; ok {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, v)
	}

	if v, ok := filters["entity_type"]; ok {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, v)
	}

	if v, ok := filters["entity_id"]; ok {
		query += fmt.Sprintf(" AND entity_id = $%d", len(args)+1)
		args = append(args, v)
	}

	query += " ORDER BY created_at DESC"

	var logs []*model.AccessLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}

	return logs, nil
}
