package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"astro-events/internal/data/entity"
	"astro-events/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	FindBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*entity.AuditLog, error)
}

type auditRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAuditRepository(db database.PgxIface, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Create(ctx context.Context, auditLog *entity.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, subject_type, subject_id, action, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	metadata, err := json.Marshal(auditLog.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		auditLog.ID,
		auditLog.ActorID,
		auditLog.SubjectType,
		auditLog.SubjectID,
		auditLog.Action,
		metadata,
		auditLog.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create audit log",
			zap.Error(err),
			zap.String("action", string(auditLog.Action)),
			zap.String("subject_id", auditLog.SubjectID.String()),
		)
		return fmt.Errorf("create audit log for %s: %w", auditLog.SubjectID.String(), err)
	}

	return nil
}

func (r *auditRepository) FindBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*entity.AuditLog, error) {
	query := `
		SELECT id, actor_id, subject_type, subject_id, action, metadata, created_at
		FROM audit_logs
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, subjectID, limit)
	if err != nil {
		r.log.Error("Failed to find audit logs by subject",
			zap.Error(err),
			zap.String("subject_id", subjectID.String()),
		)
		return nil, fmt.Errorf("find audit logs for %s: %w", subjectID.String(), err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var auditLog entity.AuditLog
		var metadata []byte
		err := rows.Scan(
			&auditLog.ID,
			&auditLog.ActorID,
			&auditLog.SubjectType,
			&auditLog.SubjectID,
			&auditLog.Action,
			&metadata,
			&auditLog.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan audit log row", zap.Error(err))
			return nil, fmt.Errorf("scan audit log row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &auditLog.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		logs = append(logs, &auditLog)
	}

	return logs, nil
}
