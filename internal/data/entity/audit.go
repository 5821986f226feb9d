package entity

import (
	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionAdmit   AuditAction = "registration.admit"
	AuditActionConfirm AuditAction = "registration.confirm"
	AuditActionCancel  AuditAction = "registration.cancel"
	AuditActionExpire  AuditAction = "registration.expire"
	AuditActionRefund  AuditAction = "registration.refund"
	AuditActionSweep   AuditAction = "reaper.sweep"
)

// AuditLog is an append-only record of state-changing actions.
// ActorID is nil for system-initiated actions (reaper, webhooks).
type AuditLog struct {
	BaseSimple
	ActorID     *uuid.UUID     `db:"actor_id"`
	SubjectType string         `db:"subject_type"`
	SubjectID   uuid.UUID      `db:"subject_id"`
	Action      AuditAction    `db:"action"`
	Metadata    map[string]any `db:"metadata"`
}
