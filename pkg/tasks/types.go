package tasks

import (
	"time"

	"github.com/taskgrid/taskgrid/pkg/authz"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusArchived   TaskStatus = "archived"
)

// Task is the primary work item. The sensitive fields (OwnerEmail,
// InternalNotes, AuditTrail, ExportMetadata) are stripped per-request by the
// shaping layer; nothing here enforces visibility.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`

	OwnerUserID int64  `json:"owner_user_id"`
	TeamID      *int64 `json:"team_id,omitempty"`
	OrgID       *int64 `json:"org_id,omitempty"`

	OwnerEmail     string                 `json:"owner_email,omitempty"`
	InternalNotes  string                 `json:"internal_notes,omitempty"`
	AuditTrail     []string               `json:"audit_trail,omitempty"`
	ExportMetadata map[string]interface{} `json:"export_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ownership extracts the placement facts the scope resolver needs.
func (t *Task) Ownership() authz.ResourceOwnership {
	return authz.ResourceOwnership{
		OwnerUserID: t.OwnerUserID,
		TeamID:      t.TeamID,
		OrgID:       t.OrgID,
	}
}

// Payload renders the task as the field map consumed by shaping.ShapeItem.
// Every field appears; redaction is the policy table's call, not ours.
func (t *Task) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"id":            t.ID,
		"title":         t.Title,
		"status":        string(t.Status),
		"owner_user_id": t.OwnerUserID,
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}
	if t.Description != "" {
		payload["description"] = t.Description
	}
	if t.OwnerEmail != "" {
		payload["owner_email"] = t.OwnerEmail
	}
	if t.InternalNotes != "" {
		payload["internal_notes"] = t.InternalNotes
	}
	if len(t.AuditTrail) > 0 {
		payload["audit_trail"] = t.AuditTrail
	}
	if len(t.ExportMetadata) > 0 {
		payload["export_metadata"] = t.ExportMetadata
	}
	return payload
}
