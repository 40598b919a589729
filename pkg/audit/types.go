package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/taskgrid/taskgrid/pkg/authz"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization decision events
	EventTypeDecision       EventType = "authz.decision"
	EventTypeAccessDenied   EventType = "authz.access_denied"
	EventTypeCacheInvalidate EventType = "authz.cache_invalidate"

	// Identity mutation events (the triggers for cache invalidation)
	EventTypeRoleChange EventType = "identity.role_change"
	EventTypeTierChange EventType = "identity.tier_change"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusGranted EventStatus = "granted"
	EventStatusDenied  EventStatus = "denied"
	EventStatusFailure EventStatus = "failure"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	PrincipalID int64  `json:"principal_id"`
	Role        string `json:"role,omitempty"`
	Tier        string `json:"tier,omitempty"`

	// Decision information
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Action       string `json:"action,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RulesVersion string `json:"rules_version,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewDecisionEvent builds an audit event from one permission decision.
// The event carries the decision outcome only; shaping parameters stay out of
// the audit trail.
func NewDecisionEvent(principal *authz.Principal, req authz.RequestedAction, decision authz.PermissionDecision, rulesVersion string) *AuditEvent {
	status := EventStatusGranted
	eventType := EventTypeDecision
	if !decision.Allowed {
		status = EventStatusDenied
		eventType = EventTypeAccessDenied
	}
	return &AuditEvent{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Status:       status,
		PrincipalID:  principal.ID,
		Role:         string(principal.HighestRole()),
		Tier:         string(principal.Tier),
		ResourceType: string(req.ResourceType),
		ResourceID:   req.ResourceID,
		Action:       string(req.Action),
		Scope:        decision.Scope.String(),
		Reason:       string(decision.Reason),
		RulesVersion: rulesVersion,
	}
}

// NewInvalidationEvent builds an audit event for a decision cache sweep
func NewInvalidationEvent(principalID int64, removed int, source string) *AuditEvent {
	return &AuditEvent{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		EventType:   EventTypeCacheInvalidate,
		Status:      EventStatusGranted,
		PrincipalID: principalID,
		Metadata: map[string]interface{}{
			"removed": removed,
			"source":  source,
		},
	}
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	PrincipalID *int64

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Decision filters
	ResourceType string
	ResourceID   string
	Action       string
	Reason       string

	// Pagination
	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
