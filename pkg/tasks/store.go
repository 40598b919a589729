package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// ErrTaskNotFound is returned when no task exists for the given ID.
var ErrTaskNotFound = fmt.Errorf("task not found")

// Store reads and writes tasks in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a task store over the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const taskColumns = `
	id, title, description, status,
	owner_user_id, team_id, org_id,
	owner_email, internal_notes, audit_trail, export_metadata,
	created_at, updated_at
`

// Get loads one task by ID.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns tasks visible within the caller's resolved scope, newest
// first. The caller passes the org and team IDs its scope covers; an empty
// ListFilter with OwnerUserID set lists only the caller's own tasks.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE 1=1", taskColumns)
	args := []interface{}{}
	argCount := 1

	switch {
	case filter.Global:
		// No placement restriction.
	case filter.OrgID != nil:
		query += fmt.Sprintf(" AND org_id = $%d", argCount)
		args = append(args, *filter.OrgID)
		argCount++
	case filter.TeamID != nil:
		query += fmt.Sprintf(" AND team_id = $%d", argCount)
		args = append(args, *filter.TeamID)
		argCount++
	default:
		query += fmt.Sprintf(" AND owner_user_id = $%d", argCount)
		args = append(args, filter.OwnerUserID)
		argCount++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(filter.Status))
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes one task by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted tasks: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListFilter narrows List to the caller's resolved scope.
type ListFilter struct {
	Global      bool
	OrgID       *int64
	TeamID      *int64
	OwnerUserID int64
	Status      TaskStatus
	Limit       int
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*Task, error) {
	task := &Task{}
	var description, ownerEmail, internalNotes sql.NullString
	var teamID, orgID sql.NullInt64
	var exportMetadata []byte

	err := row.Scan(
		&task.ID, &task.Title, &description, &task.Status,
		&task.OwnerUserID, &teamID, &orgID,
		&ownerEmail, &internalNotes, pq.Array(&task.AuditTrail), &exportMetadata,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = description.String
	}
	if ownerEmail.Valid {
		task.OwnerEmail = ownerEmail.String
	}
	if internalNotes.Valid {
		task.InternalNotes = internalNotes.String
	}
	if teamID.Valid {
		task.TeamID = &teamID.Int64
	}
	if orgID.Valid {
		task.OrgID = &orgID.Int64
	}
	if len(exportMetadata) > 0 {
		if err := json.Unmarshal(exportMetadata, &task.ExportMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal export metadata: %w", err)
		}
	}
	return task, nil
}
