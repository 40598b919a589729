package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/shaping"
)

func taskRowColumns() []string {
	return []string{
		"id", "title", "description", "status",
		"owner_user_id", "team_id", "org_id",
		"owner_email", "internal_notes", "audit_trail", "export_metadata",
		"created_at", "updated_at",
	}
}

func addTaskRow(rows *sqlmock.Rows, id string, ownerID int64, teamID, orgID int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(
		id, "Task "+id, "a description", "open",
		ownerID, teamID, orgID,
		"owner@example.com", "escalated twice", []byte(`{created}`), []byte(`{"format":"csv"}`),
		now, now,
	)
}

func (e *testEnv) expectEmptyList() {
	e.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE 1=1").
		WillReturnRows(sqlmock.NewRows(taskRowColumns()))
}

func TestListTasks_TeamScope(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-1", 42, 10, 1)
	addTaskRow(rows, "t-2", 43, 10, 1)
	// Pro quota is capped by the system ceiling; the window fetches one past
	// the cap so truncation is detectable.
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE 1=1 AND team_id").
		WithArgs(int64(10), testSystemMaxItems+1).
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks", "42")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "team", resp.Scope)
	assert.False(t, resp.Truncated)
	assert.Contains(t, resp.Capabilities, shaping.CanExport)
}

func TestListTasks_RedactsOrgOnlyFields(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-1", 42, 10, 1)
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE 1=1 AND team_id").
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks", "42")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Tasks, 1)

	task := resp.Tasks[0]
	// Team scope: owner_email stays, organization-gated fields go. The pro
	// tier carries export_metadata, so the feature-gated field stays too.
	assert.Contains(t, task, "owner_email")
	assert.Contains(t, task, "export_metadata")
	assert.NotContains(t, task, "internal_notes")
	assert.NotContains(t, task, "audit_trail")

	redactions := testutil.ToFloat64(env.metrics.RedactionsTotal.WithLabelValues("task", "team"))
	assert.Equal(t, float64(1), redactions)
}

func TestListTasks_TruncatedToQuota(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		// Free tier: quota 100, further capped by the system ceiling of 50.
		42: memberPrincipal(42, authz.TierFree, 1, 10),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	for i := 0; i < testSystemMaxItems+1; i++ {
		addTaskRow(rows, fmt.Sprintf("t-%d", i), 42, 10, 1)
	}
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE 1=1 AND team_id").
		WithArgs(int64(10), testSystemMaxItems+1).
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks", "42")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testSystemMaxItems, resp.Count)
	assert.True(t, resp.Truncated)
	// Free tier carries no capability flags.
	assert.Empty(t, resp.Capabilities)

	truncations := testutil.ToFloat64(env.metrics.TruncationsTotal.WithLabelValues("task", "free"))
	assert.Equal(t, float64(1), truncations)
}

func TestListTasks_AdminGlobalScope(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		1: adminPrincipal(1),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-1", 42, 10, 1)
	// Global scope: no placement predicate at all, only the window limit.
	env.mock.ExpectQuery(`SELECT (.+) FROM tasks WHERE 1=1 ORDER BY`).
		WithArgs(testSystemMaxItems + 1).
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "global", resp.Scope)
	assert.Equal(t, 1, resp.Count)
}

func TestGetTask_NotFound(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(taskRowColumns()))

	rec := env.do(http.MethodGet, "/api/v1/tasks/missing", "42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTask_OutOfScope(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	// Task lives in a different team and organization; the member has no
	// standing on it.
	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-9", 99, 20, 2)
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("t-9").
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks/t-9", "42")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "out_of_scope")

	denials := testutil.ToFloat64(env.metrics.DenialsTotal.WithLabelValues("task", "read", "out_of_scope"))
	assert.Equal(t, float64(1), denials)
}

func TestGetTask_Shaped(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-1", 43, 10, 1)
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("t-1").
		WillReturnRows(rows)

	rec := env.do(http.MethodGet, "/api/v1/tasks/t-1", "42")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Task  map[string]interface{} `json:"task"`
		Scope string                 `json:"scope"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "team", resp.Scope)
	assert.Equal(t, "t-1", resp.Task["id"])
	assert.NotContains(t, resp.Task, "internal_notes")
}

func TestDeleteTask_OwnResource(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-1", 42, 10, 1)
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("t-1").
		WillReturnRows(rows)
	env.mock.ExpectExec("DELETE FROM tasks WHERE id").
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(http.MethodDelete, "/api/v1/tasks/t-1", "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDeleteTask_TeammatesResourceDenied(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		42: memberPrincipal(42, authz.TierPro, 1, 10),
	})

	// Same team, different owner: read would succeed at team scope, but
	// delete carries an Own ceiling for members.
	rows := sqlmock.NewRows(taskRowColumns())
	addTaskRow(rows, "t-2", 43, 10, 1)
	env.mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("t-2").
		WillReturnRows(rows)

	rec := env.do(http.MethodDelete, "/api/v1/tasks/t-2", "42")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "out_of_scope")

	events := env.auditLog.waitForEvents(t, 1)
	last := events[len(events)-1]
	assert.Equal(t, audit.EventTypeAccessDenied, last.EventType)
	assert.Equal(t, "out_of_scope", last.Reason)
}

func TestCheckPermission(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		2: memberPrincipal(2, authz.TierPro, 1, 10),
	})

	body := strings.NewReader(`{"resource_type":"task","action":"create"}`)
	rec := env.doBody(http.MethodPost, "/api/v1/permissions/check", "2", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["allowed"])
	assert.Equal(t, "team", resp["scope"])
	assert.Equal(t, "granted", resp["reason"])
}

func TestCheckPermission_ViewerCreateDenied(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		3: {ID: 3, Roles: []authz.Role{authz.RoleViewer}, Tier: authz.TierPro,
			Memberships: []authz.OrgMembership{{OrgID: 1}}},
	})

	body := strings.NewReader(`{"resource_type":"task","action":"create"}`)
	rec := env.doBody(http.MethodPost, "/api/v1/permissions/check", "3", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["allowed"])
	assert.Equal(t, "role_denied", resp["reason"])
}

func TestCheckPermission_MissingFields(t *testing.T) {
	env := newTestEnv(t, map[int64]*authz.Principal{
		2: memberPrincipal(2, authz.TierPro, 1, 10),
	})

	body := strings.NewReader(`{"action":"create"}`)
	rec := env.doBody(http.MethodPost, "/api/v1/permissions/check", "2", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
