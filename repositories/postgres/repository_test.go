package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

func TestContextRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContextRepository(db, zap.NewNop())

	orgID := uuid.New()
	entry := models.NewContextEntry(orgID, "Where is data stored?", "AWS us-east-1", []string{"infra"})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_entries")).
		WithArgs(entry.ID, orgID, entry.Question, entry.Answer, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContextRepository_GetByID(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewContextRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"id", "organization_id", "question", "answer", "tags", "created_at", "updated_at"}).
			AddRow(id.String(), orgID.String(), "Q", "A", "{soc2,hr}", now, now)
		mock.ExpectQuery(`FROM context_entries WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id).
			WillReturnRows(rows)

		entry, err := repo.GetByID(context.Background(), orgID, id)
		require.NoError(t, err)
		assert.Equal(t, id, entry.ID)
		assert.Equal(t, orgID, entry.OrganizationID)
		assert.Equal(t, []string{"soc2", "hr"}, entry.Tags)
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewContextRepository(db, zap.NewNop())

		mock.ExpectQuery(`FROM context_entries`).
			WithArgs(orgID, id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), orgID, id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestContextRepository_DeleteOtherTenant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContextRepository(db, zap.NewNop())

	orgID := uuid.New()
	id := uuid.New()
	mock.ExpectExec(`DELETE FROM context_entries WHERE organization_id = \$1 AND id = \$2`).
		WithArgs(orgID, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), orgID, id)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeBaseRepository_UpdateProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeBaseRepository(db, zap.NewNop())

	doc := models.NewKnowledgeBaseDocument(uuid.New(), uuid.New(), "a.md", "", "k", "text/markdown", 10)
	doc.ProcessingStatus = models.ProcessingCompleted
	doc.ChunkCount = 4

	mock.ExpectExec(regexp.QuoteMeta("UPDATE knowledge_base_documents")).
		WithArgs(doc.OrganizationID, doc.ID, "completed", nil, 4, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProcessing(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindingRepository_ListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFindingRepository(db, zap.NewNop())

	orgID := uuid.New()
	taskID := uuid.New()
	status := models.FindingStatusOpen

	mock.ExpectQuery(`FROM findings WHERE organization_id = \$1 AND task_id = \$2 AND status = \$3`).
		WithArgs(orgID, taskID, "open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	findings, err := repo.List(context.Background(), orgID, repositories.FindingFilter{TaskID: &taskID, Status: &status})
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_ListByVendor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db, zap.NewNop())

	orgID := uuid.New()
	vendorID := uuid.New()
	now := time.Now()
	taskID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "organization_id", "title", "description", "status", "frequency", "vendor_id", "risk_id", "created_at", "updated_at"}).
		AddRow(taskID.String(), orgID.String(), "Review SOC 2 report", "", "todo", "yearly", vendorID.String(), nil, now, now)
	mock.ExpectQuery(`FROM tasks WHERE organization_id = \$1 AND vendor_id = \$2`).
		WithArgs(orgID, vendorID).
		WillReturnRows(rows)

	tasks, err := repo.List(context.Background(), orgID, repositories.TaskFilter{VendorID: &vendorID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, vendorID, *tasks[0].VendorID)
	assert.Nil(t, tasks[0].RiskID)
}

func TestVendorRepository_GetByNameIsCaseInsensitive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVendorRepository(db, zap.NewNop())

	orgID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("lower(name) = lower($2)")).
		WithArgs(orgID, "GitHub").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByName(context.Background(), orgID, "GitHub")
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationRepository_CreateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIntegrationRepository(db, zap.NewNop())

	conn := models.NewIntegrationConnection(uuid.New(), "hubspot", nil, nil)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO integration_connections")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), conn)
	assert.ErrorIs(t, err, repositories.ErrConflict)
}

var onboardingRunCols = []string{"id", "organization_id", "status",
	"vendors_total", "vendors_completed", "vendors_failed",
	"risks_total", "risks_completed", "risks_failed",
	"policies_total", "policies_completed", "policies_failed",
	"item_statuses", "error", "started_at", "completed_at", "created_at", "updated_at"}

func TestOnboardingRunRepository_UpdateProgressLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOnboardingRunRepository(db, zap.NewNop())

	run := models.NewOnboardingRun(uuid.New())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM onboarding_runs WHERE id = \$1 FOR UPDATE`).
		WithArgs(run.ID).
		WillReturnRows(sqlmock.NewRows(onboardingRunCols).AddRow(
			run.ID.String(), run.OrganizationID.String(), "running",
			2, 1, 0, 0, 0, 0, 0, 0, 0,
			[]byte(`{"v1":"completed"}`), nil, now, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE onboarding_runs")).
		WithArgs(run.ID, "running", 2, 2, 0, 0, 0, 0, 0, 0, 0,
			[]byte(`{"v1":"completed","v2":"completed"}`), nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, changed, err := repo.UpdateProgress(context.Background(), run.ID, func(r *models.OnboardingRun) bool {
		r.Vendors.Completed++
		r.ItemStatuses["v2"] = models.ItemCompleted
		return true
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, got.Vendors.Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboardingRunRepository_UpdateProgressUnchangedSkipsWrite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOnboardingRunRepository(db, zap.NewNop())

	runID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(runID).
		WillReturnRows(sqlmock.NewRows(onboardingRunCols).AddRow(
			runID.String(), uuid.New().String(), "completed",
			0, 0, 0, 0, 0, 0, 0, 0, 0,
			[]byte(`{}`), nil, now, now, now, now))
	mock.ExpectCommit()

	got, changed, err := repo.UpdateProgress(context.Background(), runID, func(*models.OnboardingRun) bool { return false })
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.RunCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboardingRunRepository_UpdateProgressMissingRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOnboardingRunRepository(db, zap.NewNop())

	runID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(runID).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.UpdateProgress(context.Background(), runID, func(*models.OnboardingRun) bool { return true })
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboardingRunRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOnboardingRunRepository(db, zap.NewNop())

	run := models.NewOnboardingRun(uuid.New())
	now := time.Now()
	mock.ExpectQuery(`FROM onboarding_runs WHERE id = \$1`).
		WithArgs(run.ID).
		WillReturnRows(sqlmock.NewRows(onboardingRunCols).AddRow(
			run.ID.String(), run.OrganizationID.String(), "running",
			2, 1, 0, 0, 0, 0, 0, 0, 0,
			[]byte(`{"v1":"completed"}`), nil, now, nil, now, now))

	got, err := repo.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, got.Status)
	assert.Equal(t, 2, got.Vendors.Total)
	assert.Equal(t, models.ItemCompleted, got.ItemStatuses["v1"])
	assert.NotNil(t, got.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	log := models.NewAuditLog(uuid.New(), models.AuditActionStatusChanged, "finding").
		WithDetails(map[string]string{"from": "open", "to": "closed"})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(log.ID, log.OrganizationID, nil, "status_changed", "finding", nil,
			sqlmock.AnyArg(), "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), log))

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "closed", details["to"])
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits and routes queries through the tx", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewOrganizationRepository(db, zap.NewNop())
		orgID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE organizations SET onboarding_completed = true").
			WithArgs(orgID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return repo.MarkOnboardingCompleted(ctx, orgID)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	db := Wrap(sqlDB, zap.NewNop())
	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRiskRepository_TenantScoped(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()
	now := time.Now()

	t.Run("list filters by organization", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRiskRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"id", "organization_id", "title", "description", "category", "department", "status",
			"likelihood", "impact", "treatment_strategy", "treatment_description", "created_at", "updated_at"}).
			AddRow(id.String(), orgID.String(), "Laptop theft", "", "physical", "it", "open", 3, 4, "mitigate", "", now, now)
		mock.ExpectQuery(`FROM risks WHERE organization_id = \$1 ORDER BY created_at DESC`).
			WithArgs(orgID).
			WillReturnRows(rows)

		risks, err := repo.ListByOrg(context.Background(), orgID)
		require.NoError(t, err)
		require.Len(t, risks, 1)
		assert.Equal(t, orgID, risks[0].OrganizationID)
		assert.Equal(t, models.TreatmentMitigate, risks[0].TreatmentStrategy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("title lookup is scoped and case insensitive", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRiskRepository(db, zap.NewNop())

		mock.ExpectQuery(`FROM risks WHERE organization_id = \$1 AND lower\(title\) = lower\(\$2\)`).
			WithArgs(orgID, "LAPTOP THEFT").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByTitle(context.Background(), orgID, "LAPTOP THEFT")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update of another tenant's risk is ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRiskRepository(db, zap.NewNop())

		risk := &models.Risk{ID: id, OrganizationID: orgID, Title: "Laptop theft", Status: models.RiskStatusOpen,
			Likelihood: 2, Impact: 2, TreatmentStrategy: models.TreatmentAccept, UpdatedAt: now}
		mock.ExpectExec(`UPDATE risks\s+SET .+\s+WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id, "Laptop theft", "", "", "", "open", 2, 2, "accept", "", now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), risk)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete is scoped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRiskRepository(db, zap.NewNop())

		mock.ExpectExec(`DELETE FROM risks WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(context.Background(), orgID, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPolicyRepository_TenantScoped(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()
	now := time.Now()
	policyCols := []string{"id", "organization_id", "name", "description", "content", "status", "frequency", "department",
		"last_tailored_at", "created_at", "updated_at"}

	t.Run("get by id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPolicyRepository(db, zap.NewNop())

		rows := sqlmock.NewRows(policyCols).
			AddRow(id.String(), orgID.String(), "Access Control", "", "# Access", "draft", "yearly", "it", nil, now, now)
		mock.ExpectQuery(`FROM policies WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id).
			WillReturnRows(rows)

		policy, err := repo.GetByID(context.Background(), orgID, id)
		require.NoError(t, err)
		assert.Equal(t, orgID, policy.OrganizationID)
		assert.Nil(t, policy.LastTailoredAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by status", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPolicyRepository(db, zap.NewNop())

		mock.ExpectQuery(`FROM policies WHERE organization_id = \$1 AND status = \$2 ORDER BY name ASC`).
			WithArgs(orgID, "published").
			WillReturnRows(sqlmock.NewRows(policyCols))

		policies, err := repo.ListByStatus(context.Background(), orgID, models.PolicyStatusPublished)
		require.NoError(t, err)
		assert.Empty(t, policies)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update binds organization first", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPolicyRepository(db, zap.NewNop())

		tailored := now.Add(-time.Minute)
		policy := &models.Policy{ID: id, OrganizationID: orgID, Name: "Access Control", Content: "# Access",
			Status: models.PolicyStatusDraft, Frequency: "yearly", Department: "it", LastTailoredAt: &tailored, UpdatedAt: now}
		mock.ExpectExec(`UPDATE policies\s+SET .+\s+WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id, "Access Control", "", "# Access", "draft", "yearly", "it", sqlmock.AnyArg(), now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), policy))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete of another tenant's policy is ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPolicyRepository(db, zap.NewNop())

		mock.ExpectExec(`DELETE FROM policies WHERE organization_id = \$1 AND id = \$2`).
			WithArgs(orgID, id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), orgID, id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemberRepository_TenantScoped(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()
	now := time.Now()
	memberCols := []string{"id", "organization_id", "user_id", "email", "name", "role", "device_agent_enabled", "created_at", "updated_at"}

	t.Run("lookup by user id is scoped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMemberRepository(db, zap.NewNop())

		mock.ExpectQuery(`FROM members WHERE organization_id = \$1 AND user_id = \$2`).
			WithArgs(orgID, "user_123").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByUserID(context.Background(), orgID, "user_123")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner is the earliest owner of the organization", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMemberRepository(db, zap.NewNop())

		rows := sqlmock.NewRows(memberCols).
			AddRow(id.String(), orgID.String(), "user_1", "owner@example.com", "Owner", "owner", false, now, now)
		mock.ExpectQuery(`FROM members\s+WHERE organization_id = \$1 AND role = 'owner'\s+ORDER BY created_at ASC\s+LIMIT 1`).
			WithArgs(orgID).
			WillReturnRows(rows)

		owner, err := repo.GetOwner(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOwner, owner.Role)
		assert.Equal(t, orgID, owner.OrganizationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by organization", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMemberRepository(db, zap.NewNop())

		rows := sqlmock.NewRows(memberCols).
			AddRow(id.String(), orgID.String(), "user_1", "a@example.com", "A", "admin", true, now, now).
			AddRow(uuid.New().String(), orgID.String(), "user_2", "b@example.com", "B", "employee", false, now, now)
		mock.ExpectQuery(`FROM members WHERE organization_id = \$1 ORDER BY created_at ASC`).
			WithArgs(orgID).
			WillReturnRows(rows)

		members, err := repo.ListByOrg(context.Background(), orgID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.True(t, members[0].DeviceAgentEnabled)
		assert.Equal(t, models.RoleEmployee, members[1].Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAPIKeyRepository_RevokeIsTenantScoped(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()

	t.Run("revoke", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAPIKeyRepository(db, zap.NewNop())

		mock.ExpectExec(`UPDATE api_keys SET revoked_at = now\(\) WHERE organization_id = \$1 AND id = \$2 AND revoked_at IS NULL`).
			WithArgs(orgID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Revoke(context.Background(), orgID, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key of another tenant is ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAPIKeyRepository(db, zap.NewNop())

		mock.ExpectExec(`UPDATE api_keys SET revoked_at`).
			WithArgs(orgID, id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Revoke(context.Background(), orgID, id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hash lookup skips revoked keys", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAPIKeyRepository(db, zap.NewNop())

		mock.ExpectQuery(`FROM api_keys\s+WHERE key_hash = \$1 AND revoked_at IS NULL`).
			WithArgs("deadbeef").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByHash(context.Background(), "deadbeef")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTrustPortalRepository_TenantScoped(t *testing.T) {
	orgID := uuid.New()
	now := time.Now()

	t.Run("get by organization", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTrustPortalRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"organization_id", "enabled", "friendly_url", "custom_domain", "domain_verified", "contact_email",
			"soc2_enabled", "soc2_status", "iso27001_enabled", "iso27001_status", "gdpr_enabled", "gdpr_status",
			"created_at", "updated_at"}).
			AddRow(orgID.String(), true, "acme", nil, false, "security@acme.test",
				true, "in_progress", false, "started", true, "compliant", now, now)
		mock.ExpectQuery(`FROM trust_portals WHERE organization_id = \$1`).
			WithArgs(orgID).
			WillReturnRows(rows)

		portal, err := repo.GetByOrgID(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, orgID, portal.OrganizationID)
		require.NotNil(t, portal.FriendlyURL)
		assert.Equal(t, "acme", *portal.FriendlyURL)
		assert.Nil(t, portal.CustomDomain)
		assert.Equal(t, models.FrameworkInProgress, portal.SOC2Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert conflicts on organization", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTrustPortalRepository(db, zap.NewNop())

		portal := &models.TrustPortal{OrganizationID: orgID, Enabled: true, ContactEmail: "security@acme.test",
			SOC2Status: models.FrameworkStarted, ISO27001Status: models.FrameworkStarted, GDPRStatus: models.FrameworkStarted,
			CreatedAt: now, UpdatedAt: now}
		mock.ExpectExec(`INSERT INTO trust_portals .+ ON CONFLICT \(organization_id\) DO UPDATE`).
			WithArgs(orgID, true, sqlmock.AnyArg(), sqlmock.AnyArg(), false, "security@acme.test",
				false, "started", false, "started", false, "started", now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Upsert(context.Background(), portal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
