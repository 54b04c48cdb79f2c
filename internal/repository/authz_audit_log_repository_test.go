package repository

import (
	"testing"
	"time"

	"github.com/otp-auth/internal/models"
)

func TestAuthzAuditLogCreateKeepsDetail(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewAuthzAuditLogRepository(db)

	if err := repo.Create(nil); err != nil {
		t.Fatalf("nil log should be ignored: %v", err)
	}
	item := &models.AuthzAuditLog{
		TargetUserID: 2,
		Action:       "role_assign",
		Roles:        "user,staff",
		DetailJSON:   models.JSON{"source": "seed"},
		CreatedAt:    time.Now(),
	}
	if err := repo.Create(item); err != nil {
		t.Fatalf("create audit log: %v", err)
	}

	var got models.AuthzAuditLog
	if err := db.First(&got, item.ID).Error; err != nil {
		t.Fatalf("load audit log: %v", err)
	}
	if got.OperatorUserID != nil || got.Roles != "user,staff" || got.DetailJSON["source"] != "seed" {
		t.Fatalf("unexpected audit row: %+v", got)
	}
}
