package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/recordkeeper/api/internal/models"
)

func TestSetEntitlement_Success(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec(`INSERT INTO entitlement`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := newContext(t, http.MethodPost, "/entitlement", models.SetEntitlementRequest{
		UserID: "u2", FormatID: 1, Access: []string{"read", "write"},
	}, superuser())

	env.h.SetEntitlement(c)
	requireStatus(t, w, http.StatusOK)
}

func TestGetEntitlements_DefaultsToCaller(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT user_id, format_id, access, created_at\s+FROM entitlement WHERE user_id = \$1 ORDER BY`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "format_id", "access", "created_at"}).
			AddRow("u1", 1, "{read}", now))

	c, w := newContext(t, http.MethodGet, "/entitlement", nil, &models.Principal{UserID: "u1"})

	env.h.GetEntitlements(c)
	requireStatus(t, w, http.StatusOK)
}

func TestGetEntitlements_ForbiddenForOtherUser(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodGet, "/entitlement?userId=u2", nil, &models.Principal{UserID: "u1", IsSuperuser: false})
	c.Request.URL.RawQuery = "userId=u2"

	env.h.GetEntitlements(c)
	requireStatus(t, w, http.StatusForbidden)
}

func TestDeleteEntitlement_RequiresUserIdAndFormatId(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodDelete, "/entitlement", nil, superuser())

	env.h.DeleteEntitlement(c)
	requireStatus(t, w, http.StatusBadRequest)
}
