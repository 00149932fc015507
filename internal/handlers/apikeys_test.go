package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/models"
)

func TestCreateApiKey_RejectsOtherUser(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodPost, "/user/u2/api-key", nil, &models.Principal{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "u2"}}

	env.h.CreateApiKey(c)
	requireStatus(t, w, http.StatusForbidden)
}

func TestCreateApiKey_RejectsWhenAtMax(t *testing.T) {
	env := newTestEnv(t)
	env.h.cfg.MaxAPIKeysPerUser = 1
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_key`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	c, w := newContext(t, http.MethodPost, "/user/u1/api-key", nil, &models.Principal{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	env.h.CreateApiKey(c)
	requireStatus(t, w, http.StatusConflict)
}

func TestCreateApiKey_Success(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_key`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	env.mock.ExpectExec(`INSERT INTO api_key`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, w := newContext(t, http.MethodPost, "/user/u1/api-key", nil, &models.Principal{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	env.h.CreateApiKey(c)
	requireStatus(t, w, http.StatusCreated)

	var resp models.CreateApiKeyResponse
	decodeBody(t, w, &resp)
	if resp.Secret == "" {
		t.Fatal("expected a non-empty plaintext secret")
	}
}

func TestResolveTargetApiKey_AmbiguousWithoutKeyId(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, user_id, token_hash, active, expires_at, created_at, rotated_at\s+FROM api_key WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "active", "expires_at", "created_at", "rotated_at"}).
			AddRow("k1", "u1", "h1", true, now.Add(time.Hour), now, nil).
			AddRow("k2", "u1", "h2", true, now.Add(time.Hour), now, nil))

	c, w := newContext(t, http.MethodDelete, "/user/u1/api-key", nil, &models.Principal{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	env.h.DeleteApiKey(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestDeleteApiKey_ResolvesSoleKey(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, user_id, token_hash, active, expires_at, created_at, rotated_at\s+FROM api_key WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "active", "expires_at", "created_at", "rotated_at"}).
			AddRow("k1", "u1", "h1", true, now.Add(time.Hour), now, nil))
	env.mock.ExpectExec(`DELETE FROM api_key WHERE id = \$1`).
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := newContext(t, http.MethodDelete, "/user/u1/api-key", nil, &models.Principal{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	env.h.DeleteApiKey(c)
	requireStatus(t, w, http.StatusNoContent)
}
