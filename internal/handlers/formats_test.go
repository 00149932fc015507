package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/models"
)

func testSchema() []models.Column {
	return []models.Column{{Name: "amount", Kind: models.KindNumber}, {Name: "label", Kind: models.KindString}}
}

func TestCreateFormat_Success(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`INSERT INTO format`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "schema", "created_by", "created_at"}).
			AddRow(1, "transactions", "", `[{"name":"amount","kind":"Number"},{"name":"label","kind":"String"}]`, "u1", now))

	c, w := newContext(t, http.MethodPost, "/format", models.CreateFormatRequest{
		Name: "transactions", Schema: testSchema(),
	}, &models.Principal{UserID: "u1"})

	env.h.CreateFormat(c)
	requireStatus(t, w, http.StatusCreated)
}

func TestCreateFormat_RejectsDuplicateColumnNames(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodPost, "/format", models.CreateFormatRequest{
		Name:   "bad",
		Schema: []models.Column{{Name: "a", Kind: models.KindNumber}, {Name: "a", Kind: models.KindString}},
	}, &models.Principal{UserID: "u1"})

	env.h.CreateFormat(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestGetFormat_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT id, name, description, schema, created_by, created_at`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	c, w := newContext(t, http.MethodGet, "/format/99", nil, &models.Principal{UserID: "u1", IsSuperuser: true})
	c.Params = gin.Params{{Key: "id", Value: "99"}}

	env.h.GetFormat(c)
	requireStatus(t, w, http.StatusNotFound)
}

func TestGetFormat_ForbiddenWithoutEntitlement(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, name, description, schema, created_by, created_at`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "schema", "created_by", "created_at"}).
			AddRow(1, "transactions", "", `[]`, "u1", now))
	env.mock.ExpectQuery(`SELECT user_id, format_id, access, created_at`).
		WithArgs("u2", int64(1)).
		WillReturnError(sql.ErrNoRows)

	c, w := newContext(t, http.MethodGet, "/format/1", nil, &models.Principal{UserID: "u2", IsSuperuser: false})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	env.h.GetFormat(c)
	requireStatus(t, w, http.StatusForbidden)
}

func TestDeleteFormat_ConflictWithUploadSessions(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, name, description, schema, created_by, created_at`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "schema", "created_by", "created_at"}).
			AddRow(1, "transactions", "", `[]`, "u1", now))

	c, w := newContext(t, http.MethodDelete, "/format/1", nil, &models.Principal{UserID: "u1", IsSuperuser: true})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	env.mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM upload_session WHERE format_id = \$1\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	env.h.DeleteFormat(c)
	requireStatus(t, w, http.StatusConflict)
}
