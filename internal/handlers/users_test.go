package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/recordkeeper/api/internal/models"
)

func superuser() *models.Principal {
	return &models.Principal{UserID: "admin-1", Username: "admin", IsSuperuser: true, TokenKind: "password"}
}

func TestCreateUser_RequiresSuperuser(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodPost, "/user", models.CreateUserRequest{
		Username: "alice", Password: "correct-horse-battery-staple",
	}, &models.Principal{UserID: "u1", IsSuperuser: false})

	env.h.CreateUser(c)
	requireStatus(t, w, http.StatusForbidden)
}

func TestCreateUser_Success(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec(`INSERT INTO "user"`).
		WithArgs(sqlmock.AnyArg(), "alice", sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, w := newContext(t, http.MethodPost, "/user", models.CreateUserRequest{
		Username: "alice", Password: "Correct-Horse-Battery-9",
	}, superuser())

	env.h.CreateUser(c)
	requireStatus(t, w, http.StatusCreated)

	var created models.User
	decodeBody(t, w, &created)
	if created.Username != "alice" {
		t.Fatalf("username = %q, want alice", created.Username)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateUser_DuplicateUsernameIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec(`INSERT INTO "user"`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	c, w := newContext(t, http.MethodPost, "/user", models.CreateUserRequest{
		Username: "alice", Password: "Correct-Horse-Battery-9",
	}, superuser())

	env.h.CreateUser(c)
	requireStatus(t, w, http.StatusConflict)
}

func TestGetUser_ForbiddenForOtherUser(t *testing.T) {
	env := newTestEnv(t)
	c, w := newContext(t, http.MethodGet, "/user/u2", nil, &models.Principal{UserID: "u1", IsSuperuser: false})
	c.Params = gin.Params{{Key: "id", Value: "u2"}}

	env.h.GetUser(c)
	requireStatus(t, w, http.StatusForbidden)
}

func TestGetUser_SelfAllowed(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, username, password_hash, is_superuser, created_at`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "is_superuser", "created_at"}).
			AddRow("u1", "alice", "hash", false, now))

	c, w := newContext(t, http.MethodGet, "/user/u1", nil, &models.Principal{UserID: "u1", IsSuperuser: false})
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	env.h.GetUser(c)
	requireStatus(t, w, http.StatusOK)
}

func TestDeleteUser_ProtectsExistingSuperuser(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.mock.ExpectQuery(`SELECT id, username, password_hash, is_superuser, created_at`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "is_superuser", "created_at"}).
			AddRow("u2", "root", "hash", true, now))

	c, w := newContext(t, http.MethodDelete, "/user/u2", nil, superuser())
	c.Params = gin.Params{{Key: "id", Value: "u2"}}

	env.h.DeleteUser(c)
	requireStatus(t, w, http.StatusForbidden)
}
