package handlers

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	"github.com/recordkeeper/api/internal/config"
	"github.com/recordkeeper/api/internal/csvexport"
	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/entitlement"
	"github.com/recordkeeper/api/internal/ingest"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/query"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv bundles a Handlers instance wired to a sqlmock database, plus the
// mock controller and a signer for minting test bearer tokens.
type testEnv struct {
	h      *Handlers
	mock   sqlmock.Sqlmock
	signer *auth.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	database := db.NewDatabaseForTesting(sqlDB)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
	signingKey, err := auth.LoadSigningKey(string(pemBytes))
	if err != nil {
		t.Fatalf("load signing key: %v", err)
	}
	signer := auth.NewSigner(signingKey)

	cfg := &config.Config{
		MaxPaginationSize:     200,
		DefaultPaginationSize: 50,
		MaxAPIKeysPerUser:     5,
		TokenExpirationSeconds:     3600,
		TokenAPIKeyExpirationHours: 24,
		ProtectSuperuser:           true,
		TemporalDeleteHours:        24,
		BulkInsertChunkSize:        500,
	}

	userDB := db.NewUserDB(sqlDB)
	apiKeyDB := db.NewApiKeyDB(sqlDB)
	formatDB := db.NewFormatDB(sqlDB)
	entitlementDB := db.NewEntitlementDB(sqlDB)
	uploadSessionDB := db.NewUploadSessionDB(sqlDB)
	recordDB := db.NewRecordDB(sqlDB)

	resolver := entitlement.NewResolver(entitlementDB, nil, time.Minute, cfg.TemporalDeleteHours)
	ingestPipeline := ingest.NewPipeline(database, formatDB, uploadSessionDB, recordDB, nil, cfg.BulkInsertChunkSize)
	queryEngine := query.NewEngine(recordDB, cfg.MaxPaginationSize, cfg.DefaultPaginationSize)
	csvPipeline := csvexport.NewPipeline(recordDB, 1, 1, 8)
	streamCap := csvexport.NewStreamCounter(nil, 2)

	h := New(Deps{
		Config:          cfg,
		UserDB:          userDB,
		ApiKeyDB:        apiKeyDB,
		FormatDB:        formatDB,
		EntitlementDB:   entitlementDB,
		UploadSessionDB: uploadSessionDB,
		RecordDB:        recordDB,
		Signer:          signer,
		Resolver:        resolver,
		Ingest:          ingestPipeline,
		Query:           queryEngine,
		CSV:             csvPipeline,
		StreamCap:       streamCap,
	})

	return &testEnv{h: h, mock: mock, signer: signer}
}

// newContext builds a test Gin context carrying the given principal
// (or none, if p is nil) and a JSON request body.
func newContext(t *testing.T, method, path string, body interface{}, p *models.Principal) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var bodyReader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if p != nil {
		c.Set("principal", p)
	}
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}
