// Package handlers implements the Gin handlers for every REST endpoint,
// translating HTTP requests into calls against the core subsystems
// (internal/auth, internal/entitlement, internal/schema, internal/ingest,
// internal/query, internal/csvexport) and their typed errors back into
// JSON responses.
package handlers

import (
	"github.com/recordkeeper/api/internal/auth"
	"github.com/recordkeeper/api/internal/config"
	"github.com/recordkeeper/api/internal/csvexport"
	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/entitlement"
	"github.com/recordkeeper/api/internal/ingest"
	"github.com/recordkeeper/api/internal/query"
)

// Handlers holds every dependency the endpoint handlers need. One instance
// is built at startup and its methods registered as Gin routes.
type Handlers struct {
	cfg *config.Config

	userDB          *db.UserDB
	apiKeyDB        *db.ApiKeyDB
	formatDB        *db.FormatDB
	entitlementDB   *db.EntitlementDB
	uploadSessionDB *db.UploadSessionDB
	recordDB        *db.RecordDB

	signer    *auth.Signer
	resolver  *entitlement.Resolver
	ingest    *ingest.Pipeline
	query     *query.Engine
	csv       *csvexport.Pipeline
	streamCap *csvexport.StreamCounter
}

// Deps is the constructor argument bundle for New, spelled out so callers
// (cmd/main.go) can see every wire-up at a glance.
type Deps struct {
	Config          *config.Config
	UserDB          *db.UserDB
	ApiKeyDB        *db.ApiKeyDB
	FormatDB        *db.FormatDB
	EntitlementDB   *db.EntitlementDB
	UploadSessionDB *db.UploadSessionDB
	RecordDB        *db.RecordDB
	Signer          *auth.Signer
	Resolver        *entitlement.Resolver
	Ingest          *ingest.Pipeline
	Query           *query.Engine
	CSV             *csvexport.Pipeline
	StreamCap       *csvexport.StreamCounter
}

// New builds a Handlers from its dependencies.
func New(d Deps) *Handlers {
	return &Handlers{
		cfg:             d.Config,
		userDB:          d.UserDB,
		apiKeyDB:        d.ApiKeyDB,
		formatDB:        d.FormatDB,
		entitlementDB:   d.EntitlementDB,
		uploadSessionDB: d.UploadSessionDB,
		recordDB:        d.RecordDB,
		signer:          d.Signer,
		resolver:        d.Resolver,
		ingest:          d.Ingest,
		query:           d.Query,
		csv:             d.CSV,
		streamCap:       d.StreamCap,
	}
}
