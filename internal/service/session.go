// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package service implements the client session: one live connection to
// a root server, holding the server's service bodies, formats, and
// field keys, the session search criteria, and (after an admin login)
// the user's permissions.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
	"github.com/bmlt-enabled/bmlt-client-go/internal/logging"
	"github.com/bmlt-enabled/bmlt-client-go/internal/search"
	"github.com/bmlt-enabled/bmlt-client-go/pkg/concurrent"
)

// RootServerTransport is the wire-level interface to a root server. The
// session owns all interpretation of the raw maps it returns.
type RootServerTransport interface {
	GetServerInfo(ctx context.Context) (map[string]string, error)
	GetServiceBodies(ctx context.Context) ([]map[string]string, error)
	GetFormats(ctx context.Context) ([]map[string]string, error)
	GetFieldKeys(ctx context.Context) ([]string, error)
	// Search runs a compiled query. Either return slice may be empty
	// depending on the query's extent marker.
	Search(ctx context.Context, query string) (meetings []map[string]string, formats []map[string]string, err error)
	GetChanges(ctx context.Context, query string) ([]map[string]any, error)
	Login(ctx context.Context, user, password string) error
	Logout(ctx context.Context) error
	// GetPermissions returns service body id to raw permission level.
	GetPermissions(ctx context.Context) (map[int]int, error)
	AdminAction(ctx context.Context, action string, params url.Values) (json.RawMessage, error)
}

// SearchResultCache stores raw search results keyed by their compiled
// query, so earlier results survive a server outage.
type SearchResultCache interface {
	Put(ctx context.Context, query string, payload []byte) error
	Get(ctx context.Context, query string) ([]byte, error)
	Close() error
}

// Option configures a Session.
type Option func(*Session)

// WithMetricUnits selects kilometers over miles for radius searches.
func WithMetricUnits(metric bool) Option {
	return func(s *Session) { s.env.MetricUnits = metric }
}

// WithCache attaches a search result cache.
func WithCache(cache SearchResultCache) Option {
	return func(s *Session) { s.cache = cache }
}

// WithWorkerCount bounds the concurrency of the connection handshake.
func WithWorkerCount(n int) Option {
	return func(s *Session) { s.pool = concurrent.NewWorkerPool(n) }
}

// Session is one logical connection to a root server. A session is
// built disconnected; Connect performs the handshake that snapshots the
// server's data sets. Safe for concurrent reads; mutating calls
// (Connect, Disconnect, Login, Logout) serialize on the internal lock.
type Session struct {
	transport RootServerTransport
	cache     SearchResultCache
	pool      *concurrent.WorkerPool
	env       search.Environment

	mu            sync.RWMutex
	ready         bool
	info          *models.ServerInfo
	serviceBodies map[int]*models.ServiceBody
	bodyOrder     []int
	formatsByID   map[int]*models.Format
	formatsByKey  map[string]*models.Format
	fieldKeys     []string
	permissions   map[int]models.Permission
	criteria      *search.Criteria
}

// NewSession creates a disconnected session over the given transport.
func NewSession(transport RootServerTransport, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		pool:      concurrent.NewWorkerPool(4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServiceReady reports whether the session is connected and usable.
func (s *Session) ServiceReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && s.transport != nil
}

// Connect performs the startup handshake: server info, service bodies,
// formats, and the meeting field key list are fetched concurrently and
// snapshotted. The search criteria are built over the snapshot.
func (s *Session) Connect(ctx context.Context) error {
	if s.transport == nil {
		slog.ErrorContext(ctx, "session has no transport", logging.PriorityCritical())
		return domain.NewUnavailableError("session has no transport")
	}

	var (
		infoFields map[string]string
		bodyFields []map[string]string
		fmtFields  []map[string]string
		fieldKeys  []string
	)

	err := s.pool.Run(ctx,
		func() error {
			var err error
			infoFields, err = s.transport.GetServerInfo(ctx)
			return err
		},
		func() error {
			var err error
			bodyFields, err = s.transport.GetServiceBodies(ctx)
			return err
		},
		func() error {
			var err error
			fmtFields, err = s.transport.GetFormats(ctx)
			return err
		},
		func() error {
			var err error
			fieldKeys, err = s.transport.GetFieldKeys(ctx)
			return err
		},
	)
	if err != nil {
		slog.ErrorContext(ctx, "connection handshake failed", logging.ErrKey, err, logging.PriorityCritical())
		return domain.NewUnavailableError("connection handshake failed", err)
	}

	serviceBodies := make(map[int]*models.ServiceBody, len(bodyFields))
	bodyOrder := make([]int, 0, len(bodyFields))
	bodyList := make([]*models.ServiceBody, 0, len(bodyFields))
	for _, fields := range bodyFields {
		sb, err := models.NewServiceBody(fields)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed service body", logging.ErrKey, err)
			continue
		}
		serviceBodies[sb.ID()] = sb
		bodyOrder = append(bodyOrder, sb.ID())
		bodyList = append(bodyList, sb)
	}
	models.LinkHierarchy(bodyList)

	formatsByID := make(map[int]*models.Format, len(fmtFields))
	formatsByKey := make(map[string]*models.Format, len(fmtFields))
	formatList := make([]*models.Format, 0, len(fmtFields))
	for _, fields := range fmtFields {
		f, err := models.NewFormat(fields)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed format", logging.ErrKey, err)
			continue
		}
		formatsByID[f.ID()] = f
		formatsByKey[f.Key()] = f
		formatList = append(formatList, f)
	}

	if len(fieldKeys) == 0 {
		fieldKeys = models.StandardFieldKeys
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = models.NewServerInfo(infoFields)
	s.serviceBodies = serviceBodies
	s.bodyOrder = bodyOrder
	s.formatsByID = formatsByID
	s.formatsByKey = formatsByKey
	s.fieldKeys = fieldKeys
	s.criteria = search.NewCriteria(bodyList, formatList)
	s.ready = true

	slog.InfoContext(ctx, "session connected",
		"server_version", s.info.Version,
		"service_bodies", len(serviceBodies),
		"formats", len(formatsByID),
	)
	return nil
}

// Disconnect tears the session down, logging out first when an admin
// login is active. The cache, if any, stays open for offline reads.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.env.AdminLoggedIn {
		if err := s.transport.Logout(ctx); err != nil {
			slog.WarnContext(ctx, "logout on disconnect failed", logging.ErrKey, err)
		}
		s.env.AdminLoggedIn = false
		s.permissions = nil
	}

	if s.criteria != nil {
		s.criteria.ClearStorage()
	}
	s.ready = false
	s.info = nil
	s.serviceBodies = nil
	s.bodyOrder = nil
	s.formatsByID = nil
	s.formatsByKey = nil
	s.fieldKeys = nil
	s.criteria = nil
	return nil
}

// ServerInfo returns the connected server's info record.
func (s *Session) ServerInfo() *models.ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Criteria returns the session's search criteria. Nil before Connect.
func (s *Session) Criteria() *search.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// ServiceBodies returns the known service bodies in server order.
func (s *Session) ServiceBodies() []*models.ServiceBody {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bodies := make([]*models.ServiceBody, 0, len(s.bodyOrder))
	for _, id := range s.bodyOrder {
		bodies = append(bodies, s.serviceBodies[id])
	}
	return bodies
}

// FormatByKey resolves a format by its code.
func (s *Session) FormatByKey(key string) (*models.Format, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.formatsByKey[key]; ok {
		return f, nil
	}
	return nil, domain.NewNotFoundError("unknown format key " + key)
}

// FormatByID resolves a format by its numeric id.
func (s *Session) FormatByID(id int) (*models.Format, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.formatsByID[id]; ok {
		return f, nil
	}
	return nil, domain.NewNotFoundError("unknown format id")
}

// ServiceBodyByID resolves a service body by id.
func (s *Session) ServiceBodyByID(id int) (*models.ServiceBody, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sb, ok := s.serviceBodies[id]; ok {
		return sb, nil
	}
	return nil, domain.NewNotFoundError("unknown service body id")
}

// MeetingFieldKeys returns the server's meeting field key list.
func (s *Session) MeetingFieldKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fieldKeys
}

// PermissionForServiceBody returns the logged-in user's access level
// for one service body. Without an admin login everything is
// PermissionNone.
func (s *Session) PermissionForServiceBody(id int) models.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions[id]
}

// BuildMeeting wraps a raw field map in the right record type: editable
// when the logged-in user can edit the owning service body, read-only
// otherwise. Missing edit rights are not an error.
func (s *Session) BuildMeeting(fields map[string]string) (models.MeetingRecord, error) {
	m, err := models.NewMeeting(fields, s)
	if err != nil {
		return nil, err
	}
	if s.canEdit(m.ServiceBodyID()) {
		return models.NewEditableMeeting(fields, s)
	}
	return m, nil
}

func (s *Session) canEdit(serviceBodyID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env.AdminLoggedIn && s.permissions[serviceBodyID].CanEdit()
}

// environment snapshots the compile environment under the read lock.
func (s *Session) environment() search.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}
