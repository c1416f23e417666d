// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
	"github.com/bmlt-enabled/bmlt-client-go/internal/logging"
	"github.com/bmlt-enabled/bmlt-client-go/internal/search"
)

// SearchResult is the outcome of one meeting search.
type SearchResult struct {
	Meetings []models.MeetingRecord
	// Formats holds the formats used by the matching meetings, present
	// only for the FormatsOnly and BothMeetingsAndFormats extents.
	Formats []*models.Format
	// FromCache is set when the server was unreachable and the result
	// was served from the local cache.
	FromCache bool
}

// PerformMeetingSearch compiles the session criteria for the given
// extent, runs the query, and wraps the raw results in meeting records.
// When a cache is attached, successful results are stored and a failed
// fetch falls back to the last cached result for the same query.
func (s *Session) PerformMeetingSearch(ctx context.Context, extent search.Extent) (*SearchResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("session not connected")
	}

	query := s.Criteria().Compile(extent, s.environment())
	ctx = logging.AppendCtx(ctx, slog.String("query", query))

	rawMeetings, rawFormats, err := s.transport.Search(ctx, query)
	if err != nil {
		if cached, cacheErr := s.cachedMeetings(ctx, query); cacheErr == nil {
			slog.WarnContext(ctx, "search failed, serving cached result", logging.ErrKey, err)
			result, buildErr := s.buildSearchResult(ctx, cached, nil)
			if buildErr != nil {
				return nil, buildErr
			}
			result.FromCache = true
			return result, nil
		}
		return nil, err
	}

	s.cacheMeetings(ctx, query, rawMeetings)
	return s.buildSearchResult(ctx, rawMeetings, rawFormats)
}

// buildSearchResult wraps raw search rows in records. Malformed rows
// are logged and skipped rather than failing the whole search.
func (s *Session) buildSearchResult(ctx context.Context, rawMeetings, rawFormats []map[string]string) (*SearchResult, error) {
	result := &SearchResult{}

	for _, fields := range rawMeetings {
		record, err := s.BuildMeeting(fields)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed meeting",
				logging.ErrKey, err, "meeting_id", fields[models.FieldID])
			continue
		}
		result.Meetings = append(result.Meetings, record)
	}

	for _, fields := range rawFormats {
		f, err := models.NewFormat(fields)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed format", logging.ErrKey, err)
			continue
		}
		result.Formats = append(result.Formats, f)
	}

	slog.DebugContext(ctx, "search complete",
		"meetings", len(result.Meetings), "formats", len(result.Formats))
	return result, nil
}

func (s *Session) cacheMeetings(ctx context.Context, query string, rawMeetings []map[string]string) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(rawMeetings)
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, query, payload); err != nil {
		slog.WarnContext(ctx, "caching search result failed", logging.ErrKey, err)
	}
}

func (s *Session) cachedMeetings(ctx context.Context, query string) ([]map[string]string, error) {
	if s.cache == nil {
		return nil, domain.NewNotFoundError("no cache attached")
	}
	payload, err := s.cache.Get(ctx, query)
	if err != nil {
		return nil, err
	}
	var rawMeetings []map[string]string
	if err := json.Unmarshal(payload, &rawMeetings); err != nil {
		return nil, domain.NewDataIntegrityError("cached search result is corrupt", err)
	}
	return rawMeetings, nil
}

// ChangeQuery restricts a meeting change listing. Zero values mean no
// restriction on that axis.
type ChangeQuery struct {
	FromDate      time.Time
	ToDate        time.Time
	MeetingID     int
	ServiceBodyID int
}

func (q ChangeQuery) encode() string {
	var query string
	if !q.FromDate.IsZero() {
		query += "&start_date=" + q.FromDate.Format("2006-01-02")
	}
	if !q.ToDate.IsZero() {
		query += "&end_date=" + q.ToDate.Format("2006-01-02")
	}
	if q.MeetingID != 0 {
		query += "&meeting_id=" + strconv.Itoa(q.MeetingID)
	}
	if q.ServiceBodyID != 0 {
		query += "&service_body_id=" + strconv.Itoa(q.ServiceBodyID)
	}
	return query
}

// GetMeetingChanges lists stored change records matching the query.
// Entries whose snapshots cannot be reconstructed are logged and
// skipped.
func (s *Session) GetMeetingChanges(ctx context.Context, query ChangeQuery) ([]*models.Change, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("session not connected")
	}

	rawChanges, err := s.transport.GetChanges(ctx, query.encode())
	if err != nil {
		return nil, err
	}

	changes := make([]*models.Change, 0, len(rawChanges))
	for _, raw := range rawChanges {
		change, err := models.NewChange(raw, s)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed change entry", logging.ErrKey, err)
			continue
		}
		changes = append(changes, change)
	}

	slog.DebugContext(ctx, "returning meeting changes", "changes", len(changes))
	return changes, nil
}
