// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strconv"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
	"github.com/bmlt-enabled/bmlt-client-go/internal/logging"
)

// Admin actions understood by the root server's semantic admin
// endpoint.
const (
	adminActionModifyMeeting   = "modify_meeting"
	adminActionDeleteMeeting   = "delete_meeting"
	adminActionRollbackMeeting = "rollback_meeting_to_before_change"
	adminActionRestoreMeeting  = "restore_deleted_meeting"
)

// mapPermission converts the server's raw permission level.
func mapPermission(level int) models.Permission {
	switch {
	case level >= 3:
		return models.PermissionAdministrator
	case level == 2:
		return models.PermissionEditor
	case level == 1:
		return models.PermissionObserver
	default:
		return models.PermissionNone
	}
}

// AdminLogin authenticates against the server's semantic admin
// interface and loads the user's per-service-body permissions. The
// server must advertise semantic admin support.
func (s *Session) AdminLogin(ctx context.Context, user, password string) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return domain.NewUnavailableError("session not connected")
	}
	if info := s.ServerInfo(); info != nil && !info.SemanticAdmin {
		return domain.NewPermissionDeniedError("server does not support semantic administration")
	}

	if err := s.transport.Login(ctx, user, password); err != nil {
		return err
	}

	rawPerms, err := s.transport.GetPermissions(ctx)
	if err != nil {
		// A login without readable permissions is unusable; undo it.
		if logoutErr := s.transport.Logout(ctx); logoutErr != nil {
			slog.WarnContext(ctx, "logout after failed permission fetch failed", logging.ErrKey, logoutErr)
		}
		return err
	}

	permissions := make(map[int]models.Permission, len(rawPerms))
	for id, level := range rawPerms {
		permissions[id] = mapPermission(level)
	}

	s.mu.Lock()
	s.permissions = permissions
	s.env.AdminLoggedIn = true
	s.mu.Unlock()

	slog.InfoContext(ctx, "admin login complete", "user", user, "service_bodies", len(permissions))
	return nil
}

// AdminLogout ends the admin login and drops all permissions.
func (s *Session) AdminLogout(ctx context.Context) error {
	s.mu.Lock()
	loggedIn := s.env.AdminLoggedIn
	s.mu.Unlock()
	if !loggedIn {
		return nil
	}

	err := s.transport.Logout(ctx)

	s.mu.Lock()
	s.env.AdminLoggedIn = false
	s.permissions = nil
	s.mu.Unlock()
	return err
}

// IsAdminLoggedIn reports whether an admin login is active.
func (s *Session) IsAdminLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env.AdminLoggedIn
}

func (s *Session) requireEditRights(meetingID, serviceBodyID int) error {
	if !s.IsAdminLoggedIn() {
		return domain.NewPermissionDeniedError("not logged in as an administrator")
	}
	if !s.PermissionForServiceBody(serviceBodyID).CanEdit() {
		return domain.NewPermissionDeniedError(
			"no edit rights on service body " + strconv.Itoa(serviceBodyID) +
				" for meeting " + strconv.Itoa(meetingID))
	}
	return nil
}

// SaveMeetingChanges sends a meeting's edited fields to the server and
// then commits them as the record's new baseline. A clean record is a
// no-op. The baseline reset happens on dispatch, before any server
// acknowledgment is interpreted.
func (s *Session) SaveMeetingChanges(ctx context.Context, meeting *models.EditableMeeting) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return domain.NewUnavailableError("session not connected")
	}
	if meeting == nil {
		return domain.NewValidationError("no meeting given")
	}
	if !meeting.IsDirty() {
		slog.DebugContext(ctx, "meeting unchanged, nothing to save", "meeting_id", meeting.ID())
		return nil
	}
	if err := s.requireEditRights(meeting.ID(), meeting.ServiceBodyID()); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("meeting_id", strconv.Itoa(meeting.ID()))
	fields := meeting.Fields()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key != models.FieldID && meeting.ValueChanged(key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		params.Add("meeting_field[]", key+","+fields[key])
	}

	if _, err := s.transport.AdminAction(ctx, adminActionModifyMeeting, params); err != nil {
		return err
	}

	meeting.SetChanges()
	slog.InfoContext(ctx, "meeting changes saved", "meeting_id", meeting.ID(), "fields", len(keys))
	return nil
}

// DeleteMeeting deletes a meeting on the server.
func (s *Session) DeleteMeeting(ctx context.Context, meeting models.MeetingRecord) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return domain.NewUnavailableError("session not connected")
	}
	if meeting == nil {
		return domain.NewValidationError("no meeting given")
	}

	serviceBodyID, _ := meeting.Field(models.FieldServiceBody)
	sbID, _ := strconv.Atoi(serviceBodyID)
	if err := s.requireEditRights(meeting.ID(), sbID); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("meeting_id", strconv.Itoa(meeting.ID()))
	if _, err := s.transport.AdminAction(ctx, adminActionDeleteMeeting, params); err != nil {
		return err
	}

	slog.InfoContext(ctx, "meeting deleted", "meeting_id", meeting.ID())
	return nil
}

// RollbackMeeting rolls a meeting back to its state before the given
// change. The change's before snapshot must exist and be editable by
// the logged-in user.
func (s *Session) RollbackMeeting(ctx context.Context, change *models.Change) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return domain.NewUnavailableError("session not connected")
	}
	if change == nil {
		return domain.NewValidationError("no change given")
	}
	if change.Before == nil {
		return domain.NewDataIntegrityError("change has no before snapshot to roll back to")
	}
	if !change.Before.IsEditable() {
		return domain.NewPermissionDeniedError("no edit rights on the change's before snapshot")
	}

	params := url.Values{}
	params.Set("meeting_id", strconv.Itoa(change.MeetingID))
	params.Set("change_id", strconv.Itoa(change.ID))
	if _, err := s.transport.AdminAction(ctx, adminActionRollbackMeeting, params); err != nil {
		return err
	}

	slog.InfoContext(ctx, "meeting rolled back",
		"meeting_id", change.MeetingID, "change_id", change.ID)
	return nil
}

// RestoreDeletedMeeting restores a deleted meeting from its deletion
// change record.
func (s *Session) RestoreDeletedMeeting(ctx context.Context, change *models.Change) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "session not connected", logging.PriorityCritical())
		return domain.NewUnavailableError("session not connected")
	}
	if change == nil {
		return domain.NewValidationError("no change given")
	}
	if !change.MeetingWasDeleted() {
		return domain.NewValidationError("change did not delete a meeting")
	}
	if err := s.requireEditRights(change.MeetingID, change.ServiceBodyID); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("meeting_id", strconv.Itoa(change.MeetingID))
	if _, err := s.transport.AdminAction(ctx, adminActionRestoreMeeting, params); err != nil {
		return err
	}

	slog.InfoContext(ctx, "deleted meeting restored", "meeting_id", change.MeetingID)
	return nil
}
