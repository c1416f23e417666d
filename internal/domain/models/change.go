// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

// Change is one stored edit, creation, or deletion event for a meeting,
// reconstructed from a raw change entry. Before and After hold the
// meeting snapshots on either side of the change; a nil Before means the
// change created the meeting, a nil After means it deleted it. At least
// one side is always present.
type Change struct {
	ID            int
	MeetingID     int
	ServiceBodyID int
	Date          time.Time
	UserName      string
	Details       string
	MeetingExists bool

	Before MeetingRecord
	After  MeetingRecord

	factory MeetingFactory
}

// NewChange reconstructs a change record from a raw change entry. The
// nested json_data.before / json_data.after sub-objects are flattened to
// string maps (array values joined with commas, recovering CSV fields
// that arrive as JSON arrays) and handed to the factory, which decides
// editable-vs-read-only per the session's permissions.
func NewChange(raw map[string]any, factory MeetingFactory) (*Change, error) {
	c := &Change{
		ID:            atoiValue(raw["change_id"]),
		MeetingID:     atoiValue(raw["meeting_id"]),
		ServiceBodyID: atoiValue(raw["service_body_id"]),
		UserName:      stringValue(raw["user_name"]),
		Details:       unescapeDetails(stringValue(raw["details"])),
		MeetingExists: stringValue(raw["meeting_exists"]) == "1",
		factory:       factory,
	}
	if epoch, err := strconv.ParseInt(stringValue(raw["date_int"]), 10, 64); err == nil {
		c.Date = time.Unix(epoch, 0).UTC()
	}

	jsonData, _ := raw["json_data"].(map[string]any)
	for side, target := range map[string]*MeetingRecord{"before": &c.Before, "after": &c.After} {
		sub, ok := jsonData[side].(map[string]any)
		if !ok {
			continue
		}
		record, err := factory.BuildMeeting(flattenSnapshot(sub))
		if err != nil {
			return nil, err
		}
		*target = record
	}

	if c.Before == nil && c.After == nil {
		return nil, domain.NewDataIntegrityError("change entry has neither a before nor an after snapshot")
	}
	return c, nil
}

// flattenSnapshot converts a nested before/after sub-object to the flat
// string map the meeting record expects.
func flattenSnapshot(sub map[string]any) map[string]string {
	fields := make(map[string]string, len(sub))
	for key, value := range sub {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case []any:
			parts := make([]string, 0, len(v))
			for _, elem := range v {
				parts = append(parts, stringValue(elem))
			}
			fields[key] = strings.Join(parts, ",")
		default:
			fields[key] = stringValue(value)
		}
	}
	return fields
}

// unescapeDetails reverses the HTML-entity escaping the server applies
// to change details.
func unescapeDetails(s string) string {
	s = strings.ReplaceAll(s, "&quot;", `"`)
	return strings.ReplaceAll(s, "&amp;", "&")
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return ""
	}
}

func atoiValue(v any) int {
	n, _ := strconv.Atoi(stringValue(v))
	return n
}

// MeetingWasCreated reports whether this change created the meeting.
func (c *Change) MeetingWasCreated() bool { return c.Before == nil }

// MeetingWasDeleted reports whether this change deleted the meeting.
func (c *Change) MeetingWasDeleted() bool { return c.After == nil }

// MeetingWasChanged returns the field-level diff between the before and
// after snapshots: for each differing key, a [before, after] value pair
// with missing values read as empty strings. It returns nil when either
// snapshot is absent or when no known field differs. Key iteration
// covers the session's known meeting field keys plus published; callers
// must not assume any particular map order.
func (c *Change) MeetingWasChanged() map[string][2]string {
	if c.Before == nil || c.After == nil {
		return nil
	}
	keys := append(slices.Clone(c.factory.MeetingFieldKeys()), FieldPublished)
	var diff map[string][2]string
	for _, key := range keys {
		beforeValue, _ := c.Before.Field(key)
		afterValue, _ := c.After.Field(key)
		if beforeValue != afterValue {
			if diff == nil {
				diff = make(map[string][2]string)
			}
			diff[key] = [2]string{beforeValue, afterValue}
		}
	}
	return diff
}

// String renders the change as a one-line (or multi-line, for edits)
// textual description.
func (c *Change) String() string {
	stamp := c.Date.Format("15:04 January 2, 2006")
	switch {
	case c.MeetingWasCreated():
		return stamp + ": " + c.UserName + " created this meeting."
	case c.MeetingWasDeleted():
		return stamp + ": " + c.UserName + " deleted this meeting."
	default:
		var b strings.Builder
		b.WriteString(stamp + ": " + c.UserName + " changed this meeting:")
		for key, values := range c.MeetingWasChanged() {
			b.WriteString("\n    " + key + " changed from \"" + values[0] + "\" to \"" + values[1] + "\"")
		}
		return b.String()
	}
}
