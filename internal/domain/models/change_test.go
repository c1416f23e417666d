// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

func rawChangeEntry() map[string]any {
	return map[string]any{
		"change_id":       "9001",
		"meeting_id":      "555",
		"service_body_id": "101",
		"user_name":       "Area Admin",
		"date_int":        "1480558800",
		"meeting_exists":  "1",
		"details":         "Name was changed from &quot;Old&quot; to &quot;New &amp; Improved&quot;.",
		"json_data": map[string]any{
			"before": map[string]any{
				"id_bigint":     "555",
				"meeting_name":  "Old",
				"start_time":    "19:00:00",
				"duration_time": "01:30:00",
				"formats":       []any{"O", "C"},
			},
			"after": map[string]any{
				"id_bigint":     "555",
				"meeting_name":  "New & Improved",
				"start_time":    "19:00:00",
				"duration_time": "01:30:00",
				"formats":       "O,C",
			},
		},
	}
}

func TestNewChangeParsesEntry(t *testing.T) {
	reg := newFakeRegistry(t)
	change, err := NewChange(rawChangeEntry(), reg)
	require.NoError(t, err)

	assert.Equal(t, 9001, change.ID)
	assert.Equal(t, 555, change.MeetingID)
	assert.Equal(t, 101, change.ServiceBodyID)
	assert.Equal(t, "Area Admin", change.UserName)
	assert.True(t, change.MeetingExists)
	assert.Equal(t, time.Unix(1480558800, 0).UTC(), change.Date)
	assert.Equal(t, `Name was changed from "Old" to "New & Improved".`, change.Details)

	require.NotNil(t, change.Before)
	require.NotNil(t, change.After)
	assert.False(t, change.MeetingWasCreated())
	assert.False(t, change.MeetingWasDeleted())
}

func TestNewChangeJoinsArrayValues(t *testing.T) {
	reg := newFakeRegistry(t)
	change, err := NewChange(rawChangeEntry(), reg)
	require.NoError(t, err)

	formats, ok := change.Before.Field(FieldFormats)
	require.True(t, ok)
	assert.Equal(t, "C,O", formats, "array joined to CSV, then sorted by the record")
}

func TestNewChangeNumericValues(t *testing.T) {
	raw := rawChangeEntry()
	raw["change_id"] = float64(9002)
	raw["meeting_id"] = float64(555)

	change, err := NewChange(raw, newFakeRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, 9002, change.ID)
	assert.Equal(t, 555, change.MeetingID)
}

func TestNewChangeCreatedAndDeleted(t *testing.T) {
	created := rawChangeEntry()
	createdData := created["json_data"].(map[string]any)
	delete(createdData, "before")

	change, err := NewChange(created, newFakeRegistry(t))
	require.NoError(t, err)
	assert.True(t, change.MeetingWasCreated())
	assert.False(t, change.MeetingWasDeleted())
	assert.Nil(t, change.MeetingWasChanged())

	deleted := rawChangeEntry()
	deletedData := deleted["json_data"].(map[string]any)
	delete(deletedData, "after")

	change, err = NewChange(deleted, newFakeRegistry(t))
	require.NoError(t, err)
	assert.True(t, change.MeetingWasDeleted())
}

func TestNewChangeRequiresASnapshot(t *testing.T) {
	raw := rawChangeEntry()
	raw["json_data"] = map[string]any{}

	_, err := NewChange(raw, newFakeRegistry(t))
	assert.Equal(t, domain.ErrorTypeDataIntegrity, domain.GetErrorType(err))
}

func TestMeetingWasChangedDiff(t *testing.T) {
	reg := newFakeRegistry(t)
	change, err := NewChange(rawChangeEntry(), reg)
	require.NoError(t, err)

	diff := change.MeetingWasChanged()
	require.NotNil(t, diff)
	want := map[string][2]string{
		FieldName: {"Old", "New & Improved"},
	}
	if d := cmp.Diff(want, diff); d != "" {
		t.Errorf("field diff mismatch (-want +got):\n%s", d)
	}
}

func TestMeetingWasChangedTreatsMissingAsEmpty(t *testing.T) {
	raw := rawChangeEntry()
	raw["json_data"] = map[string]any{
		"before": map[string]any{"meeting_name": "A"},
		"after":  map[string]any{"meeting_name": "B", "comments": "x"},
	}

	change, err := NewChange(raw, newFakeRegistry(t))
	require.NoError(t, err)

	diff := change.MeetingWasChanged()
	require.NotNil(t, diff)
	assert.Equal(t, [2]string{"A", "B"}, diff[FieldName])
	assert.Equal(t, [2]string{"", "x"}, diff[FieldComments])
	assert.Len(t, diff, 2)
}

func TestMeetingWasChangedIncludesPublished(t *testing.T) {
	raw := rawChangeEntry()
	jsonData := raw["json_data"].(map[string]any)
	jsonData["after"].(map[string]any)["meeting_name"] = "Old"
	jsonData["after"].(map[string]any)["published"] = "0"
	jsonData["before"].(map[string]any)["published"] = "1"

	change, err := NewChange(raw, newFakeRegistry(t))
	require.NoError(t, err)

	diff := change.MeetingWasChanged()
	require.NotNil(t, diff)
	assert.Equal(t, [2]string{"1", "0"}, diff[FieldPublished])
}

func TestMeetingWasChangedNoDifference(t *testing.T) {
	raw := rawChangeEntry()
	jsonData := raw["json_data"].(map[string]any)
	jsonData["after"].(map[string]any)["meeting_name"] = "Old"

	change, err := NewChange(raw, newFakeRegistry(t))
	require.NoError(t, err)
	assert.Nil(t, change.MeetingWasChanged())
}

func TestChangeString(t *testing.T) {
	reg := newFakeRegistry(t)

	change, err := NewChange(rawChangeEntry(), reg)
	require.NoError(t, err)
	assert.Contains(t, change.String(), "Area Admin changed this meeting:")
	assert.Contains(t, change.String(), `meeting_name changed from "Old" to "New & Improved"`)

	created := rawChangeEntry()
	delete(created["json_data"].(map[string]any), "before")
	change, err = NewChange(created, reg)
	require.NoError(t, err)
	assert.Contains(t, change.String(), "created this meeting.")

	deleted := rawChangeEntry()
	delete(deleted["json_data"].(map[string]any), "after")
	change, err = NewChange(deleted, reg)
	require.NoError(t, err)
	assert.Contains(t, change.String(), "deleted this meeting.")
}
