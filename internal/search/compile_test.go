// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
)

func testServiceBodies(t *testing.T) []*models.ServiceBody {
	t.Helper()
	var bodies []*models.ServiceBody
	for _, fields := range []map[string]string{
		{"id": "100", "name": "Region", "parent_id": "0"},
		{"id": "101", "name": "Area North", "parent_id": "100"},
		{"id": "102", "name": "Area South", "parent_id": "100"},
	} {
		sb, err := models.NewServiceBody(fields)
		require.NoError(t, err)
		bodies = append(bodies, sb)
	}
	return bodies
}

func testFormats(t *testing.T) []*models.Format {
	t.Helper()
	var formats []*models.Format
	for _, fields := range []map[string]string{
		{"id": "1", "key_string": "O", "name_string": "Open"},
		{"id": "2", "key_string": "C", "name_string": "Closed"},
		{"id": "17", "key_string": "W", "name_string": "Women"},
	} {
		f, err := models.NewFormat(fields)
		require.NoError(t, err)
		formats = append(formats, f)
	}
	return formats
}

func newTestCriteria(t *testing.T) *Criteria {
	t.Helper()
	return NewCriteria(testServiceBodies(t), testFormats(t))
}

func TestCompileExtentMarkers(t *testing.T) {
	c := newTestCriteria(t)
	env := Environment{}

	assert.Equal(t, "", c.Compile(MeetingsOnly, env))
	assert.Equal(t, "&get_formats_only", c.Compile(FormatsOnly, env))
	assert.Equal(t, "&get_used_formats", c.Compile(BothMeetingsAndFormats, env))
}

func TestCompileServiceBodiesAndFormats(t *testing.T) {
	c := newTestCriteria(t)
	c.ServiceBodyItem(101).Selection = models.Selected
	c.ServiceBodyItem(102).Selection = models.Deselected
	c.FormatItem("O").Selection = models.Selected
	c.FormatItem("W").Selection = models.Deselected

	got := c.Compile(MeetingsOnly, Environment{})

	assert.Equal(t, "&services[]=101&services[]=-102&formats[]=1&formats[]=-17", got)
}

func TestCompileWeekdays(t *testing.T) {
	c := newTestCriteria(t)
	c.SetWeekday(Monday, models.Selected)
	c.SetWeekday(Thursday, models.Deselected)
	c.SetWeekday(Saturday, models.Selected)

	got := c.Compile(MeetingsOnly, Environment{})

	assert.Equal(t, "&weekdays[]=2&weekdays[]=-5&weekdays[]=7", got)
}

func TestCompileSearchString(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Criteria)
		expected string
	}{
		{
			name: "plain string",
			mutate: func(c *Criteria) {
				c.SearchString = "candlelight meeting"
			},
			expected: "&SearchString=candlelight+meeting",
		},
		{
			name: "exact and all flags",
			mutate: func(c *Criteria) {
				c.SearchString = "hope"
				c.SearchStringExact = true
				c.SearchStringAll = true
			},
			expected: "&SearchString=hope&SearchStringExact=1&SearchStringAll=1",
		},
		{
			name: "address search ignores the match flags",
			mutate: func(c *Criteria) {
				c.SearchString = "Main St & 1st Ave"
				c.SearchStringIsLocation = true
				c.SearchStringExact = true
				c.SearchStringAll = true
			},
			expected: "&SearchString=Main+St+%26+1st+Ave&StringSearchIsAnAddress=1&SearchStringRadius=-10",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCriteria(t)
			tc.mutate(c)
			assert.Equal(t, tc.expected, c.Compile(MeetingsOnly, Environment{}))
		})
	}
}

func TestCompileGeographicSearch(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Criteria)
		env      Environment
		expected string
	}{
		{
			name: "center with default auto radius, imperial",
			mutate: func(c *Criteria) {
				c.SearchLocation = &LatLng{Latitude: 34.2355, Longitude: -118.563}
			},
			expected: "&lat_val=34.2355&long_val=-118.563&geo_width=-10",
		},
		{
			name: "center with fixed radius, metric",
			mutate: func(c *Criteria) {
				c.SearchLocation = &LatLng{Latitude: 40.7128, Longitude: -74.006}
				c.SearchRadius = 20
			},
			env:      Environment{MetricUnits: true},
			expected: "&lat_val=40.7128&long_val=-74.006&geo_width_km=20",
		},
		{
			name: "zero radius suppresses the parameter",
			mutate: func(c *Criteria) {
				c.SearchLocation = &LatLng{Latitude: 1.5, Longitude: 2.5}
				c.SearchRadius = 0
			},
			expected: "&lat_val=1.5&long_val=2.5",
		},
		{
			name: "negative radius keeps its literal integer form, metric",
			mutate: func(c *Criteria) {
				c.SearchLocation = &LatLng{Latitude: 34.2355, Longitude: -118.563}
				c.SearchRadius = -20
			},
			env:      Environment{MetricUnits: true},
			expected: "&lat_val=34.2355&long_val=-118.563&geo_width_km=-20",
		},
		{
			name: "fractional radius keeps four significant digits",
			mutate: func(c *Criteria) {
				c.SearchLocation = &LatLng{Latitude: 1, Longitude: 2}
				c.SearchRadius = 12.3456
			},
			expected: "&lat_val=1&long_val=2&geo_width=12.35",
		},
		{
			name: "address string wins over an explicit center",
			mutate: func(c *Criteria) {
				c.SearchString = "downtown"
				c.SearchStringIsLocation = true
				c.SearchLocation = &LatLng{Latitude: 1, Longitude: 2}
				c.SearchRadius = -25
			},
			expected: "&SearchString=downtown&StringSearchIsAnAddress=1&SearchStringRadius=-25",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCriteria(t)
			tc.mutate(c)
			assert.Equal(t, tc.expected, c.Compile(MeetingsOnly, tc.env))
		})
	}
}

func TestCompileCoordinatePrecision(t *testing.T) {
	c := newTestCriteria(t)
	c.SearchLocation = &LatLng{Latitude: 34.123456789012, Longitude: -118.0}
	c.SearchRadius = 0

	got := c.Compile(MeetingsOnly, Environment{})

	assert.Equal(t, "&lat_val=34.123456789012&long_val=-118", got)
}

func TestCompileTimeWindows(t *testing.T) {
	secs := func(h, m int) *int {
		v := h*3600 + m*60
		return &v
	}

	tests := []struct {
		name     string
		mutate   func(c *Criteria)
		expected string
	}{
		{
			name: "starts after, hours and minutes",
			mutate: func(c *Criteria) {
				c.StartTimeSeconds = secs(17, 30)
			},
			expected: "&StartsAfterH=17&StartsAfterM=30",
		},
		{
			name: "starts before, exact hour omits minutes",
			mutate: func(c *Criteria) {
				c.StartTimeSeconds = secs(9, 0)
				c.MeetingsStartBefore = true
			},
			expected: "&StartsBeforeH=9",
		},
		{
			name: "starts after, sub-hour omits hours",
			mutate: func(c *Criteria) {
				c.StartTimeSeconds = secs(0, 45)
			},
			expected: "&StartsAfterM=45",
		},
		{
			name: "ends before",
			mutate: func(c *Criteria) {
				c.EndTimeSeconds = secs(21, 15)
			},
			expected: "&EndsBeforeH=21&EndsBeforeM=15",
		},
		{
			name: "minimum duration",
			mutate: func(c *Criteria) {
				c.DurationSeconds = secs(1, 30)
			},
			expected: "&MinDurationH=1&MinDurationM=30",
		},
		{
			name: "maximum duration",
			mutate: func(c *Criteria) {
				c.DurationSeconds = secs(2, 0)
				c.MeetingsShorterThan = true
			},
			expected: "&MaxDurationH=2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCriteria(t)
			tc.mutate(c)
			assert.Equal(t, tc.expected, c.Compile(MeetingsOnly, Environment{}))
		})
	}
}

func TestCompileSpecificFieldValue(t *testing.T) {
	tests := []struct {
		name     string
		query    *FieldValueQuery
		expected string
	}{
		{
			name:     "substring match",
			query:    &FieldValueQuery{Key: "meeting_name", Value: "Serenity Now"},
			expected: "&meeting_key=meeting_name&meeting_key_value=Serenity+Now",
		},
		{
			name:     "case sensitive complete match",
			query:    &FieldValueQuery{Key: "worldid_mixed", Value: "G0001", CompleteMatch: true, CaseSensitive: true},
			expected: "&meeting_key=worldid_mixed&meeting_key_value=G0001&meeting_key_match_case=1&meeting_key_contains=0",
		},
		{
			name:     "empty key is skipped",
			query:    &FieldValueQuery{Value: "orphan"},
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCriteria(t)
			c.SpecificFieldValue = tc.query
			assert.Equal(t, tc.expected, c.Compile(MeetingsOnly, Environment{}))
		})
	}
}

func TestCompilePublishedStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   PublishedStatus
		admin    bool
		expected string
	}{
		{name: "not logged in emits nothing", status: PublishedStatusUnpublished, admin: false, expected: ""},
		{name: "admin published", status: PublishedStatusPublished, admin: true, expected: "&advanced_published=1"},
		{name: "admin both", status: PublishedStatusBoth, admin: true, expected: "&advanced_published=0"},
		{name: "admin unpublished", status: PublishedStatusUnpublished, admin: true, expected: "&advanced_published=-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCriteria(t)
			c.PublishedStatus = tc.status
			assert.Equal(t, tc.expected, c.Compile(MeetingsOnly, Environment{AdminLoggedIn: tc.admin}))
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newTestCriteria(t)
	c.ServiceBodyItem(100).Selection = models.Selected
	c.FormatItem("C").Selection = models.Selected
	c.SetWeekday(Tuesday, models.Selected)
	c.SetWeekday(Friday, models.Deselected)
	c.SearchString = "steps"
	c.SearchLocation = &LatLng{Latitude: 51.5, Longitude: -0.12}
	c.SearchRadius = -5

	env := Environment{MetricUnits: true, AdminLoggedIn: true}
	first := c.Compile(BothMeetingsAndFormats, env)
	second := c.Compile(BothMeetingsAndFormats, env)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "&get_used_formats")
	assert.Contains(t, first, "&weekdays[]=3")
	assert.Contains(t, first, "&weekdays[]=-6")
	assert.Contains(t, first, "&geo_width_km=-5")
}

func TestCriteriaDirtyAndClear(t *testing.T) {
	c := newTestCriteria(t)
	assert.False(t, c.IsDirty())

	c.SetWeekday(Wednesday, models.Selected)
	c.SearchString = "noon"
	assert.True(t, c.IsDirty())

	c.ClearAll()
	assert.False(t, c.IsDirty())
	assert.Len(t, c.ServiceBodies(), 3, "clearing keeps the known sets")

	c.ClearStorage()
	assert.Empty(t, c.ServiceBodies())
	assert.Empty(t, c.Formats())
}
