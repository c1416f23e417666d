// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package rootserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL)
	require.NoError(t, err)
	return server, client
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "/relative/path"} {
		_, err := NewClient(bad)
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err), "url %q", bad)
	}
}

func TestGetServerInfo(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, clientInterfacePath, r.URL.Path)
		assert.Equal(t, "GetServerInfo", r.URL.Query().Get("switcher"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[{"version":"3.0.3","langs":"en","centerLatitude":34.23,"semanticAdmin":"1"}]`))
	})

	info, err := client.GetServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.0.3", info["version"])
	assert.Equal(t, "34.23", info["centerLatitude"], "numeric values are stringified")
}

func TestGetServerInfoEmpty(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.GetServerInfo(context.Background())
	assert.Equal(t, domain.ErrorTypeDataIntegrity, domain.GetErrorType(err))
}

func TestGetFieldKeys(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"key":"id_bigint","description":"ID"},{"key":"meeting_name","description":"Name"}]`))
	})

	keys, err := client.GetFieldKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id_bigint", "meeting_name"}, keys)
}

func TestSearchArrayResponse(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetSearchResults", r.URL.Query().Get("switcher"))
		assert.Equal(t, "2", r.URL.Query().Get("weekdays[]"))
		_, _ = w.Write([]byte(`[{"id_bigint":"555","meeting_name":"Daily Reprieve"}]`))
	})

	meetings, formats, err := client.Search(context.Background(), "&weekdays[]=2")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "555", meetings[0]["id_bigint"])
	assert.Empty(t, formats)
}

func TestSearchEnvelopeResponse(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meetings":[{"id_bigint":"555"}],"formats":[{"id":1,"key_string":"O"}]}`))
	})

	meetings, formats, err := client.Search(context.Background(), "&get_used_formats")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	require.Len(t, formats, 1)
	assert.Equal(t, "1", formats[0]["id"])
	assert.Equal(t, "O", formats[0]["key_string"])
}

func TestSearchServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := client.Search(context.Background(), "")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestGetChangesKeepsNestedData(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetChanges", r.URL.Query().Get("switcher"))
		assert.Equal(t, "555", r.URL.Query().Get("meeting_id"))
		_, _ = w.Write([]byte(`[{"change_id":"9001","json_data":{"before":{"meeting_name":"Old"}}}]`))
	})

	changes, err := client.GetChanges(context.Background(), "&meeting_id=555")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	jsonData, ok := changes[0]["json_data"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, jsonData, "before")
}

func TestLoginSetsSessionCookie(t *testing.T) {
	var sawCookie bool
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case serverAdminPath:
			require.NoError(t, r.ParseForm())
			switch r.PostForm.Get("admin_action") {
			case "login":
				assert.Equal(t, "admin", r.PostForm.Get("c_comdef_admin_login"))
				http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc123"})
				_, _ = w.Write([]byte(`"OK"`))
			case "get_permissions":
				if _, err := r.Cookie("PHPSESSID"); err == nil {
					sawCookie = true
				}
				_, _ = w.Write([]byte(`{"service_body":[{"id":101,"permissions":2}]}`))
			}
		}
	})

	require.NoError(t, client.Login(context.Background(), "admin", "pw"))

	perms, err := client.GetPermissions(context.Background())
	require.NoError(t, err)
	assert.True(t, sawCookie, "session cookie should carry over")
	assert.Equal(t, map[int]int{101: 2}, perms)
}

func TestLoginRejected(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`NOT AUTHORIZED`))
	})

	err := client.Login(context.Background(), "admin", "wrong")
	assert.Equal(t, domain.ErrorTypePermissionDenied, domain.GetErrorType(err))
}

func TestAdminActionMergesParams(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "modify_meeting", r.PostForm.Get("admin_action"))
		assert.Equal(t, "555", r.PostForm.Get("meeting_id"))
		assert.Equal(t, []string{"meeting_name,New Name"}, r.PostForm["meeting_field[]"])
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	params := url.Values{}
	params.Set("meeting_id", "555")
	params.Add("meeting_field[]", "meeting_name,New Name")

	raw, err := client.AdminAction(context.Background(), "modify_meeting", params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))
}

func TestAdminActionUnauthorized(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.AdminAction(context.Background(), "delete_meeting", url.Values{})
	assert.Equal(t, domain.ErrorTypePermissionDenied, domain.GetErrorType(err))
}
