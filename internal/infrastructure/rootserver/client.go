// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package rootserver implements the wire transport against a BMLT root
// server's JSON interfaces.
package rootserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
	"github.com/bmlt-enabled/bmlt-client-go/internal/logging"
)

const (
	clientInterfacePath = "/client_interface/json/"
	serverAdminPath     = "/local_server/server_admin/json.php"

	defaultTimeout = 30 * time.Second
)

// Client talks to one root server. The cookie jar holds the admin
// session cookie between the login call and subsequent admin actions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client. The replacement
// should carry a cookie jar if admin operations are needed.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a transport for the root server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, domain.NewValidationError("invalid root server URL: "+baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, domain.NewInternalError("creating cookie jar", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get runs one client-interface request and returns the raw body.
func (c *Client) get(ctx context.Context, switcher, query string) ([]byte, error) {
	rawURL := c.baseURL + clientInterfacePath + "?switcher=" + switcher + query
	requestID := uuid.NewString()
	ctx = logging.AppendCtx(ctx, slog.String("request_id", requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewInternalError("building request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	slog.DebugContext(ctx, "root server request", "switcher", switcher, "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUnavailableError("root server unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUnavailableError(
			fmt.Sprintf("root server returned status %d for %s", resp.StatusCode, switcher))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUnavailableError("reading root server response", err)
	}
	return body, nil
}

// stringifyRow converts a decoded JSON object to the flat string map
// the data model consumes. Servers are inconsistent about emitting
// numbers as strings.
func stringifyRow(row map[string]any) map[string]string {
	fields := make(map[string]string, len(row))
	for key, value := range row {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			if v == float64(int64(v)) {
				fields[key] = strconv.FormatInt(int64(v), 10)
			} else {
				fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			if v {
				fields[key] = "1"
			} else {
				fields[key] = "0"
			}
		case nil:
			fields[key] = ""
		default:
			fields[key] = fmt.Sprint(v)
		}
	}
	return fields
}

func decodeRows(body []byte, what string) ([]map[string]string, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domain.NewDataIntegrityError("decoding "+what, err)
	}
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, stringifyRow(row))
	}
	return out, nil
}

// GetServerInfo fetches the server's info block.
func (c *Client) GetServerInfo(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, "GetServerInfo", "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body, "server info")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewDataIntegrityError("server info response is empty")
	}
	return rows[0], nil
}

// GetServiceBodies fetches all service bodies.
func (c *Client) GetServiceBodies(ctx context.Context) ([]map[string]string, error) {
	body, err := c.get(ctx, "GetServiceBodies", "")
	if err != nil {
		return nil, err
	}
	return decodeRows(body, "service bodies")
}

// GetFormats fetches all formats.
func (c *Client) GetFormats(ctx context.Context) ([]map[string]string, error) {
	body, err := c.get(ctx, "GetFormats", "")
	if err != nil {
		return nil, err
	}
	return decodeRows(body, "formats")
}

// GetFieldKeys fetches the meeting field key list.
func (c *Client) GetFieldKeys(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "GetFieldKeys", "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body, "field keys")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if key := row["key"]; key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Search runs a compiled search query. The server answers with either a
// bare meeting array, or an object holding meetings and formats when
// the query carried a used-formats marker.
func (c *Client) Search(ctx context.Context, query string) ([]map[string]string, []map[string]string, error) {
	body, err := c.get(ctx, "GetSearchResults", query)
	if err != nil {
		return nil, nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Meetings []map[string]any `json:"meetings"`
			Formats  []map[string]any `json:"formats"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, nil, domain.NewDataIntegrityError("decoding search results", err)
		}
		meetings := make([]map[string]string, 0, len(envelope.Meetings))
		for _, row := range envelope.Meetings {
			meetings = append(meetings, stringifyRow(row))
		}
		formats := make([]map[string]string, 0, len(envelope.Formats))
		for _, row := range envelope.Formats {
			formats = append(formats, stringifyRow(row))
		}
		return meetings, formats, nil
	}

	meetings, err := decodeRows(body, "search results")
	if err != nil {
		return nil, nil, err
	}
	return meetings, nil, nil
}

// GetChanges fetches raw change entries. The nested json_data blobs are
// left undecoded for the model layer.
func (c *Client) GetChanges(ctx context.Context, query string) ([]map[string]any, error) {
	body, err := c.get(ctx, "GetChanges", query)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domain.NewDataIntegrityError("decoding change entries", err)
	}
	return rows, nil
}

// postAdmin runs one semantic-admin request.
func (c *Client) postAdmin(ctx context.Context, params url.Values) ([]byte, error) {
	requestID := uuid.NewString()
	ctx = logging.AppendCtx(ctx, slog.String("request_id", requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+serverAdminPath, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, domain.NewInternalError("building admin request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	slog.DebugContext(ctx, "root server admin request", "admin_action", params.Get("admin_action"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUnavailableError("root server unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUnavailableError("reading admin response", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.NewPermissionDeniedError("admin request rejected")
	default:
		return nil, domain.NewUnavailableError(
			fmt.Sprintf("root server returned status %d for admin action", resp.StatusCode))
	}
}

// Login authenticates the admin session. The session cookie lands in
// the client's jar.
func (c *Client) Login(ctx context.Context, user, password string) error {
	params := url.Values{}
	params.Set("admin_action", "login")
	params.Set("c_comdef_admin_login", user)
	params.Set("c_comdef_admin_password", password)

	body, err := c.postAdmin(ctx, params)
	if err != nil {
		return err
	}
	if strings.Contains(string(body), "NOT AUTHORIZED") {
		return domain.NewPermissionDeniedError("login rejected by root server")
	}
	return nil
}

// Logout ends the admin session.
func (c *Client) Logout(ctx context.Context) error {
	params := url.Values{}
	params.Set("admin_action", "logout")
	_, err := c.postAdmin(ctx, params)
	return err
}

// GetPermissions fetches the logged-in user's service body permission
// levels.
func (c *Client) GetPermissions(ctx context.Context) (map[int]int, error) {
	params := url.Values{}
	params.Set("admin_action", "get_permissions")

	body, err := c.postAdmin(ctx, params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		ServiceBodies []struct {
			ID          int `json:"id"`
			Permissions int `json:"permissions"`
		} `json:"service_body"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.NewDataIntegrityError("decoding permissions", err)
	}

	permissions := make(map[int]int, len(envelope.ServiceBodies))
	for _, sb := range envelope.ServiceBodies {
		permissions[sb.ID] = sb.Permissions
	}
	return permissions, nil
}

// AdminAction runs an arbitrary semantic-admin action with the given
// parameters and returns the raw JSON response.
func (c *Client) AdminAction(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	merged := url.Values{}
	for key, values := range params {
		merged[key] = values
	}
	merged.Set("admin_action", action)

	body, err := c.postAdmin(ctx, merged)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, domain.NewDataIntegrityError("admin response is not valid JSON")
	}
	return json.RawMessage(body), nil
}
