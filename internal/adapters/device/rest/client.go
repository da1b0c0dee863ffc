package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 10 * time.Second
)

// Client is the Device Control API adapter. It serves both as the tool
// executor and as the live-context provider.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

var (
	_ ports.ToolExecutor        = (*Client)(nil)
	_ ports.LiveContextProvider = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("device base url is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse device base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("device base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("device base url host is required")
	}

	c := &Client{baseURL: parsed, httpClient: http.DefaultClient, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListActions(context.Context) ([]domain.ActionSpec, error) {
	specs := make([]domain.ActionSpec, 0, len(routes))
	for _, r := range routes {
		specs = append(specs, r.spec())
	}
	return specs, nil
}

// Execute performs one routed call. Transport failures are returned as
// errors; HTTP-level failures come back as an unsuccessful result.
func (c *Client) Execute(ctx context.Context, name string, params map[string]any) (domain.ActionResult, error) {
	r, ok := findRoute(name)
	if !ok {
		return domain.ActionResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}

	path, body, err := r.resolve(params)
	if err != nil {
		return domain.ActionResult{Success: false, Error: err.Error()}, nil
	}

	status, payload, err := c.do(ctx, r.method, path, body)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("%s: %w", name, err)
	}
	return normalize(status, payload), nil
}

func (c *Client) Playback(ctx context.Context) (domain.PlaybackState, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/api/playback/status", nil)
	if err != nil {
		return domain.PlaybackState{}, fmt.Errorf("fetch playback status: %w", err)
	}
	if !isSuccess(status) {
		return domain.PlaybackState{}, fmt.Errorf("fetch playback status: status %d", status)
	}

	var state struct {
		State   string `json:"state"`
		SceneID any    `json:"scene_id"`
		ChaseID any    `json:"chase_id"`
	}
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("decode playback status: %w", err)
	}
	return domain.PlaybackState{
		State:   strings.ToLower(state.State),
		SceneID: stringify(state.SceneID),
		ChaseID: stringify(state.ChaseID),
	}, nil
}

// OfflineNodes accepts either a bare array or {"nodes": [...]}.
func (c *Client) OfflineNodes(ctx context.Context) ([]string, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/api/nodes", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("fetch nodes: status %d", status)
	}

	type node struct {
		ID     any    `json:"id"`
		Name   string `json:"name"`
		Online *bool  `json:"online"`
	}
	var nodes []node
	if err := json.Unmarshal(payload, &nodes); err != nil {
		var wrapped struct {
			Nodes []node `json:"nodes"`
		}
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return nil, fmt.Errorf("decode nodes: %w", err)
		}
		nodes = wrapped.Nodes
	}

	offline := []string{}
	for _, n := range nodes {
		if n.Online == nil || *n.Online {
			continue
		}
		label := n.Name
		if label == "" {
			label = stringify(n.ID)
		}
		offline = append(offline, label)
	}
	return offline, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body map[string]any) (int, []byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call device api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

// resolve fills path placeholders from params and returns what is left as
// the JSON body for methods that carry one.
func (r route) resolve(params map[string]any) (string, map[string]any, error) {
	rest := maps.Clone(params)
	if rest == nil {
		rest = map[string]any{}
	}

	var path strings.Builder
	template := r.path
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			path.WriteString(template)
			break
		}
		closing := strings.IndexByte(template[open:], '}') + open
		path.WriteString(template[:open])
		key := template[open+1 : closing]

		value, ok := r.takePlaceholder(key, rest)
		if !ok {
			return "", nil, fmt.Errorf("missing parameter %q", key)
		}
		path.WriteString(url.PathEscape(value))
		template = template[closing+1:]
	}

	if r.method == http.MethodGet || r.method == http.MethodDelete {
		return path.String(), nil, nil
	}
	if len(rest) == 0 {
		return path.String(), nil, nil
	}
	return path.String(), rest, nil
}

// takePlaceholder looks up key, then <entity>_id for id placeholders, then
// name. The device API accepts names wherever it accepts ids.
func (r route) takePlaceholder(key string, params map[string]any) (string, bool) {
	candidates := []string{key}
	if key == "id" {
		if _, entity, ok := strings.Cut(r.name, "_"); ok {
			candidates = append(candidates, entity+"_id")
		}
		candidates = append(candidates, "name")
	}
	for _, candidate := range candidates {
		raw, ok := params[candidate]
		if !ok {
			continue
		}
		value := stringify(raw)
		if value == "" {
			continue
		}
		delete(params, candidate)
		return value, true
	}
	if value, ok := pathDefaults[key]; ok {
		return value, true
	}
	return "", false
}

func normalize(status int, payload []byte) domain.ActionResult {
	result := domain.ActionResult{Success: isSuccess(status), Data: map[string]any{}}

	var decoded any
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			decoded = strings.TrimSpace(string(payload))
		}
	}

	switch body := decoded.(type) {
	case map[string]any:
		if message, ok := body["message"].(string); ok {
			result.Message = message
			delete(body, "message")
		}
		if errText, ok := body["error"].(string); ok {
			result.Error = errText
			delete(body, "error")
		}
		if success, ok := body["success"].(bool); ok {
			result.Success = result.Success && success
			delete(body, "success")
		}
		result.Data = body
	case []any:
		result.Data["items"] = body
		result.Data["count"] = len(body)
	case string:
		if result.Success {
			result.Message = body
		} else {
			result.Error = body
		}
	}

	if !result.Success && result.Error == "" && result.Message == "" {
		result.Error = fmt.Sprintf("status %d", status)
	}
	return result
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
