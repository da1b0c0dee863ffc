package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const (
	maxResponseBytes   = 4 << 20
	maxErrorBodyBytes  = 2048
	defaultPingTimeout = 5 * time.Second
	defaultTimeout     = 30 * time.Second
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	mu          sync.RWMutex
	settings    domain.ReasoningSettings
	credentials ports.CredentialStore
	httpClient  *http.Client
	pingTimeout time.Duration
}

var (
	_ ports.ReasoningBackend    = (*Client)(nil)
	_ ports.ConfigurableBackend = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithPingTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.pingTimeout = timeout
		}
	}
}

// New builds a client. credentials may be nil for endpoints that need no key.
func New(settings domain.ReasoningSettings, credentials ports.CredentialStore, opts ...Option) *Client {
	c := &Client{
		settings:    settings,
		credentials: credentials,
		httpClient:  http.DefaultClient,
		pingTimeout: defaultPingTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configure(settings domain.ReasoningSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

func (c *Client) current() domain.ReasoningSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Client) Complete(ctx context.Context, req ports.ReasoningRequest) (ports.ReasoningStep, error) {
	settings := c.current()
	ctx, cancel := requestContext(ctx, settings.Timeout)
	defer cancel()

	resp, err := c.post(ctx, settings, buildRequest(settings, req, false))
	if err != nil {
		return ports.ReasoningStep{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var payload chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return ports.ReasoningStep{}, fmt.Errorf("decode completion: %w", err)
	}
	if payload.Error != nil {
		return ports.ReasoningStep{}, fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return ports.ReasoningStep{}, fmt.Errorf("%w: completion has no choices", domain.ErrBackendUnavailable)
	}

	choice := payload.Choices[0]
	calls := make([]domain.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, call := range choice.Message.ToolCalls {
		calls = append(calls, toDomainCall(call.ID, call.Function.Name, call.Function.Arguments))
	}
	return newStep(choice.Message.Content, calls, choice.FinishReason), nil
}

// Stream reads server-sent events, forwarding text deltas to onText and
// assembling tool-call fragments by index.
func (c *Client) Stream(ctx context.Context, req ports.ReasoningRequest, onText func(string)) (ports.ReasoningStep, error) {
	settings := c.current()
	ctx, cancel := requestContext(ctx, settings.Timeout)
	defer cancel()

	resp, err := c.post(ctx, settings, buildRequest(settings, req, true))
	if err != nil {
		return ports.ReasoningStep{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var (
		text   strings.Builder
		finish string
		calls  = map[int]*partialCall{}
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return ports.ReasoningStep{}, fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				if onText != nil {
					onText(choice.Delta.Content)
				}
			}
			for _, fragment := range choice.Delta.ToolCalls {
				partial, ok := calls[fragment.Index]
				if !ok {
					partial = &partialCall{}
					calls[fragment.Index] = partial
				}
				if fragment.ID != "" {
					partial.id = fragment.ID
				}
				if fragment.Function.Name != "" {
					partial.name += fragment.Function.Name
				}
				partial.arguments.WriteString(fragment.Function.Arguments)
			}
			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.ReasoningStep{}, ctxErr
		}
		return ports.ReasoningStep{}, fmt.Errorf("read completion stream: %w", err)
	}

	indexes := make([]int, 0, len(calls))
	for index := range calls {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	assembled := make([]domain.ToolCall, 0, len(indexes))
	for _, index := range indexes {
		partial := calls[index]
		assembled = append(assembled, toDomainCall(partial.id, partial.name, partial.arguments.String()))
	}
	return newStep(text.String(), assembled, finish), nil
}

// Ping lists models with a short timeout. It is only used to refresh
// reachability.
func (c *Client) Ping(ctx context.Context) error {
	settings := c.current()
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL(settings, "/models"), nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	if err := c.authorize(ctx, settings, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: ping status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, settings domain.ReasoningSettings, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(settings, "/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if err := c.authorize(ctx, settings, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()
		return nil, fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, decodeError(resp))
	}
	return resp, nil
}

func (c *Client) authorize(ctx context.Context, settings domain.ReasoningSettings, req *http.Request) error {
	if c.credentials == nil || settings.KeyRef == "" {
		return nil
	}
	key, err := c.credentials.Lookup(ctx, settings.KeyRef)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	if key = strings.TrimSpace(key); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return nil
}

func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func endpointURL(settings domain.ReasoningSettings, path string) string {
	return strings.TrimRight(settings.Endpoint, "/") + path
}

func decodeError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var payload struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Error.Message)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, trimmed)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

func newStep(text string, calls []domain.ToolCall, finish string) ports.ReasoningStep {
	step := ports.ReasoningStep{Text: text, ToolCalls: calls, Finish: ports.FinishStop}
	if finish == string(ports.FinishToolCalls) || len(calls) > 0 {
		step.Finish = ports.FinishToolCalls
	}
	if len(calls) == 0 {
		step.ToolCalls = nil
	}
	return step
}

// toDomainCall decodes arguments leniently: anything that is not a JSON
// object becomes empty params.
func toDomainCall(id, name, arguments string) domain.ToolCall {
	params := map[string]any{}
	if trimmed := strings.TrimSpace(arguments); trimmed != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil && decoded != nil {
			params = decoded
		}
	}
	return domain.ToolCall{ID: id, Name: name, Params: params}
}
