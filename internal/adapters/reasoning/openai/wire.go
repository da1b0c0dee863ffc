package openai

import (
	"encoding/json"
	"strings"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolSpec    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int          `json:"index"`
				ID       string       `json:"id"`
				Function functionCall `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type partialCall struct {
	id        string
	name      string
	arguments strings.Builder
}

func buildRequest(settings domain.ReasoningSettings, req ports.ReasoningRequest, stream bool) chatRequest {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toChatMessage(msg))
	}

	tools := make([]toolSpec, 0, len(req.Tools))
	for _, spec := range req.Tools {
		params := spec.ParamSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}

	return chatRequest{
		Model:       settings.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		Stream:      stream,
	}
}

func toChatMessage(msg domain.Message) chatMessage {
	out := chatMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	if msg.Role == domain.RoleTool {
		out.Name = msg.Name
	}
	for _, call := range msg.ToolCalls {
		arguments := "{}"
		if len(call.Params) > 0 {
			if encoded, err := json.Marshal(call.Params); err == nil {
				arguments = string(encoded)
			}
		}
		out.ToolCalls = append(out.ToolCalls, toolCall{
			ID:       call.ID,
			Type:     "function",
			Function: functionCall{Name: call.Name, Arguments: arguments},
		})
	}
	return out
}
