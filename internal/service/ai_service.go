package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/monitoring"
	"exam_tracker_backend/pkg/tracing"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// LLMClient is the language model seen by the generation pipeline.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one prompt. Operation labels metrics and spans.
type CompletionRequest struct {
	Operation string
	Model     string
	System    string
	User      string
	JSON      bool
	Timeout   time.Duration
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []AIChatMessage `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AIService talks to an OpenAI compatible chat completions endpoint.
type AIService struct {
	config  config.AIConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewAIService(cfg config.AIConfig, client *http.Client) *AIService {
	if client == nil {
		client = &http.Client{}
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &AIService{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (s *AIService) Complete(ctx context.Context, req CompletionRequest) (content string, err error) {
	start := time.Now()
	if req.Model == "" {
		req.Model = s.config.Model
	}
	ctx, span := tracing.StartSpan(ctx, "llm."+req.Operation,
		attribute.String("llm.model", req.Model),
		attribute.Bool("llm.json", req.JSON))
	defer func() {
		monitoring.ObserveLLM(req.Operation, start, err)
		tracing.EndSpan(span, err)
	}()

	if s.config.APIKey == "" {
		return "", util.NewError(util.KindUpstreamAuth, "language model API key is not configured", nil)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return "", util.NewError(util.KindUpstreamRateLimit, "language model request budget exhausted", err)
		}
		return "", classifyTransportError(ctx, err)
	}

	messages := make([]AIChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, AIChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, AIChatMessage{Role: "user", Content: req.User})

	body := ChatCompletionRequest{Model: req.Model, Messages: messages}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", util.NewError(util.KindUpstream, "language model returned malformed JSON", err)
	}
	if result.Error != nil {
		return "", util.NewError(util.KindUpstream, "language model error: "+result.Error.Message, nil)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", util.NewError(util.KindUpstream, "language model returned no content", nil)
	}
	return result.Choices[0].Message.Content, nil
}

func classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	cause := fmt.Errorf("status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return util.NewError(util.KindUpstreamRateLimit, "language model rate limit reached", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return util.NewError(util.KindUpstreamAuth, "language model rejected the credentials", cause)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return util.NewError(util.KindUpstreamTimeout, "language model timed out", cause)
	}
	return util.NewError(util.KindUpstream, "language model request failed", cause)
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		util.KindOf(err) == util.KindUpstreamTimeout {
		return util.NewError(util.KindUpstreamTimeout, "language model timed out", err)
	}
	return util.NewError(util.KindUpstream, "language model unreachable", err)
}
