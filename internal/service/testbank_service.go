package service

import (
	"context"
	"encoding/json"
	"errors"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/tracing"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ExternalID accepts both string and numeric ids.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*id = ExternalID(n.String())
	return nil
}

type TestBankQuestion struct {
	ID         ExternalID `json:"id"`
	Question   string     `json:"question"`
	Options    []string   `json:"options"`
	Subject    string     `json:"subject,omitempty"`
	Topic      string     `json:"topic,omitempty"`
	Difficulty string     `json:"difficulty,omitempty"`
}

func (q TestBankQuestion) validate() error {
	switch {
	case q.ID == "":
		return errors.New("question without id")
	case strings.TrimSpace(q.Question) == "":
		return fmt.Errorf("question %s has no text", q.ID)
	case len(q.Options) < 2:
		return fmt.Errorf("question %s has fewer than two options", q.ID)
	}
	return nil
}

type TestBankSolution struct {
	QuestionID  ExternalID `json:"questionId"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation"`
}

func (s TestBankSolution) validate() error {
	if s.QuestionID == "" {
		return errors.New("solution without questionId")
	}
	if strings.TrimSpace(s.Answer) == "" {
		return fmt.Errorf("solution %s has no answer", s.QuestionID)
	}
	return nil
}

// envelope is the test bank's reply: status "ok" carries data, "error" carries error.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type TestBankQuery struct {
	Subject    string `form:"subject"`
	Topic      string `form:"topic"`
	Difficulty string `form:"difficulty"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// TestBankService proxies the external test bank so browsers avoid CORS, and only
// passes on replies that match the expected shape.
type TestBankService struct {
	cfg    config.TestBankConfig
	client *http.Client
}

func NewTestBankService(cfg config.TestBankConfig, client *http.Client) *TestBankService {
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &TestBankService{cfg: cfg, client: client}
}

func (s *TestBankService) Questions(ctx context.Context, q TestBankQuery) ([]TestBankQuestion, error) {
	params := url.Values{}
	for k, v := range map[string]string{"subject": q.Subject, "topic": q.Topic, "difficulty": q.Difficulty} {
		if v = strings.TrimSpace(v); v != "" {
			params.Set(k, v)
		}
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	data, err := s.get(ctx, "/questions", params)
	if err != nil {
		return nil, err
	}
	var questions []TestBankQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, util.NewError(util.KindUpstream, "test bank returned malformed questions", err)
	}
	for _, question := range questions {
		if err := question.validate(); err != nil {
			return nil, util.NewError(util.KindUpstream, "test bank returned an invalid question", err)
		}
	}
	if questions == nil {
		questions = []TestBankQuestion{}
	}
	return questions, nil
}

func (s *TestBankService) Solution(ctx context.Context, questionID string) (*TestBankSolution, error) {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return nil, util.Validation("question id is required")
	}
	data, err := s.get(ctx, "/solutions/"+url.PathEscape(questionID), nil)
	if err != nil {
		return nil, err
	}
	var solution TestBankSolution
	if err := json.Unmarshal(data, &solution); err != nil {
		return nil, util.NewError(util.KindUpstream, "test bank returned a malformed solution", err)
	}
	if err := solution.validate(); err != nil {
		return nil, util.NewError(util.KindUpstream, "test bank returned an invalid solution", err)
	}
	return &solution, nil
}

func (s *TestBankService) get(ctx context.Context, path string, params url.Values) (_ json.RawMessage, err error) {
	if s.cfg.BaseURL == "" {
		return nil, util.NewError(util.KindUpstream, "test bank is not configured", nil)
	}
	ctx, span := tracing.StartSpan(ctx, "testbank.get", attribute.String("testbank.path", path))
	defer func() { tracing.EndSpan(span, err) }()

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if util.KindOf(err) == util.KindUpstreamTimeout {
			return nil, util.NewError(util.KindUpstreamTimeout, "test bank timed out", err)
		}
		return nil, util.NewError(util.KindUpstream, "test bank unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, util.NewError(util.KindUpstream, "failed to read test bank reply", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, util.NotFoundError("test bank has no such resource")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, util.NewError(util.KindUpstreamRateLimit, "test bank rate limit reached", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, util.NewError(util.KindUpstreamAuth, "test bank rejected the credentials", nil)
	case resp.StatusCode >= 300:
		return nil, util.NewError(util.KindUpstream, fmt.Sprintf("test bank returned status %d", resp.StatusCode), nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, util.NewError(util.KindUpstream, "test bank reply is not JSON", err)
	}
	switch env.Status {
	case "ok":
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil, util.NewError(util.KindUpstream, "test bank reply has no data", nil)
		}
		return env.Data, nil
	case "error":
		msg := "unknown error"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		if env.Error != nil && env.Error.Code == "not_found" {
			return nil, util.NotFoundError("test bank: " + msg)
		}
		return nil, util.NewError(util.KindUpstream, "test bank error: "+msg, nil)
	}
	return nil, util.NewError(util.KindUpstream, fmt.Sprintf("test bank reply has unknown status %q", env.Status), nil)
}
