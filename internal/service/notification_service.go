package service

import (
	"bytes"
	"context"
	"encoding/json"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/pkg/jobs"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier announces newly saved articles. Implementations never fail the caller:
// problems are logged and dropped.
type Notifier interface {
	ArticleSaved(ctx context.Context, article *model.Article)
}

// NopNotifier is used when the webhook is disabled.
type NopNotifier struct{}

func (NopNotifier) ArticleSaved(context.Context, *model.Article) {}

// SheetRow is one row appended to the social scheduling sheet.
type SheetRow struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Excerpt   string `json:"excerpt"`
	Category  string `json:"category"`
	Tags      string `json:"tags"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func NewSheetRow(siteURL string, article *model.Article) SheetRow {
	category := ""
	if article.Category != nil {
		category = article.Category.Name
	}
	return SheetRow{
		Title:     article.Title,
		URL:       strings.TrimRight(siteURL, "/") + "/articles/" + article.Slug,
		Excerpt:   article.Excerpt,
		Category:  category,
		Tags:      strings.Join(article.Tags, ","),
		Status:    string(article.Status),
		CreatedAt: article.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SheetWebhook appends rows to a spreadsheet exposed as a REST collection
// (POST {url}/{sheet} with a JSON array body).
type SheetWebhook struct {
	cfg    config.WebhookConfig
	client *http.Client
}

func NewSheetWebhook(cfg config.WebhookConfig, client *http.Client) *SheetWebhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SheetWebhook{cfg: cfg, client: client}
}

// Post sends rows and returns any transport or status error.
func (w *SheetWebhook) Post(ctx context.Context, rows []SheetRow) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(w.cfg.URL, "/")
	if w.cfg.Sheet != "" {
		endpoint += "/" + w.cfg.Sheet
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheet webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (w *SheetWebhook) ArticleSaved(ctx context.Context, article *model.Article) {
	row := NewSheetRow(w.cfg.SiteURL, article)
	if err := w.Post(ctx, []SheetRow{row}); err != nil {
		logger.Log.Warn("Sheet webhook failed", zap.String("slug", article.Slug), zap.Error(err))
	}
}

// Enqueuer is the part of the job manager used by QueuedNotifier.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) error
}

// QueuedNotifier hands rows to the job queue; the worker posts them with retries.
type QueuedNotifier struct {
	siteURL string
	queue   Enqueuer
}

func NewQueuedNotifier(siteURL string, queue Enqueuer) *QueuedNotifier {
	return &QueuedNotifier{siteURL: siteURL, queue: queue}
}

func (n *QueuedNotifier) ArticleSaved(ctx context.Context, article *model.Article) {
	row := NewSheetRow(n.siteURL, article)
	if err := n.queue.Enqueue(ctx, jobs.TypeArticleWebhook, row); err != nil {
		logger.Log.Warn("Failed to queue sheet webhook", zap.String("slug", article.Slug), zap.Error(err))
	}
}

// WebhookJobHandler posts a queued row. Returning an error makes the queue retry.
func WebhookJobHandler(w *SheetWebhook) jobs.Handler {
	return func(ctx context.Context, payload []byte) error {
		var row SheetRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return fmt.Errorf("bad webhook payload: %w", err)
		}
		return w.Post(ctx, []SheetRow{row})
	}
}
