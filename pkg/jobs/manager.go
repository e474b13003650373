package jobs

import (
	"context"
	"encoding/json"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeArticleWebhook = "webhook:article"
)

// Handler processes one task payload.
type Handler func(ctx context.Context, payload []byte) error

// Manager owns the asynq client and worker that run background jobs.
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewManager(cfg *config.RedisConfig) *Manager {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			"default": 3,
			"low":     1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Log.Warn("Job failed", zap.String("type", task.Type()), zap.Error(err))
		}),
		Logger: zapLogger{},
	})

	return &Manager{
		client: asynq.NewClient(redisOpt),
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (m *Manager) Register(taskType string, h Handler) {
	m.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		return h(ctx, task.Payload())
	})
}

// Start runs the worker in the background.
func (m *Manager) Start() error {
	logger.Log.Info("Starting job worker")
	return m.server.Start(m.mux)
}

func (m *Manager) Stop() {
	logger.Log.Info("Stopping job worker")
	m.server.Shutdown()
	m.client.Close()
}

// Enqueue marshals payload and queues it with bounded retries.
func (m *Manager) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	info, err := m.client.EnqueueContext(ctx, asynq.NewTask(taskType, data),
		asynq.Queue("low"),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	logger.Log.Debug("Queued job", zap.String("id", info.ID), zap.String("type", taskType))
	return nil
}

type zapLogger struct{}

func (zapLogger) Debug(args ...interface{}) { logger.Log.Debug(fmt.Sprint(args...)) }
func (zapLogger) Info(args ...interface{})  { logger.Log.Info(fmt.Sprint(args...)) }
func (zapLogger) Warn(args ...interface{})  { logger.Log.Warn(fmt.Sprint(args...)) }
func (zapLogger) Error(args ...interface{}) { logger.Log.Error(fmt.Sprint(args...)) }
func (zapLogger) Fatal(args ...interface{}) { logger.Log.Error(fmt.Sprint(args...)) }
