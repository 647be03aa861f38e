package midjourney_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"midjourney_bot/entities"
)

const (
	DefaultPollInterval = 1 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second

	taskStatusCompleted = "completed"
	taskStatusFailed    = "failed"
)

type clientImpl struct {
	host         string
	prefs        entities.Preferences
	pollInterval time.Duration
	httpClient   *http.Client
	verifier     SessionVerifier
	logger       *zap.Logger

	mu          sync.Mutex
	initialized bool
}

type Config struct {
	// Host is the base URL of the task bridge.
	Host         string
	Preferences  entities.Preferences
	PollInterval time.Duration
	HTTPClient   *http.Client
	Verifier     SessionVerifier
	Logger       *zap.Logger
}

func New(cfg Config) (Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("missing host")
	}

	cfg.Host = strings.TrimRight(cfg.Host, "/")

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	if cfg.Verifier == nil {
		cfg.Verifier = NewDiscordVerifier(cfg.HTTPClient)
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &clientImpl{
		host:         cfg.Host,
		prefs:        cfg.Preferences.Trimmed(),
		pollInterval: cfg.PollInterval,
		httpClient:   cfg.HTTPClient,
		verifier:     cfg.Verifier,
		logger:       cfg.Logger,
	}, nil
}

// Init verifies the session. It can be called again at any time to refresh.
func (c *clientImpl) Init(ctx context.Context) error {
	err := c.verifier.Verify(ctx, c.prefs)
	if err != nil {
		c.logger.Warn("session verification failed", zap.Error(err))

		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		c.logger.Info("session verified",
			zap.String("server_id", c.prefs.ServerID),
			zap.String("channel_id", c.prefs.ChannelID))
	}

	c.initialized = true

	return nil
}

type imagineJSONRequest struct {
	Prompt string `json:"prompt"`
}

type actionJSONRequest struct {
	Index   int    `json:"index"`
	MsgID   string `json:"msg_id"`
	Hash    string `json:"hash"`
	Flags   int    `json:"flags"`
	Content string `json:"content"`
}

type customJSONRequest struct {
	MsgID    string `json:"msg_id"`
	Flags    int    `json:"flags"`
	Content  string `json:"content"`
	CustomID string `json:"custom_id"`
}

type submitJSONResponse struct {
	TaskID string `json:"task_id"`
}

type taskButton struct {
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

type taskJSONResponse struct {
	TaskID      string       `json:"task_id"`
	Status      string       `json:"status"` // pending, running, completed, failed
	Progress    string       `json:"progress"`
	ImageURL    string       `json:"image_url"`
	MessageID   string       `json:"message_id"`
	MessageHash string       `json:"message_hash"`
	Flags       *int         `json:"flags"`
	Content     string       `json:"content"`
	FailReason  string       `json:"fail_reason"`
	Buttons     []taskButton `json:"buttons"`
}

func (t *taskJSONResponse) result() *entities.Result {
	result := &entities.Result{
		ID:       t.MessageID,
		Hash:     t.MessageHash,
		URI:      t.ImageURL,
		Progress: t.Progress,
		Content:  t.Content,
		Flags:    t.Flags,
	}

	for _, button := range t.Buttons {
		result.Options = append(result.Options, entities.ActionOption{
			Label:    button.Label,
			CustomID: button.CustomID,
		})
	}

	return result
}

func (c *clientImpl) Imagine(ctx context.Context, prompt string, onProgress ProgressFunc) (*entities.Result, error) {
	if prompt == "" {
		return nil, errors.New("missing prompt")
	}

	taskID, err := c.submit(ctx, "imagine", &imagineJSONRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	return c.waitForTask(ctx, taskID, onProgress)
}

func (c *clientImpl) Variation(ctx context.Context, req *ActionRequest) (*entities.Result, error) {
	return c.action(ctx, "variation", req)
}

func (c *clientImpl) Upscale(ctx context.Context, req *ActionRequest) (*entities.Result, error) {
	return c.action(ctx, "upscale", req)
}

func (c *clientImpl) action(ctx context.Context, name string, req *ActionRequest) (*entities.Result, error) {
	if req == nil {
		return nil, errors.New("missing request")
	}

	taskID, err := c.submit(ctx, name, &actionJSONRequest{
		Index:   req.Index,
		MsgID:   req.MsgID,
		Hash:    req.Hash,
		Flags:   req.Flags,
		Content: req.Content,
	})
	if err != nil {
		return nil, err
	}

	return c.waitForTask(ctx, taskID, req.Loading)
}

func (c *clientImpl) Custom(ctx context.Context, req *CustomRequest) (*entities.Result, error) {
	if req == nil {
		return nil, errors.New("missing request")
	}

	if req.CustomID == "" {
		return nil, errors.New("missing custom ID")
	}

	taskID, err := c.submit(ctx, "custom", &customJSONRequest{
		MsgID:    req.MsgID,
		Flags:    req.Flags,
		Content:  req.Content,
		CustomID: req.CustomID,
	})
	if err != nil {
		return nil, err
	}

	return c.waitForTask(ctx, taskID, req.Loading)
}

func (c *clientImpl) submit(ctx context.Context, action string, body any) (string, error) {
	postURL := c.host + "/mj/submit/" + action

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode request", goerr.V("action", action))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build request", goerr.V("url", postURL))
	}

	request.Header.Set("Content-Type", "application/json; charset=UTF-8")

	respBody, status, err := c.do(request)
	if err != nil {
		c.logger.Error("submit failed", zap.String("url", postURL), zap.Error(err))

		return "", err
	}

	if status >= http.StatusBadRequest {
		return "", httpError(status, respBody, postURL)
	}

	respStruct := &submitJSONResponse{}

	err = json.Unmarshal(respBody, respStruct)
	if err != nil {
		c.logger.Error("unexpected submit response", zap.String("url", postURL), zap.ByteString("body", respBody))

		return "", goerr.Wrap(err, "unexpected submit response", goerr.V("url", postURL))
	}

	c.logger.Debug("task submitted", zap.String("action", action), zap.String("task_id", respStruct.TaskID))

	return respStruct.TaskID, nil
}

func (c *clientImpl) waitForTask(ctx context.Context, taskID string, loading ProgressFunc) (*entities.Result, error) {
	if taskID == "" {
		return nil, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastURI := ""
	lastProgress := ""

	for {
		task, err := c.fetchTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if task == nil {
			return nil, nil
		}

		switch task.Status {
		case taskStatusCompleted:
			return task.result(), nil
		case taskStatusFailed:
			reason := task.FailReason
			if reason == "" {
				reason = "task failed"
			}

			return nil, goerr.New(reason, goerr.V("task_id", taskID))
		}

		changed := task.ImageURL != lastURI || task.Progress != lastProgress
		if loading != nil && changed && (task.ImageURL != "" || task.Progress != "") {
			loading(task.ImageURL, task.Progress)
		}

		lastURI = task.ImageURL
		lastProgress = task.Progress

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, goerr.Wrap(ctx.Err(), "timeout waiting for task", goerr.V("task_id", taskID))
			}

			return nil, goerr.Wrap(ctx.Err(), "stopped waiting for task", goerr.V("task_id", taskID))
		case <-ticker.C:
		}
	}
}

// fetchTask returns nil when the bridge no longer knows the task.
func (c *clientImpl) fetchTask(ctx context.Context, taskID string) (*taskJSONResponse, error) {
	getURL := c.host + "/mj/task/" + taskID

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("url", getURL))
	}

	body, status, err := c.do(request)
	if err != nil {
		c.logger.Error("task poll failed", zap.String("url", getURL), zap.Error(err))

		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, nil
	}

	if status >= http.StatusBadRequest {
		return nil, httpError(status, body, getURL)
	}

	respStruct := &taskJSONResponse{}

	err = json.Unmarshal(body, respStruct)
	if err != nil {
		c.logger.Error("unexpected task response", zap.String("url", getURL), zap.ByteString("body", body))

		return nil, goerr.Wrap(err, "unexpected task response", goerr.V("url", getURL))
	}

	return respStruct, nil
}

func (c *clientImpl) do(request *http.Request) ([]byte, int, error) {
	request.Header.Set("X-Discord-Token", c.prefs.SessionToken)
	request.Header.Set("X-Discord-Guild", c.prefs.ServerID)
	request.Header.Set("X-Discord-Channel", c.prefs.ChannelID)

	response, err := c.httpClient.Do(request)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, goerr.Wrap(err, "request timeout", goerr.V("url", request.URL.String()))
		}

		return nil, 0, goerr.Wrap(err, "request failed", goerr.V("url", request.URL.String()))
	}

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to read response", goerr.V("url", request.URL.String()))
	}

	return body, response.StatusCode, nil
}

func httpError(status int, body []byte, url string) error {
	return goerr.New(fmt.Sprintf("HTTP %d %s: %s", status, http.StatusText(status), strings.TrimSpace(string(body))),
		goerr.V("url", url))
}
