package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pairs-bot/internal/config"

	"go.uber.org/zap"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	notifyTimeout   = 10 * time.Second
	repeatWindow    = time.Minute
)

type Telegram struct {
	enabled bool
	token   string
	chatID  string
	prefix  string
	baseURL string
	client  *http.Client
	log     *zap.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	wg       sync.WaitGroup
}

// NewTelegram builds a sender. Messages are prefixed with "[prefix] " when
// prefix is set.
func NewTelegram(cfg config.TelegramConfig, prefix string, log *zap.Logger) *Telegram {
	return newTelegram(cfg, prefix, log, telegramBaseURL, &http.Client{Timeout: notifyTimeout})
}

func newTelegram(cfg config.TelegramConfig, prefix string, log *zap.Logger, baseURL string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: notifyTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		enabled:  cfg.Enabled,
		token:    strings.TrimSpace(cfg.Token),
		chatID:   strings.TrimSpace(cfg.ChatID),
		prefix:   strings.TrimSpace(prefix),
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		log:      log,
		lastSent: make(map[string]time.Time),
	}
}

// Notify sends in the background so callers on the event loop never wait on
// the network. A message identical to one sent within the last minute is
// skipped.
func (t *Telegram) Notify(ctx context.Context, message string) {
	if t == nil || !t.enabled {
		return
	}
	now := time.Now()
	t.mu.Lock()
	if last, ok := t.lastSent[message]; ok && now.Sub(last) < repeatWindow {
		t.mu.Unlock()
		return
	}
	t.lastSent[message] = now
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := t.Send(sendCtx, message); err != nil {
			t.log.Warn("telegram alert failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background notifications finish.
func (t *Telegram) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}

func (t *Telegram) Send(ctx context.Context, message string) error {
	if t == nil || !t.enabled {
		return nil
	}
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram token and chat_id are required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("telegram message is empty")
	}
	if t.prefix != "" {
		message = "[" + t.prefix + "] " + message
	}
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			desc := strings.TrimSpace(result.Description)
			if desc == "" {
				desc = "unknown telegram error"
			}
			return fmt.Errorf("telegram send failed: %s", desc)
		}
	}
	return nil
}
