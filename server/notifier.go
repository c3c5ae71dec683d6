// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/go-a2a/mindlink/a2a"
	"github.com/go-a2a/mindlink/auth"
)

// PushNotifier keeps the per-task callback configs and delivers task
// snapshots to them. Delivery is fire and forget; retry policy belongs to
// the deployer.
type PushNotifier struct {
	mu      sync.RWMutex
	configs map[string]*a2a.PushNotificationConfig

	client     *http.Client
	logger     *slog.Logger
	keys       *auth.KeyManager
	keyID      string
	verifyURLs bool
}

// PushNotifierOption configures a PushNotifier.
type PushNotifierOption func(*PushNotifier)

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) PushNotifierOption {
	return func(n *PushNotifier) {
		n.logger = logger
	}
}

// WithNotifierClient sets the HTTP client used for deliveries.
func WithNotifierClient(client *http.Client) PushNotifierOption {
	return func(n *PushNotifier) {
		n.client = client
	}
}

// WithSigningKeys enables ES256-signed callbacks using the given key.
func WithSigningKeys(keys *auth.KeyManager, keyID string) PushNotifierOption {
	return func(n *PushNotifier) {
		n.keys = keys
		n.keyID = keyID
	}
}

// WithURLVerification requires callback endpoints to pass the
// validation-token challenge before a config is accepted.
func WithURLVerification() PushNotifierOption {
	return func(n *PushNotifier) {
		n.verifyURLs = true
	}
}

// NewPushNotifier creates a PushNotifier.
func NewPushNotifier(opts ...PushNotifierOption) *PushNotifier {
	n := &PushNotifier{
		configs: make(map[string]*a2a.PushNotificationConfig),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Set stores the callback config for a task.
func (n *PushNotifier) Set(taskID string, config *a2a.PushNotificationConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.configs[taskID] = config
}

// Get returns a copy of the callback config for a task.
func (n *PushNotifier) Get(taskID string) (*a2a.PushNotificationConfig, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	config, ok := n.configs[taskID]
	if !ok {
		return nil, false
	}
	out := *config
	return &out, true
}

// VerifyURL runs the ownership challenge against the callback endpoint: a
// GET carrying a fresh validation token that the endpoint must echo back.
// It is a no-op unless the notifier was built with WithURLVerification.
func (n *PushNotifier) VerifyURL(ctx context.Context, config *a2a.PushNotificationConfig) error {
	if !n.verifyURLs {
		return nil
	}

	token := uuid.NewString()
	challengeURL := config.URL
	sep := "?"
	if strings.Contains(challengeURL, "?") {
		sep = "&"
	}
	challengeURL += sep + "validationToken=" + url.QueryEscape(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, challengeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build verification request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("push notification URL verification failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("failed to read verification response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != token {
		return fmt.Errorf("push notification URL did not echo validation token")
	}
	n.logger.InfoContext(ctx, "verified push notification URL", slog.String("url", config.URL))
	return nil
}

// Notify POSTs the current task snapshot to the configured callback.
func (n *PushNotifier) Notify(ctx context.Context, config *a2a.PushNotificationConfig, task *a2a.Task) error {
	if config == nil || config.URL == "" {
		return fmt.Errorf("push notification config not set")
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if config.Token != "" {
		req.Header.Set("X-A2A-Notification-Token", config.Token)
	}
	if n.keys != nil && wantsJWT(config) {
		token, err := n.signRequest(payload)
		if err != nil {
			return fmt.Errorf("failed to sign notification: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else if config.Authentication != nil && config.Authentication.Credentials != "" {
		req.Header.Set("Authorization", "Bearer "+config.Authentication.Credentials)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	n.logger.InfoContext(ctx, "delivered push notification",
		slog.String("task_id", task.ID), slog.String("url", config.URL))
	return nil
}

// signRequest issues a short-lived ES256 token binding the request body
// digest, so receivers can authenticate both sender and payload.
func (n *PushNotifier) signRequest(payload []byte) (string, error) {
	digest := sha256.Sum256(payload)
	now := time.Now()
	claims := jwt.MapClaims{
		"iat":                 now.Unix(),
		"exp":                 now.Add(5 * time.Minute).Unix(),
		"jti":                 uuid.NewString(),
		"request_body_sha256": hex.EncodeToString(digest[:]),
	}
	return n.keys.SignJWT(n.keyID, claims)
}

func wantsJWT(config *a2a.PushNotificationConfig) bool {
	if config.Authentication == nil {
		return false
	}
	for _, scheme := range config.Authentication.Schemes {
		if strings.EqualFold(scheme, "bearer") || strings.HasPrefix(strings.ToLower(scheme), "jwt") {
			return true
		}
	}
	return false
}
