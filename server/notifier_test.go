// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"

	"github.com/go-a2a/mindlink/a2a"
	"github.com/go-a2a/mindlink/auth"
)

func TestPushNotifierNotify(t *testing.T) {
	received := make(chan *http.Request, 1)
	var body []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	notifier := NewPushNotifier()
	task := &a2a.Task{ID: "t1", Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil)}
	config := &a2a.PushNotificationConfig{URL: ts.URL, Token: "secret"}

	if err := notifier.Notify(context.Background(), config, task); err != nil {
		t.Fatalf("failed to notify: %v", err)
	}

	req := <-received
	if got := req.Header.Get("X-A2A-Notification-Token"); got != "secret" {
		t.Errorf("token header = %q, want %q", got, "secret")
	}
	var delivered a2a.Task
	if err := sonic.Unmarshal(body, &delivered); err != nil {
		t.Fatalf("failed to decode delivered task: %v", err)
	}
	if delivered.ID != "t1" || delivered.Status.State != a2a.TaskStateCompleted {
		t.Errorf("delivered task = %+v, want completed t1", delivered)
	}
}

func TestPushNotifierNotifyEndpointFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	notifier := NewPushNotifier()
	task := &a2a.Task{ID: "t1", Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil)}

	err := notifier.Notify(context.Background(), &a2a.PushNotificationConfig{URL: ts.URL}, task)
	if err == nil {
		t.Fatal("expected delivery error for non-2xx response")
	}
}

func TestPushNotifierVerifyURL(t *testing.T) {
	t.Run("echoing endpoint passes", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, r.URL.Query().Get("validationToken"))
		}))
		defer ts.Close()

		notifier := NewPushNotifier(WithURLVerification())
		if err := notifier.VerifyURL(context.Background(), &a2a.PushNotificationConfig{URL: ts.URL}); err != nil {
			t.Errorf("verification must pass: %v", err)
		}
	})

	t.Run("non-echoing endpoint fails", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "wrong")
		}))
		defer ts.Close()

		notifier := NewPushNotifier(WithURLVerification())
		if err := notifier.VerifyURL(context.Background(), &a2a.PushNotificationConfig{URL: ts.URL}); err == nil {
			t.Error("verification must fail when the token is not echoed")
		}
	})

	t.Run("disabled verification is a no-op", func(t *testing.T) {
		notifier := NewPushNotifier()
		if err := notifier.VerifyURL(context.Background(), &a2a.PushNotificationConfig{URL: "http://127.0.0.1:1"}); err != nil {
			t.Errorf("disabled verification must not call out: %v", err)
		}
	})
}

func TestPushNotifierSignedDelivery(t *testing.T) {
	keys := auth.NewKeyManager()
	if _, err := keys.GenerateKeyPair("push-1"); err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	type capture struct {
		authorization string
		body          []byte
	}
	received := make(chan capture, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- capture{authorization: r.Header.Get("Authorization"), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	notifier := NewPushNotifier(WithSigningKeys(keys, "push-1"))
	task := &a2a.Task{ID: "t1", Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil)}
	config := &a2a.PushNotificationConfig{
		URL:            ts.URL,
		Authentication: &a2a.AuthenticationInfo{Schemes: []string{"bearer"}},
	}

	if err := notifier.Notify(context.Background(), config, task); err != nil {
		t.Fatalf("failed to notify: %v", err)
	}

	got := <-received
	token, ok := strings.CutPrefix(got.authorization, "Bearer ")
	if !ok {
		t.Fatalf("authorization header = %q, want bearer token", got.authorization)
	}

	claims := jwt.MapClaims{}
	if err := auth.VerifyJWT(token, keys.JWKS(), claims); err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	digest := sha256.Sum256(got.body)
	if claims["request_body_sha256"] != hex.EncodeToString(digest[:]) {
		t.Error("token digest must bind the delivered body")
	}
}
