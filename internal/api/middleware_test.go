package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	logged := LogRequests(zap.New(core), handler)

	req := httptest.NewRequest(http.MethodPost, "/api/upvote", nil)
	rec := httptest.NewRecorder()
	logged.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != http.MethodPost {
		t.Errorf("method = %v, want POST", fields["method"])
	}
	if fields["path"] != "/api/upvote" {
		t.Errorf("path = %v, want /api/upvote", fields["path"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v, want %d", fields["status"], http.StatusTeapot)
	}
	if _, ok := fields["duration"]; !ok {
		t.Error("log should contain duration")
	}
}

func TestLogRequestsDefaultStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	LogRequests(zap.New(core), handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status field = %v, want 200", got)
	}
}

func TestGetIdentityFromContext(t *testing.T) {
	if got := GetIdentityFromContext(context.Background()); got != "" {
		t.Errorf("empty context identity = %q, want \"\"", got)
	}

	ctx := context.WithValue(context.Background(), ContextKeyIdentity, "user-1")
	if got := GetIdentityFromContext(ctx); got != "user-1" {
		t.Errorf("identity = %q, want \"user-1\"", got)
	}
}

func TestRequireAuth(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token := ts.signIn(t, "member@example.com")

	var seen string
	protected := ts.handler.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNoContent && seen == "" {
				t.Error("identity missing from context")
			}
			if tt.wantStatus != http.StatusNoContent && seen != "" {
				t.Error("handler ran for rejected request")
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token := ts.signIn(t, "reader@example.com")

	var seen string
	handler := ts.handler.OptionalAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdentityFromContext(r.Context())
	})

	for _, header := range []string{"", "Bearer bogus"} {
		seen = "unset"
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler(httptest.NewRecorder(), req)
		if seen != "" {
			t.Errorf("header %q: identity = %q, want anonymous", header, seen)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler(httptest.NewRecorder(), req)
	if seen == "" {
		t.Error("expected identity for valid token")
	}
}
