package ipc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientBaseURLNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"127.0.0.1:7430", "http://127.0.0.1:7430"},
		{"http://localhost:7430/", "http://localhost:7430"},
		{" 10.0.0.5:80 ", "http://10.0.0.5:80"},
	}
	for _, tc := range cases {
		client := NewClient(tc.in)
		if client.base != tc.want {
			t.Fatalf("NewClient(%q).base = %q, want %q", tc.in, client.base, tc.want)
		}
	}
}

func TestClientStatusRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(StatusResponse{Running: true, Observers: 2})
	}))
	defer server.Close()

	status, err := NewClient(server.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Observers != 2 {
		t.Fatalf("status = %+v", status)
	}
}

func TestClientSendsStatusFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query()["status"]
		if len(got) != 2 || got[0] != "ready" || got[1] != "executing" {
			t.Fatalf("status query = %v", got)
		}
		json.NewEncoder(w).Encode(MissionListResponse{})
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).MissionList(context.Background(), "ready", " executing ", ""); err != nil {
		t.Fatalf("MissionList: %v", err)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "mission m-1 is already executing"})
	}))
	defer server.Close()

	err := NewClient(server.URL).MissionAbort(context.Background(), "m-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "already executing") {
		t.Fatalf("error = %v", err)
	}
}

func TestClientPostEncodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
		var req AdvanceJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Fraction != 0.25 {
			t.Fatalf("fraction = %v", req.Fraction)
		}
		json.NewEncoder(w).Encode(JobResponse{})
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).JobAdvance(context.Background(), "j-1", 0.25); err != nil {
		t.Fatalf("JobAdvance: %v", err)
	}
}
