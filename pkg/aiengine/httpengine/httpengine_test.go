package httpengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowctl/orchestrator/pkg/core"
)

func TestMissingAPIKeySurfacesCloudApiKeyNotAvailable(t *testing.T) {
	e := New(Config{BaseURL: "http://unused.invalid"})
	_, err := e.FindDefects(context.Background(), []byte("png"))
	if err == nil {
		t.Fatal("expected error")
	}
	domainErr, ok := err.(*core.DomainError)
	if !ok {
		t.Fatalf("expected *core.DomainError, got %T", err)
	}
	if domainErr.Kind != core.CloudApiKeyNotAvailable {
		t.Fatalf("expected CloudApiKeyNotAvailable, got %v", domainErr.Kind)
	}
}

func TestFindDefectsParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/find-defects" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"defects": []map[string]string{{"reasoning": "button overlaps text"}},
		})
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	defects, err := e.FindDefects(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defects) != 1 || defects[0].Reasoning != "button overlaps text" {
		t.Fatalf("unexpected defects: %v", defects)
	}
}

func TestPerformAssertionPassed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"passed": true})
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	defect, err := e.PerformAssertion(context.Background(), []byte("png"), "button is blue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defect != nil {
		t.Fatalf("expected nil defect on pass, got %v", defect)
	}
}

func TestHTTPErrorSurfacesDriverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := e.ExtractText(context.Background(), []byte("png"), "what does this say?")
	if err == nil {
		t.Fatal("expected error")
	}
	domainErr, ok := err.(*core.DomainError)
	if !ok {
		t.Fatalf("expected *core.DomainError, got %T", err)
	}
	if domainErr.Kind != core.DriverFailure {
		t.Fatalf("expected DriverFailure, got %v", domainErr.Kind)
	}
}
