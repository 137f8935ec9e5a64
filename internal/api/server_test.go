package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"OpenMint-Chain/internal/auth"
	"OpenMint-Chain/internal/storage/mysql"
)

func testRepo(t *testing.T) *mysql.MemoryDeploymentRepository {
	t.Helper()
	repo, err := mysql.NewMemoryDeploymentRepository(t.TempDir())
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	return repo
}

func TestHandleListDeployments(t *testing.T) {
	repo := testRepo(t)
	sample := mysql.DeploymentRecord{
		ID:        "d1",
		UserID:    "42",
		State:     "Done",
		DeployURL: "https://pump.fun/abc",
		CreatedAt: 1700000000,
	}
	if err := repo.Save(context.Background(), sample); err != nil {
		t.Fatalf("save sample record: %v", err)
	}

	server := NewServer(":0", repo, []string{"solana-mainnet"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments?limit=5", nil)
	rec := httptest.NewRecorder()

	server.handleListDeployments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var got []mysql.DeploymentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != sample.ID || got[0].DeployURL != sample.DeployURL {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestHandleListDeploymentsErrors(t *testing.T) {
	server := NewServer(":0", testRepo(t), nil)

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/deployments", nil)
		rec := httptest.NewRecorder()

		server.handleListDeployments(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("empty repository", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
		rec := httptest.NewRecorder()

		server.handleListDeployments(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if body := rec.Body.String(); body != "[]\n" {
			t.Fatalf("expected empty array, got %q", body)
		}
	})
}

func TestHandleListChains(t *testing.T) {
	server := NewServer(":0", testRepo(t), []string{"solana-mainnet", "eth-treasury"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chains", nil)
	rec := httptest.NewRecorder()

	server.handleListChains(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var got struct {
		Chains []string `json:"chains"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Chains) != 2 || got.Chains[0] != "solana-mainnet" {
		t.Fatalf("unexpected chains: %v", got.Chains)
	}
}

func TestGuardedDeployments(t *testing.T) {
	server := NewServer(":0", testRepo(t), nil, WithGuard(auth.NewGuard("tok")))
	handler := server.protect(server.handleListDeployments)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(":0", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["status"] != "ok" {
		t.Fatalf("unexpected payload: %v", got)
	}
}
