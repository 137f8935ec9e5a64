package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"OpenMint-Chain/internal/chain"
	"OpenMint-Chain/internal/vanity"
)

func testMint(t *testing.T) vanity.Keypair {
	t.Helper()
	pair, err := (vanity.RandomGenerator{}).Generate()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return pair
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]any{"value": 1_500_000_000},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := client.GetBalance(context.Background(), "So11111111111111111111111111111111111111112")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 1.5 {
		t.Fatalf("unexpected balance: %v", balance)
	}
}

func TestGetBalanceRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32602, "message": "invalid pubkey"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.GetBalance(context.Background(), "bogus"); err == nil || !strings.Contains(err.Error(), "invalid pubkey") {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestPublishSuccess(t *testing.T) {
	mint := testMint(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/launch" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["name"] != "Aurora" || body["symbol"] != "AUR" {
			t.Fatalf("unexpected metadata: %+v", body)
		}
		if body["mint_secret"] == "" {
			t.Fatalf("mint secret missing")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"url":       "https://pump.fun/" + mint.Address(),
			"signature": "5sig",
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{LaunchURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Publish(context.Background(), chain.LaunchRequest{
		Name:      "Aurora",
		Symbol:    "AUR",
		Mint:      mint,
		BuyAmount: 0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL != "https://pump.fun/"+mint.Address() {
		t.Fatalf("unexpected url: %s", result.URL)
	}
	if result.Signature != "5sig" {
		t.Fatalf("unexpected signature: %s", result.Signature)
	}
}

func TestPublishFailureIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Deployment failed.",
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{LaunchURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Publish(context.Background(), chain.LaunchRequest{Mint: testMint(t)})
	if err == nil || err.Error() != "Deployment failed." {
		t.Fatalf("expected verbatim launch error, got %v", err)
	}
}

func TestPublishRequiresLaunchURL(t *testing.T) {
	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Publish(context.Background(), chain.LaunchRequest{Mint: testMint(t)}); err == nil {
		t.Fatalf("expected error when launch url missing")
	}
}
