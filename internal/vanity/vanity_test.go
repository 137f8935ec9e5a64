package vanity

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fixedGenerator 轮流返回预置的密钥对，保证测试结果可复现。
type fixedGenerator struct {
	mu    sync.Mutex
	pairs []Keypair
	next  int
}

func (g *fixedGenerator) Generate() (Keypair, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pair := g.pairs[g.next%len(g.pairs)]
	g.next++
	return pair, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate() (Keypair, error) {
	return Keypair{}, errors.New("entropy depleted")
}

func deterministicKeypair(t *testing.T, seed byte) Keypair {
	t.Helper()
	raw := make([]byte, ed25519.SeedSize)
	for i := range raw {
		raw[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(raw)
	return Keypair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}
}

func TestSearchFindsMatchingSuffix(t *testing.T) {
	winner := deterministicKeypair(t, 7)
	address := winner.Address()
	suffix := address[len(address)-2:]

	miss := deterministicKeypair(t, 1)
	if strings.HasSuffix(miss.Address(), suffix) {
		t.Fatalf("test setup: miss keypair accidentally matches suffix %q", suffix)
	}

	gen := &fixedGenerator{pairs: []Keypair{miss, miss, winner}}
	found, err := Search(context.Background(), Options{
		Suffix:      suffix,
		MaxAttempts: 100,
		Workers:     1,
		Generator:   gen,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(found.Address(), suffix) {
		t.Fatalf("address %q does not end with %q", found.Address(), suffix)
	}
}

func TestSearchExhaustedOnUnsatisfiableSuffix(t *testing.T) {
	// base58 字母表不含字符 0，该后缀不可能命中。
	_, err := Search(context.Background(), Options{
		Suffix:      "0",
		MaxAttempts: 64,
		Workers:     4,
		Generator:   &fixedGenerator{pairs: []Keypair{deterministicKeypair(t, 3)}},
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestSearchProgressIsMonotonic(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []uint64
	)
	_, err := Search(context.Background(), Options{
		Suffix:         "0",
		MaxAttempts:    1000,
		ProgressStride: 100,
		Workers:        8,
		Generator:      &fixedGenerator{pairs: []Keypair{deterministicKeypair(t, 9)}},
		Observer: func(p Progress) {
			mu.Lock()
			reported = append(reported, p.Attempts)
			mu.Unlock()
			if p.Limit != 1000 {
				t.Errorf("unexpected limit in progress event: %d", p.Limit)
			}
		},
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) == 0 {
		t.Fatalf("expected at least one progress event")
	}
	for i := 1; i < len(reported); i++ {
		if reported[i] <= reported[i-1] {
			t.Fatalf("progress not monotonic: %v", reported)
		}
	}
}

func TestSearchObserverPanicDoesNotAbort(t *testing.T) {
	_, err := Search(context.Background(), Options{
		Suffix:         "0",
		MaxAttempts:    200,
		ProgressStride: 50,
		Workers:        2,
		Generator:      &fixedGenerator{pairs: []Keypair{deterministicKeypair(t, 5)}},
		Observer: func(Progress) {
			panic("observer down")
		},
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted despite observer panic, got %v", err)
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, Options{
		Suffix:      "0",
		MaxAttempts: 1 << 30,
		Workers:     2,
		Generator:   &fixedGenerator{pairs: []Keypair{deterministicKeypair(t, 2)}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSearchGeneratorFailure(t *testing.T) {
	_, err := Search(context.Background(), Options{
		Suffix:      "pump",
		MaxAttempts: 10,
		Workers:     1,
		Generator:   failingGenerator{},
	})
	if err == nil || !strings.Contains(err.Error(), "entropy depleted") {
		t.Fatalf("expected generator failure, got %v", err)
	}
}

func TestSearchValidation(t *testing.T) {
	if _, err := Search(context.Background(), Options{MaxAttempts: 1}); err == nil {
		t.Fatalf("expected error for empty suffix")
	}
	if _, err := Search(context.Background(), Options{Suffix: "pump"}); err == nil {
		t.Fatalf("expected error for zero attempt limit")
	}
}
