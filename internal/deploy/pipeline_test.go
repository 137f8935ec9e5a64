package deploy

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"

	"OpenMint-Chain/internal/chain"
	"OpenMint-Chain/internal/generate"
	"OpenMint-Chain/internal/vanity"
)

type fakeOracle struct {
	balance float64
	err     error
	calls   int
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) GetBalance(_ context.Context, _ string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func (f *fakeOracle) Close() {}

type fakeGenerator struct {
	metadata *generate.TokenMetadata
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (*generate.TokenMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata, nil
}

type fakePublisher struct {
	result chain.LaunchResult
	err    error
	calls  int
	last   chain.LaunchRequest
}

func (f *fakePublisher) Publish(_ context.Context, req chain.LaunchRequest) (chain.LaunchResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return chain.LaunchResult{}, f.err
	}
	return f.result, nil
}

type recordingReporter struct {
	mu       sync.Mutex
	reports  []*Context
	progress []vanity.Progress
}

func (r *recordingReporter) Progress(_ context.Context, _ *Context, progress vanity.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
}

func (r *recordingReporter) Report(_ context.Context, pc *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, pc)
}

// fixedKeygen 始终返回同一个密钥对，使搜索第一轮即命中。
type fixedKeygen struct {
	pair  vanity.Keypair
	calls int
	mu    sync.Mutex
}

func (f *fixedKeygen) Generate() (vanity.Keypair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pair, nil
}

func deterministicPair(seedByte byte) vanity.Keypair {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	private := ed25519.NewKeyFromSeed(seed)
	return vanity.Keypair{
		PublicKey:  private.Public().(ed25519.PublicKey),
		PrivateKey: private,
	}
}

func testConfig(suffix string) Config {
	return Config{
		Wallet:          "FakeWallet1111111111111111111111111111111111",
		RequiredBalance: 0.7,
		BuyAmount:       0.7,
		Suffix:          suffix,
		MaxAttempts:     64,
		ProgressStride:  16,
		Workers:         2,
	}
}

func TestPipelineInsufficientFunds(t *testing.T) {
	oracle := &fakeOracle{balance: 0.5}
	generator := &fakeGenerator{}
	publisher := &fakePublisher{}
	reporter := &recordingReporter{}

	pipeline := NewPipeline(testConfig("p"), oracle, generator, publisher, reporter)
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42"})

	if pc.Stage != StageAborted {
		t.Fatalf("unexpected stage: %s", pc.Stage)
	}
	if pc.Err == nil || pc.Err.Code != CodeInsufficientFunds || pc.Err.Cause != "insufficient funds" {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if pc.Err.ObservedBalance == nil || *pc.Err.ObservedBalance != 0.5 {
		t.Fatalf("observed balance missing: %+v", pc.Err)
	}
	if generator.calls != 0 || publisher.calls != 0 {
		t.Fatalf("later stages must not run: generator=%d publisher=%d", generator.calls, publisher.calls)
	}
	if len(reporter.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(reporter.reports))
	}
}

func TestPipelineOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("rpc timeout")}
	generator := &fakeGenerator{}
	publisher := &fakePublisher{}
	reporter := &recordingReporter{}

	pipeline := NewPipeline(testConfig("p"), oracle, generator, publisher, reporter)
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42"})

	if pc.Err == nil || pc.Err.Code != CodeOracleUnavailable {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if pc.Err.Cause != "rpc timeout" {
		t.Fatalf("cause must be verbatim: %q", pc.Err.Cause)
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run after oracle failure")
	}
}

func TestPipelineGenerationFailure(t *testing.T) {
	oracle := &fakeOracle{balance: 1.0}
	generator := &fakeGenerator{err: errors.New("quota exceeded for model")}
	publisher := &fakePublisher{}
	reporter := &recordingReporter{}
	keygen := &fixedKeygen{pair: deterministicPair(7)}

	pipeline := NewPipeline(testConfig("p"), oracle, generator, publisher, reporter, WithKeypairGenerator(keygen))
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42"})

	if pc.Stage != StageAborted {
		t.Fatalf("unexpected stage: %s", pc.Stage)
	}
	if pc.Err == nil || pc.Err.Code != CodeGenerationFailure || pc.Err.Cause != "quota exceeded for model" {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if keygen.calls != 0 || publisher.calls != 0 {
		t.Fatalf("search and publish must never be entered: keygen=%d publisher=%d", keygen.calls, publisher.calls)
	}
}

func TestPipelineSearchExhausted(t *testing.T) {
	oracle := &fakeOracle{balance: 1.0}
	generator := &fakeGenerator{metadata: &generate.TokenMetadata{Name: "Aurora", Symbol: "AUR"}}
	publisher := &fakePublisher{}
	reporter := &recordingReporter{}

	// base58 字母表不含 "0"，该后缀不可能被满足。
	pipeline := NewPipeline(testConfig("0"), oracle, generator, publisher, reporter)
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42"})

	if pc.Err == nil || pc.Err.Code != CodeSearchExhausted || pc.Err.Cause != "exhausted" {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if publisher.calls != 0 {
		t.Fatalf("publish must not run after exhaustion")
	}
	for i := 1; i < len(reporter.progress); i++ {
		if reporter.progress[i].Attempts < reporter.progress[i-1].Attempts {
			t.Fatalf("progress attempts decreased: %d -> %d", reporter.progress[i-1].Attempts, reporter.progress[i].Attempts)
		}
	}
}

func TestPipelinePublishFailure(t *testing.T) {
	pair := deterministicPair(3)
	address := pair.Address()
	suffix := address[len(address)-1:]

	oracle := &fakeOracle{balance: 1.0}
	generator := &fakeGenerator{metadata: &generate.TokenMetadata{Name: "Aurora", Symbol: "AUR"}}
	publisher := &fakePublisher{err: errors.New("Deployment failed.")}
	reporter := &recordingReporter{}

	pipeline := NewPipeline(testConfig(suffix), oracle, generator, publisher, reporter,
		WithKeypairGenerator(&fixedKeygen{pair: pair}))
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42"})

	if pc.Err == nil || pc.Err.Code != CodePublishFailure || pc.Err.Cause != "Deployment failed." {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if pc.DeployURL != "" {
		t.Fatalf("deploy url must stay empty on failure")
	}
}

func TestPipelineHappyPath(t *testing.T) {
	pair := deterministicPair(9)
	address := pair.Address()
	suffix := address[len(address)-1:]

	oracle := &fakeOracle{balance: 1.0}
	generator := &fakeGenerator{metadata: &generate.TokenMetadata{
		Name:        "Aurora",
		Symbol:      "AUR",
		Description: "Light kept in glass.",
		ImageURL:    "https://img.example/aurora.png",
	}}
	publisher := &fakePublisher{result: chain.LaunchResult{URL: "https://pump.fun/" + address, Signature: "5sig"}}
	reporter := &recordingReporter{}

	pipeline := NewPipeline(testConfig(suffix), oracle, generator, publisher, reporter,
		WithKeypairGenerator(&fixedKeygen{pair: pair}))
	pc := pipeline.Run(context.Background(), &Context{ID: "d1", ConversationID: "42", ToolCallID: "call_1"})

	if pc.Stage != StageDone {
		t.Fatalf("unexpected stage: %s", pc.Stage)
	}
	if pc.Err != nil {
		t.Fatalf("unexpected error: %+v", pc.Err)
	}
	if pc.DeployURL != "https://pump.fun/"+address {
		t.Fatalf("unexpected deploy url: %s", pc.DeployURL)
	}
	if pc.Keypair == nil || pc.Keypair.Address() != address {
		t.Fatalf("keypair not captured")
	}
	if oracle.calls != 1 || generator.calls != 1 || publisher.calls != 1 {
		t.Fatalf("each stage must run exactly once: oracle=%d generator=%d publisher=%d", oracle.calls, generator.calls, publisher.calls)
	}
	if publisher.last.BuyAmount != 0.7 || publisher.last.Name != "Aurora" {
		t.Fatalf("unexpected launch request: %+v", publisher.last)
	}
	if len(reporter.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(reporter.reports))
	}
}
