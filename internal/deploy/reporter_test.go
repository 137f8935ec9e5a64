package deploy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"OpenMint-Chain/internal/assistant"
	"OpenMint-Chain/internal/generate"
	"OpenMint-Chain/internal/observability/alerting"

	"github.com/mr-tron/base58"
)

type fakeDispatcher struct {
	events []alerting.Event
}

func (f *fakeDispatcher) Notify(_ context.Context, event alerting.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeToolSink struct {
	outputs []assistant.ToolOutput
	err     error
	calls   int
}

func (f *fakeToolSink) SubmitToolOutputs(_ context.Context, _, _ string, outputs []assistant.ToolOutput) error {
	f.calls++
	f.outputs = append(f.outputs, outputs...)
	return f.err
}

type fakeMessenger struct {
	texts  []string
	photos []string
	err    error
}

func (f *fakeMessenger) SendText(_ context.Context, _, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeMessenger) SendPhoto(_ context.Context, _, photoURL, _ string) error {
	f.photos = append(f.photos, photoURL)
	return f.err
}

func TestReporterSuccess(t *testing.T) {
	sink := &fakeToolSink{}
	messenger := &fakeMessenger{}
	reporter := NewResultReporter(sink, messenger)

	pair := deterministicPair(5)
	pc := &Context{
		ID:             "d1",
		ConversationID: "42",
		ThreadID:       "thread_1",
		RunID:          "run_1",
		ToolCallID:     "call_1",
		Stage:          StageReporting,
		Metadata:       &generate.TokenMetadata{Name: "Aurora", Symbol: "AUR"},
		Keypair:        &pair,
		DeployURL:      "https://pump.fun/" + pair.Address(),
	}
	reporter.Report(context.Background(), pc)

	if sink.calls != 1 || len(sink.outputs) != 1 {
		t.Fatalf("expected exactly one tool result, got %d", len(sink.outputs))
	}
	output := sink.outputs[0]
	if output.ToolCallID != "call_1" {
		t.Fatalf("unexpected tool call id: %s", output.ToolCallID)
	}
	if !strings.Contains(output.Output, pc.DeployURL) || !strings.Contains(output.Output, `"state":"Done"`) {
		t.Fatalf("unexpected tool output: %s", output.Output)
	}
	if len(messenger.texts) != 1 || !strings.Contains(messenger.texts[0], pc.DeployURL) {
		t.Fatalf("expected exactly one success message, got %v", messenger.texts)
	}
}

func TestReporterAbortedInsufficientFunds(t *testing.T) {
	sink := &fakeToolSink{}
	messenger := &fakeMessenger{}
	reporter := NewResultReporter(sink, messenger)

	balance := 0.5
	pc := &Context{
		ID:             "d1",
		ConversationID: "42",
		ToolCallID:     "call_1",
		Stage:          StageAborted,
		Err: &StageError{
			Stage:           StageCheckingFunds,
			Code:            CodeInsufficientFunds,
			Cause:           "insufficient funds",
			ObservedBalance: &balance,
		},
	}
	reporter.Report(context.Background(), pc)

	if len(sink.outputs) != 1 || !strings.Contains(sink.outputs[0].Output, `"state":"Aborted"`) {
		t.Fatalf("unexpected tool output: %+v", sink.outputs)
	}
	if !strings.Contains(sink.outputs[0].Output, "insufficient funds") {
		t.Fatalf("cause missing from tool output: %s", sink.outputs[0].Output)
	}
	if len(messenger.texts) != 1 || !strings.Contains(messenger.texts[0], "Insufficient funds") {
		t.Fatalf("unexpected user message: %v", messenger.texts)
	}
}

func TestReporterNeverLeaksPrivateKey(t *testing.T) {
	sink := &fakeToolSink{}
	messenger := &fakeMessenger{}
	reporter := NewResultReporter(sink, messenger)

	pair := deterministicPair(11)
	pc := &Context{
		ID:             "d1",
		ConversationID: "42",
		ToolCallID:     "call_1",
		Stage:          StageReporting,
		Metadata:       &generate.TokenMetadata{Name: "Aurora", Symbol: "AUR"},
		Keypair:        &pair,
		DeployURL:      "https://pump.fun/" + pair.Address(),
	}
	reporter.Report(context.Background(), pc)

	secret := base58.Encode(pair.PrivateKey)
	for _, output := range sink.outputs {
		if strings.Contains(output.Output, secret) {
			t.Fatalf("private key leaked into tool output")
		}
	}
	for _, text := range messenger.texts {
		if strings.Contains(text, secret) {
			t.Fatalf("private key leaked into user message")
		}
	}
}

func TestReporterAlertsOnPublishFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	reporter := NewResultReporter(&fakeToolSink{}, &fakeMessenger{}, WithAlerts(dispatcher))

	pc := &Context{
		ID:             "d1",
		ConversationID: "42",
		ToolCallID:     "call_1",
		Stage:          StageAborted,
		Err:            &StageError{Stage: StagePublishing, Code: CodePublishFailure, Cause: "launch rejected"},
	}
	reporter.Report(context.Background(), pc)

	if len(dispatcher.events) != 1 {
		t.Fatalf("expected one alert, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Code != CodePublishFailure || event.DeploymentID != "d1" || event.Stage != string(StagePublishing) {
		t.Fatalf("unexpected alert event: %+v", event)
	}

	// 普通失败不应触发告警。
	dispatcher.events = nil
	pc.Err = &StageError{Stage: StageSearchingAddress, Code: CodeSearchExhausted, Cause: "exhausted"}
	reporter.Report(context.Background(), pc)
	if len(dispatcher.events) != 0 {
		t.Fatalf("search exhaustion must not raise an alert")
	}
}

func TestReporterSwallowsDeliveryFailures(t *testing.T) {
	sink := &fakeToolSink{err: errors.New("submit failed")}
	messenger := &fakeMessenger{err: errors.New("send failed")}
	reporter := NewResultReporter(sink, messenger)

	pc := &Context{
		ID:             "d1",
		ConversationID: "42",
		ToolCallID:     "call_1",
		Stage:          StageAborted,
		Err:            &StageError{Stage: StagePublishing, Code: CodePublishFailure, Cause: "boom"},
	}

	// 投递失败只记录日志，不得 panic 或向外传播。
	reporter.Report(context.Background(), pc)

	if sink.calls != 1 || len(messenger.texts) != 1 {
		t.Fatalf("delivery must be attempted exactly once each")
	}
}
