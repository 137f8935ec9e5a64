package events

import (
	"context"
	"testing"
)

func TestMemorySinkPublishAndConsume(t *testing.T) {
	sink := NewMemorySink(4)
	defer sink.Close()

	events := []Event{
		{Type: TypeStage, DeploymentID: "d1", Stage: "CheckingFunds"},
		{Type: TypeTerminal, DeploymentID: "d1", Stage: "Done", DeployURL: "https://pump.fun/abc"},
	}
	for _, event := range events {
		if err := sink.Publish(context.Background(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	first := <-sink.Events()
	if first.Type != TypeStage || first.Stage != "CheckingFunds" {
		t.Fatalf("unexpected event: %+v", first)
	}
	second := <-sink.Events()
	if second.Type != TypeTerminal || second.DeployURL != "https://pump.fun/abc" {
		t.Fatalf("unexpected event: %+v", second)
	}
}

func TestMemorySinkDropsOldestWhenFull(t *testing.T) {
	sink := NewMemorySink(1)
	defer sink.Close()

	if err := sink.Publish(context.Background(), Event{DeploymentID: "old"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Publish(context.Background(), Event{DeploymentID: "new"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := <-sink.Events()
	if event.DeploymentID != "new" {
		t.Fatalf("expected newest event to survive, got %s", event.DeploymentID)
	}
}

func TestMemorySinkPublishAfterClose(t *testing.T) {
	sink := NewMemorySink(1)
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Publish(context.Background(), Event{DeploymentID: "late"}); err != nil {
		t.Fatalf("publish after close should be a no-op, got %v", err)
	}
}
