package mysql

import (
	"context"
	"testing"
)

func TestMemoryDeploymentRepositorySaveAndList(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewMemoryDeploymentRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := []DeploymentRecord{
		{ID: "d1", UserID: "42", State: "Reporting", DeployURL: "https://pump.fun/abc", CreatedAt: 1},
		{ID: "d2", UserID: "42", State: "Aborted", FailedStage: "CheckingFunds", ErrorCode: "INSUFFICIENT_FUNDS", CreatedAt: 2},
	}
	for _, record := range records {
		if err := repo.Save(context.Background(), record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	latest, err := repo.ListLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("unexpected record count: %d", len(latest))
	}
	if latest[0].ID != "d2" || latest[1].ID != "d1" {
		t.Fatalf("unexpected order: %s, %s", latest[0].ID, latest[1].ID)
	}

	// 重新打开仓库应能从磁盘恢复。
	restored, err := NewMemoryDeploymentRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recovered, err := restored.ListLatest(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recovered) != 1 || recovered[0].ID != "d2" {
		t.Fatalf("unexpected recovered records: %+v", recovered)
	}
}

func TestMemoryDeploymentRepositoryListLimit(t *testing.T) {
	repo, err := NewMemoryDeploymentRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := repo.Save(context.Background(), DeploymentRecord{ID: string(rune('a' + i)), State: "Reporting"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	latest, err := repo.ListLatest(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(latest) != 3 {
		t.Fatalf("unexpected record count: %d", len(latest))
	}
}
