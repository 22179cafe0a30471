package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"updown_go/internal/domain"
)

func TestStateFile_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	sf := NewStateFile(filepath.Join(dir, "state.json"))

	st := domain.NewPositionState(testMarket())
	if err := sf.Save(st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStateFile_HumanInspectable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sf := NewStateFile(path)

	if err := sf.Save(domain.NewPositionState(testMarket())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "\"schema_version\": 1") {
		t.Errorf("missing schema version tag in: %s", text)
	}
	if !strings.Contains(text, "\"status\": \"FLAT\"") {
		t.Errorf("missing readable status in: %s", text)
	}
}

func TestStateFile_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "state.json")
	sf := NewStateFile(path)

	if err := sf.Save(domain.NewPositionState(testMarket())); err != nil {
		t.Fatalf("Save into nested dir failed: %v", err)
	}
	if _, err := sf.Load(); err != nil {
		t.Fatalf("Load after nested save failed: %v", err)
	}
}
