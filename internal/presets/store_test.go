package presets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shalyse/internal/domain"
)

func TestStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets", "presets.json")
	s := NewStore(path, nil)

	monthly := domain.Scenario{Initial: 10000, Topup: 500, Period: 30, Horizon: 10}
	if err := s.Set("monthly", monthly); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("lump", domain.Scenario{Initial: 5000, Horizon: 5}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded := NewStore(path, nil)
	got, ok := reloaded.Get("monthly")
	if !ok || got != monthly {
		t.Fatalf("reloaded preset = %+v, %v; want %+v", got, ok, monthly)
	}
	if names := reloaded.Names(); len(names) != 2 || names[0] != "lump" {
		t.Errorf("Names = %v, want [lump monthly]", names)
	}

	existed, err := reloaded.Delete("lump")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	if existed, _ := reloaded.Delete("lump"); existed {
		t.Error("second Delete should report missing")
	}
	if _, ok := NewStore(path, nil).Get("lump"); ok {
		t.Error("deleted preset came back after reload")
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := NewStore("", nil)
	if err := s.Set("  ", domain.Scenario{Horizon: 1}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("blank name error = %v", err)
	}
	if err := s.Set("bad", domain.Scenario{Initial: -1, Horizon: 1}); !errors.Is(err, domain.ErrInvalidScenario) {
		t.Errorf("invalid scenario error = %v", err)
	}
	if len(s.Snapshot()) != 0 {
		t.Error("rejected presets must not be stored")
	}
}

func TestStoreKeepsStateWhenFlushFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewStore(filepath.Join(blocker, "presets.json"), nil)
	orig := domain.Scenario{Initial: 1000, Horizon: 1}
	s.Seed("default", orig)

	if err := s.Set("default", domain.Scenario{Initial: 9, Horizon: 9}); err == nil {
		t.Fatal("expected Set to fail")
	}
	if got, _ := s.Get("default"); got != orig {
		t.Errorf("default = %+v after failed Set, want %+v", got, orig)
	}

	if err := s.Set("fresh", orig); err == nil {
		t.Fatal("expected Set to fail")
	}
	if _, ok := s.Get("fresh"); ok {
		t.Error("failed Set must not add the preset")
	}

	if _, err := s.Delete("default"); err == nil {
		t.Fatal("expected Delete to fail")
	}
	if got, ok := s.Get("default"); !ok || got != orig {
		t.Errorf("default = %+v, %v after failed Delete", got, ok)
	}
}

func TestStoreSeed(t *testing.T) {
	s := NewStore("", nil)
	s.Seed("default", domain.Scenario{Initial: 1, Horizon: 1})
	s.Seed("default", domain.Scenario{Initial: 2, Horizon: 1})
	if got, _ := s.Get("default"); got.Initial != 1 {
		t.Errorf("Seed overwrote an existing preset: %+v", got)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore("", nil)
	s.Seed("a", domain.Scenario{Initial: 1, Horizon: 1})

	id, ch := s.Subscribe(4)
	first := <-ch
	if first.Type != "snapshot" || len(first.Data) != 1 {
		t.Fatalf("first event = %+v, want snapshot of 1", first)
	}

	if err := s.Set("b", domain.Scenario{Initial: 2, Horizon: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev := <-ch
	if ev.Type != "set" || ev.Name != "b" || ev.Scenario == nil || ev.Scenario.Horizon != 2 {
		t.Errorf("set event = %+v", ev)
	}

	if _, err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ev := <-ch; ev.Type != "delete" || ev.Name != "a" {
		t.Errorf("delete event = %+v", ev)
	}

	s.Unsubscribe(id)
	if _, open := <-ch; open {
		t.Error("channel should be closed after Unsubscribe")
	}
}
