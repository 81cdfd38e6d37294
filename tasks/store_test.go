package tasks

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func datePtr(y int, m time.Month, d int) *time.Time {
	dt := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &dt
}

func TestAddAndList(t *testing.T) {
	s := openTestStore(t)

	if _, dup, err := s.Add("Call mom", datePtr(2025, time.June, 16)); err != nil || dup {
		t.Fatalf("Add: dup=%v err=%v", dup, err)
	}
	if _, dup, err := s.Add("Buy milk", nil); err != nil || dup {
		t.Fatalf("Add: dup=%v err=%v", dup, err)
	}

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(got))
	}
	// Dated task sorts before the undated one.
	if got[0].Title != "Call mom" || got[1].Title != "Buy milk" {
		t.Errorf("order = [%s, %s], want dated first", got[0].Title, got[1].Title)
	}
	if got[0].Due == nil || got[1].Due != nil {
		t.Error("due dates not round-tripped")
	}
}

func TestAddRejectsEmptyTitle(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.Add("   ", nil); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestDedupSameDay(t *testing.T) {
	s := openTestStore(t)

	if _, dup, _ := s.Add("Submit report", datePtr(2025, time.June, 15)); dup {
		t.Fatal("first insert flagged as duplicate")
	}
	// Same title, same calendar day, different case: duplicate.
	if _, dup, err := s.Add("submit report", datePtr(2025, time.June, 15)); err != nil || !dup {
		t.Errorf("same-day re-add: dup=%v err=%v, want dup=true", dup, err)
	}
	// Same title, different day: not a duplicate.
	if _, dup, err := s.Add("Submit report", datePtr(2025, time.June, 22)); err != nil || dup {
		t.Errorf("different-day add: dup=%v err=%v, want dup=false", dup, err)
	}

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("store holds %d tasks, want 2", len(got))
	}
}

func TestDedupUndated(t *testing.T) {
	s := openTestStore(t)
	s.Add("Water plants", nil)
	if _, dup, _ := s.Add("water plants", nil); !dup {
		t.Error("undated duplicate not detected")
	}
	if _, dup, _ := s.Add("Water plants", datePtr(2025, time.June, 15)); dup {
		t.Error("dated task wrongly deduped against undated one")
	}
}

func TestListOrdering(t *testing.T) {
	s := openTestStore(t)
	s.Add("later", datePtr(2025, time.July, 1))
	s.Add("sooner", datePtr(2025, time.June, 12))
	s.Add("undated", nil)

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sooner", "later", "undated"}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("List[%d] = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestDueLabel(t *testing.T) {
	undated := Task{Title: "x"}
	if undated.DueLabel() != "" {
		t.Errorf("undated DueLabel = %q, want empty", undated.DueLabel())
	}
	dated := Task{Title: "x", Due: datePtr(2025, time.June, 16)}
	if dated.DueLabel() != "Mon Jun 16" {
		t.Errorf("DueLabel = %q", dated.DueLabel())
	}
}
