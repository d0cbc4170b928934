package search

import "testing"

// 下書きをリセットしても適用済みは変わらないこと
func TestFilterState_ResetDraftLeavesAppliedUnchanged(t *testing.T) {
	var s FilterState
	s.SetDraft(Criteria{Trade: "peintre", MinRating: 3})
	s.ApplyDraft()

	s.OpenPanel()
	s.SetDraft(Criteria{Trade: "plombier", Mobile: true})
	s.ResetDraft()

	want := Criteria{Trade: "peintre", MinRating: 3}
	if s.Applied() != want {
		t.Errorf("Applied() = %+v, want %+v", s.Applied(), want)
	}
	if s.Draft() != (Criteria{}) {
		t.Errorf("Draft() がデフォルトに戻っていません: %+v", s.Draft())
	}
	if s.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", s.ActiveCount())
	}
}

func TestFilterState_DraftDoesNotAffectAppliedUntilApply(t *testing.T) {
	var s FilterState
	s.OpenPanel()
	s.SetDraft(Criteria{City: "Lyon"})

	if s.Applied() != (Criteria{}) {
		t.Fatalf("Apply前に適用済みが変化しました: %+v", s.Applied())
	}

	if changed := s.ApplyDraft(); !changed {
		t.Error("ApplyDraft() = false, want true")
	}
	if s.Applied().City != "Lyon" {
		t.Errorf("Applied().City = %q, want %q", s.Applied().City, "Lyon")
	}
	if s.PanelOpen() {
		t.Error("Apply後もパネルが開いています")
	}
}

func TestFilterState_OpenPanelReseedsDraft(t *testing.T) {
	var s FilterState
	s.SetDraft(Criteria{Trade: "macon"})
	s.ApplyDraft()

	s.SetDraft(Criteria{Trade: "electricien"})
	s.OpenPanel()

	if s.Draft().Trade != "macon" {
		t.Errorf("Draft().Trade = %q, want %q", s.Draft().Trade, "macon")
	}
}

func TestFilterState_RemoveApplied(t *testing.T) {
	var s FilterState
	s.Seed(Criteria{Trade: "macon", Available: true})

	before := s.ActiveCount()
	if changed := s.RemoveApplied(KeyAvailable); !changed {
		t.Error("RemoveApplied() = false, want true")
	}
	if s.ActiveCount() != before-1 {
		t.Errorf("ActiveCount() = %d, want %d", s.ActiveCount(), before-1)
	}
	if s.Applied().Trade != "macon" {
		t.Error("外していないフィールドが変化しました")
	}

	if changed := s.RemoveApplied(KeyAvailable); changed {
		t.Error("2回目の RemoveApplied() = true, want false")
	}
}

func TestFilterState_ClearApplied(t *testing.T) {
	var s FilterState
	s.Seed(Criteria{Trade: "macon"})

	if !s.ClearApplied() {
		t.Error("ClearApplied() = false, want true")
	}
	if s.Applied() != (Criteria{}) || s.Draft() != (Criteria{}) {
		t.Error("ClearApplied() の後に条件が残っています")
	}
}
