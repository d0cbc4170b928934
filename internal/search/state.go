package search

// FilterState は適用済みと下書きの2つのフィルタ条件を保持する。
// 下書きは Apply するまで表示結果に影響しない。
type FilterState struct {
	applied   Criteria
	draft     Criteria
	panelOpen bool
}

// Applied は適用済みの条件を返す。
func (s *FilterState) Applied() Criteria { return s.applied }

// Draft は下書きの条件を返す。
func (s *FilterState) Draft() Criteria { return s.draft }

// PanelOpen はフィルタパネルが開いているかを返す。
func (s *FilterState) PanelOpen() bool { return s.panelOpen }

// ActiveCount は適用済み条件のうちデフォルトと異なるものの数。
func (s *FilterState) ActiveCount() int { return s.applied.ActiveCount() }

// OpenPanel はパネルを開き、下書きを適用済みの条件で初期化し直す。
func (s *FilterState) OpenPanel() {
	s.panelOpen = true
	s.draft = s.applied
}

// ClosePanel は下書きを破棄せずにパネルを閉じる。
func (s *FilterState) ClosePanel() {
	s.panelOpen = false
}

// SetDraft は下書きを置き換える。
func (s *FilterState) SetDraft(c Criteria) {
	s.draft = c
}

// ApplyDraft は下書きを適用済みにコピーしてパネルを閉じる。
// 適用済みの条件が変わった場合は true を返す。
func (s *FilterState) ApplyDraft() bool {
	changed := s.applied != s.draft
	s.applied = s.draft
	s.panelOpen = false
	return changed
}

// ResetDraft は下書きだけをデフォルトに戻す。適用済みは変更しない。
func (s *FilterState) ResetDraft() {
	s.draft = Criteria{}
}

// RemoveApplied は適用済み条件の1フィールドだけをデフォルトに戻す。
// 適用済みの条件が変わった場合は true を返す。
func (s *FilterState) RemoveApplied(key FilterKey) bool {
	next := s.applied.Remove(key)
	changed := next != s.applied
	s.applied = next
	return changed
}

// ClearApplied は適用済みと下書きの両方をデフォルトに戻す。
func (s *FilterState) ClearApplied() bool {
	changed := s.applied != Criteria{}
	s.applied = Criteria{}
	s.draft = Criteria{}
	return changed
}

// Seed は適用済みと下書きを指定の条件で置き換える。URLクエリからの初期化に使う。
func (s *FilterState) Seed(c Criteria) bool {
	changed := s.applied != c
	s.applied = c
	s.draft = c
	return changed
}
