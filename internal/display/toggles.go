// Package display は画面表示用の整形（連絡先のぼかし、職種ラベル、カード）と
// 連絡先の表示切り替え状態を扱う。
package display

import "sync"

// Toggles は連絡先フィールドごとの表示切り替え状態。
// 電話番号は提供者ごと、メールアドレスは1つのフラグで切り替える。
// 他のコンポーネントの状態には依存しない。
type Toggles struct {
	mu     sync.Mutex
	phones map[string]bool
	email  bool
}

// NewToggles はすべて非表示の Toggles を返す。
func NewToggles() *Toggles {
	return &Toggles{phones: make(map[string]bool)}
}

// TogglePhone は指定した提供者の電話番号の表示を切り替え、切り替え後の状態を返す。
func (t *Toggles) TogglePhone(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phones[userID] = !t.phones[userID]
	return t.phones[userID]
}

// PhoneVisible は指定した提供者の電話番号が表示中かを返す。
func (t *Toggles) PhoneVisible(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phones[userID]
}

// ToggleEmail はメールアドレスの表示を切り替え、切り替え後の状態を返す。
func (t *Toggles) ToggleEmail() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.email = !t.email
	return t.email
}

// EmailVisible はメールアドレスが表示中かを返す。
func (t *Toggles) EmailVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.email
}

// Reset はすべて非表示に戻す。
func (t *Toggles) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phones = make(map[string]bool)
	t.email = false
}
