// Package optimistic は楽観的更新のための2相（確定値と仮の値）の入れ物を提供する。
package optimistic

// Token は Begin で開始した1回の楽観的更新を識別する。
type Token uint64

// Tracked は確定値と、確定待ちの楽観値を保持する。
// ゼロ値は確定値がゼロ値で、確定待ちの更新が無い状態。
// 並行アクセスの保護は呼び出し側で行う。
type Tracked[T any] struct {
	confirmed T
	pending   *T
	current   Token
}

// New は確定値vで初期化したTrackedを返す。
func New[T any](v T) *Tracked[T] {
	return &Tracked[T]{confirmed: v}
}

// Begin は楽観値nextを設定し、その更新を識別するトークンを返す。
// 確定前に別の Begin が呼ばれた場合、古いトークンは無効になる。
func (t *Tracked[T]) Begin(next T) Token {
	t.current++
	t.pending = &next
	return t.current
}

// Commit は更新を確定する。サーバーが返した値を confirmed に渡す。
// トークンが最新でない場合は何もせず false を返す。
func (t *Tracked[T]) Commit(tok Token, confirmed T) bool {
	if tok != t.current || t.pending == nil {
		return false
	}
	t.confirmed = confirmed
	t.pending = nil
	return true
}

// Rollback は楽観値を破棄して確定値に戻す。
// トークンが最新でない場合は何もせず false を返す。
func (t *Tracked[T]) Rollback(tok Token) bool {
	if tok != t.current || t.pending == nil {
		return false
	}
	t.pending = nil
	return true
}

// Optimistic は表示用の値を返す。確定待ちがあれば楽観値、無ければ確定値。
func (t *Tracked[T]) Optimistic() T {
	if t.pending != nil {
		return *t.pending
	}
	return t.confirmed
}

// Confirmed はサーバーが確定した値を返す。
func (t *Tracked[T]) Confirmed() T {
	return t.confirmed
}

// Pending は確定待ちの更新があるかを返す。
func (t *Tracked[T]) Pending() bool {
	return t.pending != nil
}

// Reset は確定待ちを破棄し、確定値をvで置き換える。サーバーから再取得したときに使う。
func (t *Tracked[T]) Reset(v T) {
	t.confirmed = v
	t.pending = nil
	t.current++
}
