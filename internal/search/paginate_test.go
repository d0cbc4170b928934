package search

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 9, 0},
		{1, 9, 1},
		{9, 9, 1},
		{10, 9, 2},
		{18, 9, 2},
		{19, 9, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.n, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, total, want int
	}{
		{1, 0, 1},
		{0, 3, 1},
		{-5, 3, 1},
		{2, 3, 2},
		{7, 3, 3},
	}
	for _, tt := range tests {
		if got := ClampPage(tt.page, tt.total); got != tt.want {
			t.Errorf("ClampPage(%d, %d) = %d, want %d", tt.page, tt.total, got, tt.want)
		}
	}
}

func TestPageSlice(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	first := PageSlice(items, 1, 9)
	if len(first) != 9 || first[0] != 0 {
		t.Errorf("1ページ目が不正: %v", first)
	}
	last := PageSlice(items, 3, 9)
	if len(last) != 2 || last[0] != 18 {
		t.Errorf("最終ページが不正: %v", last)
	}
	if got := PageSlice(items, 4, 9); len(got) != 0 {
		t.Errorf("範囲外のページで要素が返されました: %v", got)
	}
	if got := PageSlice([]int{}, 1, 9); len(got) != 0 {
		t.Errorf("空の一覧で要素が返されました: %v", got)
	}
}

// 全ページを連結すると元の一覧になること
func TestPageSlice_CoversAllItems(t *testing.T) {
	for n := 0; n <= 30; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		var joined []int
		for p := 1; p <= TotalPages(n, 9); p++ {
			joined = append(joined, PageSlice(items, p, 9)...)
		}
		if len(joined) != n {
			t.Errorf("n=%d: 連結後の件数 = %d", n, len(joined))
		}
	}
}
