package search

// TotalPages は件数nをページサイズsizeで割った切り上げを返す。n が 0 なら 0。
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ClampPage はページ番号を [1, totalPages] に収める。
// totalPages が 0 の場合は 1 を返す。
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// PageSlice は1始まりのページ番号に対応する要素を返す。範囲外なら空。
func PageSlice[T any](items []T, page, size int) []T {
	if size <= 0 || page < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}
