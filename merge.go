package doctemplar

import "strings"

// Contains сообщает, входит ли ячейка (r,c) в регион.
func (m MergeRegion) Contains(r, c int) bool {
	return r >= m.StartRow && r <= m.EndRow && c >= m.StartCol && c <= m.EndCol
}

// Overlaps сообщает, пересекаются ли регионы хотя бы одной ячейкой.
func (m MergeRegion) Overlaps(o MergeRegion) bool {
	return m.StartRow <= o.EndRow && o.StartRow <= m.EndRow &&
		m.StartCol <= o.EndCol && o.StartCol <= m.EndCol
}

// Union — минимальный прямоугольник, охватывающий оба региона.
func (m MergeRegion) Union(o MergeRegion) MergeRegion {
	return MergeRegion{
		StartRow: min(m.StartRow, o.StartRow),
		StartCol: min(m.StartCol, o.StartCol),
		EndRow:   max(m.EndRow, o.EndRow),
		EndCol:   max(m.EndCol, o.EndCol),
	}
}

// RowSpan и ColSpan — высота и ширина региона в ячейках.
func (m MergeRegion) RowSpan() int { return m.EndRow - m.StartRow + 1 }
func (m MergeRegion) ColSpan() int { return m.EndCol - m.StartCol + 1 }

func (m MergeRegion) single() bool { return m.StartRow == m.EndRow && m.StartCol == m.EndCol }

func (m MergeRegion) normalize() MergeRegion {
	if m.StartRow > m.EndRow {
		m.StartRow, m.EndRow = m.EndRow, m.StartRow
	}
	if m.StartCol > m.EndCol {
		m.StartCol, m.EndCol = m.EndCol, m.StartCol
	}
	return m
}

// RegionAt возвращает регион, содержащий ячейку (r,c).
func (t *TableBlock) RegionAt(r, c int) (MergeRegion, bool) {
	for _, m := range t.Merges {
		if m.Contains(r, c) {
			return m, true
		}
	}
	return MergeRegion{}, false
}

// Covered — ячейка лежит внутри региона и не является его якорем.
func (t *TableBlock) Covered(r, c int) bool {
	m, ok := t.RegionAt(r, c)
	return ok && (m.StartRow != r || m.StartCol != c)
}

// Merge объединяет прямоугольник rng. Непустые ячейки склеиваются через пробел
// (построчно) в якорь, остальные очищаются. Пересекающиеся регионы поглощаются
// объединением, поэтому регионы таблицы никогда не пересекаются.
func (t *TableBlock) Merge(rng MergeRegion) *TableBlock {
	rng = rng.normalize()
	rows, cols := t.NumRows(), t.NumCols()
	if rows == 0 || cols == 0 {
		return t
	}
	rng.StartRow = clamp(rng.StartRow, 0, rows-1)
	rng.EndRow = clamp(rng.EndRow, 0, rows-1)
	rng.StartCol = clamp(rng.StartCol, 0, cols-1)
	rng.EndCol = clamp(rng.EndCol, 0, cols-1)
	if rng.single() {
		return t
	}

	// Поглощаем пересечения до неподвижной точки: расширенный регион может
	// задеть ещё один.
	rest := append([]MergeRegion(nil), t.Merges...)
	for {
		absorbed := false
		kept := rest[:0:0]
		for _, m := range rest {
			if m.Overlaps(rng) {
				rng = rng.Union(m)
				absorbed = true
				continue
			}
			kept = append(kept, m)
		}
		rest = kept
		if !absorbed {
			break
		}
	}

	nb := t.cloneTable()
	var parts []string
	for r := rng.StartRow; r <= rng.EndRow; r++ {
		nb.Rows[r] = padStrings(nb.Rows[r], cols)
		for c := rng.StartCol; c <= rng.EndCol; c++ {
			if v := nb.Rows[r][c]; strings.TrimSpace(v) != "" {
				parts = append(parts, v)
			}
			nb.Rows[r][c] = ""
		}
	}
	nb.Rows[rng.StartRow][rng.StartCol] = strings.Join(parts, " ")
	nb.Merges = append(rest, rng)
	return nb
}

// Split разбивает регион, якорем которого является (r,c). Все ячейки бывшего
// региона становятся самостоятельными и пустыми. Второй результат — был ли
// регион найден.
func (t *TableBlock) Split(r, c int) (*TableBlock, bool) {
	for i, m := range t.Merges {
		if m.StartRow != r || m.StartCol != c {
			continue
		}
		nb := t.cloneTable()
		nb.Merges = append(nb.Merges[:i:i], nb.Merges[i+1:]...)
		for rr := m.StartRow; rr <= m.EndRow && rr < len(nb.Rows); rr++ {
			for cc := m.StartCol; cc <= m.EndCol && cc < len(nb.Rows[rr]); cc++ {
				nb.Rows[rr][cc] = ""
			}
		}
		return nb, true
	}
	return t, false
}

// GridCell — ячейка раскладки для отрисовки.
type GridCell struct {
	Row     int
	Col     int
	RowSpan int
	ColSpan int
	// Covered — ячейка поглощена регионом и не рисуется отдельно.
	Covered bool
	Text    string
}

// Layout строит сетку тела таблицы с учётом объединений.
func (t *TableBlock) Layout() [][]GridCell {
	cols := t.NumCols()
	grid := make([][]GridCell, len(t.Rows))
	for r := range t.Rows {
		grid[r] = make([]GridCell, cols)
		for c := 0; c < cols; c++ {
			cell := GridCell{Row: r, Col: c, RowSpan: 1, ColSpan: 1}
			if c < len(t.Rows[r]) {
				cell.Text = t.Rows[r][c]
			}
			grid[r][c] = cell
		}
	}
	for _, m := range t.Merges {
		for r := m.StartRow; r <= m.EndRow && r < len(grid); r++ {
			for c := m.StartCol; c <= m.EndCol && c < cols; c++ {
				if r == m.StartRow && c == m.StartCol {
					grid[r][c].RowSpan = m.RowSpan()
					grid[r][c].ColSpan = m.ColSpan()
					continue
				}
				grid[r][c].Covered = true
				grid[r][c].Text = ""
			}
		}
	}
	return grid
}

// HeaderStyleOr возвращает стиль заголовков таблицы или стиль по умолчанию.
func (t *TableBlock) HeaderStyleOr(def CellStyle) CellStyle {
	if t.HeaderStyle != nil {
		return *t.HeaderStyle
	}
	return def
}

// -----------------------------
// Операции над схемой по id блока
// -----------------------------

// MergeCells объединяет диапазон в таблице id.
func (s Schema) MergeCells(id string, rng MergeRegion) (Schema, error) {
	return s.UpdateTable(id, func(tb *TableBlock) (*TableBlock, error) {
		return tb.Merge(rng), nil
	})
}

// SplitCell разбивает регион с якорем (r,c); без региона схема не меняется.
func (s Schema) SplitCell(id string, r, c int) (Schema, error) {
	return s.UpdateTable(id, func(tb *TableBlock) (*TableBlock, error) {
		nb, _ := tb.Split(r, c)
		return nb, nil
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
