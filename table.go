package doctemplar

import (
	"errors"
	"fmt"
)

// NewTable создаёт таблицу rows×cols с равными ширинами колонок (в процентах).
func NewTable(p Placement, rows, cols int) *TableBlock {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	tb := &TableBlock{
		Placement:    p,
		Headers:      make([]string, cols),
		Rows:         make([][]string, rows),
		ColumnWidths: make([]float64, cols),
	}
	for i := range tb.Rows {
		tb.Rows[i] = make([]string, cols)
	}
	for i := range tb.ColumnWidths {
		tb.ColumnWidths[i] = 100 / float64(cols)
	}
	return tb
}

// NumCols — число колонок (по заголовкам, а при их отсутствии — по первой строке).
func (t *TableBlock) NumCols() int {
	n := len(t.Headers)
	if len(t.Rows) > 0 && len(t.Rows[0]) > n {
		n = len(t.Rows[0])
	}
	return n
}

// NumRows — число строк тела таблицы.
func (t *TableBlock) NumRows() int { return len(t.Rows) }

func totalWidth(ws []float64) float64 {
	var sum float64
	for _, w := range ws {
		sum += w
	}
	return sum
}

// AddColumn добавляет колонку в конец.
func (t *TableBlock) AddColumn(header string) *TableBlock {
	nb, _ := t.InsertColumn(t.NumCols(), header)
	return nb
}

// InsertColumn вставляет пустую колонку перед at. Суммарная ширина
// сохраняется: новая колонка получает total/(n+1), остальные сжимаются.
func (t *TableBlock) InsertColumn(at int, header string) (*TableBlock, error) {
	n := t.NumCols()
	if at < 0 || at > n {
		return t, fmt.Errorf("%w: колонка %d из %d", ErrOutOfRange, at, n)
	}
	nb := t.cloneTable()
	nb.Headers = insertString(padStrings(nb.Headers, n), at, header)
	for i, r := range nb.Rows {
		nb.Rows[i] = insertString(padStrings(r, n), at, "")
	}

	total := totalWidth(nb.ColumnWidths)
	if total <= 0 {
		total = 100
	}
	widths := make([]float64, 0, n+1)
	scale := float64(n) / float64(n+1)
	if len(nb.ColumnWidths) != n {
		nb.ColumnWidths = evenWidths(n, total)
	}
	for _, w := range nb.ColumnWidths[:at] {
		widths = append(widths, w*scale)
	}
	widths = append(widths, total/float64(n+1))
	for _, w := range nb.ColumnWidths[at:] {
		widths = append(widths, w*scale)
	}
	nb.ColumnWidths = widths

	nb.Merges = shiftMerges(nb.Merges, func(m MergeRegion) (MergeRegion, bool) {
		switch {
		case m.StartCol >= at:
			m.StartCol++
			m.EndCol++
		case m.EndCol >= at:
			m.EndCol++
		}
		return m, true
	})
	nb.Columns = insertColumnSpec(nb.Columns, at)
	return nb, nil
}

// RemoveColumn удаляет колонку at; последнюю колонку удалить нельзя.
func (t *TableBlock) RemoveColumn(at int) (*TableBlock, error) {
	n := t.NumCols()
	if n <= 1 {
		return t, ErrLastColumn
	}
	if at < 0 || at >= n {
		return t, fmt.Errorf("%w: колонка %d из %d", ErrOutOfRange, at, n)
	}
	nb := t.cloneTable()
	for i := range nb.Rows {
		nb.Rows[i] = padStrings(nb.Rows[i], n)
	}
	// Якорь в удаляемой колонке: содержимое переезжает в соседнюю ячейку региона.
	for _, m := range nb.Merges {
		if m.StartCol == at && m.EndCol > at {
			nb.Rows[m.StartRow][at+1] = nb.Rows[m.StartRow][at]
		}
	}
	nb.Headers = removeString(padStrings(nb.Headers, n), at)
	for i, r := range nb.Rows {
		nb.Rows[i] = removeString(padStrings(r, n), at)
	}
	if len(nb.ColumnWidths) == n {
		total := totalWidth(nb.ColumnWidths)
		rest := total - nb.ColumnWidths[at]
		widths := append(append([]float64(nil), nb.ColumnWidths[:at]...), nb.ColumnWidths[at+1:]...)
		if rest > 0 {
			for i := range widths {
				widths[i] *= total / rest
			}
		} else {
			widths = evenWidths(n-1, total)
		}
		nb.ColumnWidths = widths
	} else {
		nb.ColumnWidths = evenWidths(n-1, 100)
	}
	nb.Merges = shiftMerges(nb.Merges, func(m MergeRegion) (MergeRegion, bool) {
		switch {
		case m.StartCol > at:
			m.StartCol--
			m.EndCol--
		case m.EndCol >= at:
			m.EndCol--
		}
		return m, m.EndCol >= m.StartCol
	})
	if at < len(nb.Columns) {
		nb.Columns = append(nb.Columns[:at:at], nb.Columns[at+1:]...)
	}
	return nb, nil
}

// AddRow добавляет пустую строку в конец.
func (t *TableBlock) AddRow() *TableBlock {
	nb, _ := t.InsertRow(t.NumRows())
	return nb
}

// InsertRow вставляет пустую строку перед at.
func (t *TableBlock) InsertRow(at int) (*TableBlock, error) {
	n := t.NumRows()
	if at < 0 || at > n {
		return t, fmt.Errorf("%w: строка %d из %d", ErrOutOfRange, at, n)
	}
	nb := t.cloneTable()
	row := make([]string, t.NumCols())
	rows := make([][]string, 0, n+1)
	rows = append(rows, nb.Rows[:at]...)
	rows = append(rows, row)
	rows = append(rows, nb.Rows[at:]...)
	nb.Rows = rows
	nb.Merges = shiftMerges(nb.Merges, func(m MergeRegion) (MergeRegion, bool) {
		switch {
		case m.StartRow >= at:
			m.StartRow++
			m.EndRow++
		case m.EndRow >= at:
			m.EndRow++
		}
		return m, true
	})
	return nb, nil
}

// RemoveRow удаляет строку at; последнюю строку удалить нельзя.
func (t *TableBlock) RemoveRow(at int) (*TableBlock, error) {
	n := t.NumRows()
	if n <= 1 {
		return t, ErrLastRow
	}
	if at < 0 || at >= n {
		return t, fmt.Errorf("%w: строка %d из %d", ErrOutOfRange, at, n)
	}
	nb := t.cloneTable()
	cols := t.NumCols()
	// Если удаляется строка якоря, содержимое переезжает на новую верхнюю строку региона.
	for _, m := range nb.Merges {
		if m.StartRow == at && m.EndRow > at {
			nb.Rows[at] = padStrings(nb.Rows[at], cols)
			nb.Rows[at+1] = padStrings(nb.Rows[at+1], cols)
			nb.Rows[at+1][m.StartCol] = nb.Rows[at][m.StartCol]
		}
	}
	nb.Rows = append(nb.Rows[:at:at], nb.Rows[at+1:]...)
	nb.Merges = shiftMerges(nb.Merges, func(m MergeRegion) (MergeRegion, bool) {
		switch {
		case m.StartRow > at:
			m.StartRow--
			m.EndRow--
		case m.EndRow >= at:
			m.EndRow--
		}
		return m, m.EndRow >= m.StartRow
	})
	return nb, nil
}

// SetCell записывает текст в ячейку тела. Внутренние ячейки региона
// (кроме якоря) самостоятельно не редактируются.
func (t *TableBlock) SetCell(r, c int, text string) (*TableBlock, error) {
	if !t.inBounds(r, c) {
		return t, fmt.Errorf("%w: ячейка (%d,%d)", ErrOutOfRange, r, c)
	}
	if t.Covered(r, c) {
		return t, fmt.Errorf("%w: (%d,%d)", ErrCellCovered, r, c)
	}
	nb := t.cloneTable()
	nb.Rows[r] = padStrings(nb.Rows[r], t.NumCols())
	nb.Rows[r][c] = text
	return nb, nil
}

// SetHeader записывает текст заголовка колонки c.
func (t *TableBlock) SetHeader(c int, text string) (*TableBlock, error) {
	n := t.NumCols()
	if c < 0 || c >= n {
		return t, fmt.Errorf("%w: колонка %d из %d", ErrOutOfRange, c, n)
	}
	nb := t.cloneTable()
	nb.Headers = padStrings(nb.Headers, n)
	nb.Headers[c] = text
	return nb, nil
}

// SetColumnWidth задаёт ширину колонки (проценты, без нормализации).
func (t *TableBlock) SetColumnWidth(c int, w float64) (*TableBlock, error) {
	n := t.NumCols()
	if c < 0 || c >= n || w <= 0 {
		return t, fmt.Errorf("%w: ширина колонки %d = %v", ErrOutOfRange, c, w)
	}
	nb := t.cloneTable()
	if len(nb.ColumnWidths) != n {
		nb.ColumnWidths = evenWidths(n, 100)
	}
	nb.ColumnWidths[c] = w
	return nb, nil
}

// SetFormula объявляет колонку c вычисляемой. Пустая формула снимает вычисление.
func (t *TableBlock) SetFormula(c int, key, formula string) (*TableBlock, error) {
	n := t.NumCols()
	if c < 0 || c >= n {
		return t, fmt.Errorf("%w: колонка %d из %d", ErrOutOfRange, c, n)
	}
	if formula != "" {
		if _, err := CompileFormula(formula); err != nil {
			return t, err
		}
	}
	nb := t.cloneTable()
	for len(nb.Columns) < n {
		nb.Columns = append(nb.Columns, Column{Key: fmt.Sprintf("col%d", len(nb.Columns)+1)})
	}
	if key != "" {
		nb.Columns[c].Key = key
	}
	nb.Columns[c].Formula = formula
	return nb, nil
}

// Validate проверяет структурные инварианты таблицы.
func (t *TableBlock) Validate() error {
	n := t.NumCols()
	var errs []error
	if n == 0 {
		errs = append(errs, errors.New("таблица без колонок"))
	}
	if len(t.Headers) != n {
		errs = append(errs, fmt.Errorf("заголовков %d, колонок %d", len(t.Headers), n))
	}
	if len(t.ColumnWidths) != n {
		errs = append(errs, fmt.Errorf("ширин %d, колонок %d", len(t.ColumnWidths), n))
	}
	if len(t.Rows) == 0 {
		errs = append(errs, errors.New("таблица без строк"))
	}
	for i, r := range t.Rows {
		if len(r) != n {
			errs = append(errs, fmt.Errorf("строка %d: %d ячеек, ожидалось %d", i, len(r), n))
		}
	}
	for i, m := range t.Merges {
		if m.StartRow < 0 || m.StartCol < 0 || m.EndRow >= len(t.Rows) || m.EndCol >= n ||
			m.StartRow > m.EndRow || m.StartCol > m.EndCol {
			errs = append(errs, fmt.Errorf("регион %d вне таблицы: %+v", i, m))
		}
		for j := i + 1; j < len(t.Merges); j++ {
			if m.Overlaps(t.Merges[j]) {
				errs = append(errs, fmt.Errorf("регионы %d и %d пересекаются", i, j))
			}
		}
	}
	if len(t.Columns) > n {
		errs = append(errs, fmt.Errorf("объявлено %d вычисляемых колонок, колонок %d", len(t.Columns), n))
	}
	return errors.Join(errs...)
}

func (t *TableBlock) inBounds(r, c int) bool {
	return r >= 0 && r < len(t.Rows) && c >= 0 && c < t.NumCols()
}

// cell — текст ячейки; в коротких строках недостающие ячейки пусты.
func (t *TableBlock) cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][c]
}

func shiftMerges(ms []MergeRegion, fn func(MergeRegion) (MergeRegion, bool)) []MergeRegion {
	out := make([]MergeRegion, 0, len(ms))
	for _, m := range ms {
		nm, keep := fn(m)
		if keep && !nm.single() {
			out = append(out, nm)
		}
	}
	return out
}

func insertColumnSpec(cols []Column, at int) []Column {
	if at >= len(cols) {
		return cols
	}
	out := make([]Column, 0, len(cols)+1)
	out = append(out, cols[:at]...)
	out = append(out, Column{Key: fmt.Sprintf("col%d", at+1)})
	return append(out, cols[at:]...)
}

func evenWidths(n int, total float64) []float64 {
	ws := make([]float64, n)
	for i := range ws {
		ws[i] = total / float64(n)
	}
	return ws
}

func padStrings(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}

func insertString(s []string, at int, v string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, v)
	return append(out, s[at:]...)
}

func removeString(s []string, at int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:at]...)
	return append(out, s[at+1:]...)
}
