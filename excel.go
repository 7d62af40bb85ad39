package doctemplar

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

// Экспорт подставленной схемы в книгу Excel. Это не печатная вёрстка:
// блоки просто идут сверху вниз на одном листе, таблицы сохраняют
// объединения ячеек и ширины колонок.

// ExportSheet — имя листа результата.
const ExportSheet = "Quote"

// ExportWorkbook переносит уже подставленную схему в новую книгу.
func ExportWorkbook(s Schema, cfg Config) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return nil, err
	}
	blocks := append([]Block(nil), s.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool {
		pi, pj := blocks[i].Place(), blocks[j].Place()
		if pi.Y != pj.Y {
			return pi.Y < pj.Y
		}
		return pi.X < pj.X
	})

	width := 1
	var widest *TableBlock
	for _, b := range blocks {
		if tb, ok := b.(*TableBlock); ok && tb.NumCols() > width {
			width = tb.NumCols()
			widest = tb
		}
	}
	if widest == nil {
		for _, b := range blocks {
			if tb, ok := b.(*TableBlock); ok {
				widest = tb
				break
			}
		}
	}
	if err := setColumnWidths(f, widest, width, cfg.ColumnBaseWidth); err != nil {
		return nil, err
	}

	styles := newStyleCache(f)
	row := 1
	for _, b := range blocks {
		var err error
		switch bb := b.(type) {
		case *TextBlock:
			row, err = writeText(f, styles, bb, row, width)
		case *TableBlock:
			row, err = writeTable(f, styles, bb, row, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("блок %s: %w", b.Place().ID, err)
		}
		row++ // пустая строка между блоками
	}
	return f, nil
}

func setColumnWidths(f *excelize.File, tb *TableBlock, width int, base float64) error {
	for c := 1; c <= width; c++ {
		name, err := excelize.ColumnNumberToName(c)
		if err != nil {
			return err
		}
		w := base / float64(width)
		if tb != nil && c-1 < len(tb.ColumnWidths) {
			if total := totalWidth(tb.ColumnWidths); total > 0 {
				w = tb.ColumnWidths[c-1] / total * base
			}
		}
		if err := f.SetColWidth(ExportSheet, name, name, w); err != nil {
			return err
		}
	}
	return nil
}

func writeText(f *excelize.File, styles *styleCache, b *TextBlock, row, width int) (int, error) {
	left, _ := excelize.CoordinatesToCellName(1, row)
	right, _ := excelize.CoordinatesToCellName(width, row)
	if err := f.SetCellValue(ExportSheet, left, ResolveText(b)); err != nil {
		return row, err
	}
	if width > 1 {
		if err := f.MergeCell(ExportSheet, left, right); err != nil {
			return row, err
		}
	}
	sid, err := styles.get(b.Style)
	if err != nil {
		return row, err
	}
	if err := f.SetCellStyle(ExportSheet, left, right, sid); err != nil {
		return row, err
	}
	return row + 1, nil
}

func writeTable(f *excelize.File, styles *styleCache, t *TableBlock, row int, cfg Config) (int, error) {
	cols := t.NumCols()
	headerStyle, err := styles.get(t.HeaderStyleOr(cfg.HeaderStyle))
	if err != nil {
		return row, err
	}
	for c := 0; c < cols; c++ {
		addr, _ := excelize.CoordinatesToCellName(c+1, row)
		h := ""
		if c < len(t.Headers) {
			h = t.Headers[c]
		}
		if err := f.SetCellValue(ExportSheet, addr, h); err != nil {
			return row, err
		}
		if err := f.SetCellStyle(ExportSheet, addr, addr, headerStyle); err != nil {
			return row, err
		}
	}
	bodyStart := row + 1
	cellStyle := 0
	if t.CellStyle != nil {
		if cellStyle, err = styles.get(*t.CellStyle); err != nil {
			return row, err
		}
	}
	for _, line := range t.Layout() {
		for _, cell := range line {
			addr, _ := excelize.CoordinatesToCellName(cell.Col+1, bodyStart+cell.Row)
			if !cell.Covered {
				if err := f.SetCellValue(ExportSheet, addr, cell.Text); err != nil {
					return row, err
				}
			}
			if cellStyle != 0 {
				if err := f.SetCellStyle(ExportSheet, addr, addr, cellStyle); err != nil {
					return row, err
				}
			}
		}
	}
	for _, m := range t.Merges {
		tl, _ := excelize.CoordinatesToCellName(m.StartCol+1, bodyStart+m.StartRow)
		br, _ := excelize.CoordinatesToCellName(m.EndCol+1, bodyStart+m.EndRow)
		if err := f.MergeCell(ExportSheet, tl, br); err != nil {
			return row, err
		}
	}
	return bodyStart + len(t.Rows), nil
}

// styleCache не даёт плодить одинаковые стили в книге.
type styleCache struct {
	f   *excelize.File
	ids map[TextStyle]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, ids: map[TextStyle]int{}}
}

func (c *styleCache) get(ts TextStyle) (int, error) {
	if id, ok := c.ids[ts]; ok {
		return id, nil
	}
	st := &excelize.Style{
		Font: &excelize.Font{Bold: ts.Bold, Italic: ts.Italic, Size: ts.FontSize, Color: ts.Color},
		Alignment: &excelize.Alignment{
			Horizontal: ts.Align,
			Vertical:   "center",
			WrapText:   true,
		},
	}
	if ts.Underline {
		st.Font.Underline = "single"
	}
	if ts.BackgroundColor != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{ts.BackgroundColor}}
	}
	id, err := c.f.NewStyle(st)
	if err != nil {
		return 0, err
	}
	c.ids[ts] = id
	return id, nil
}

// WriteWorkbook подставляет контекст в схему и сохраняет книгу в destPath.
func WriteWorkbook(destPath string, s Schema, ctx Context, r *Renderer) error {
	log.Printf("📊 Начинаем экспорт шаблона в Excel...")
	log.Printf("📄 Выходной файл: %s", destPath)
	log.Printf("📝 Блоков в шаблоне: %d", len(s.Blocks))
	startTime := time.Now()

	if r == nil {
		r = defaultRenderer
	}
	log.Printf("🔄 Подстановка данных...")
	resolved := r.Resolve(s, ctx)

	f, err := ExportWorkbook(resolved, r.Config())
	if err != nil {
		log.Printf("❌ Ошибка экспорта: %v", err)
		return err
	}
	defer f.Close()

	log.Printf("💾 Сохранение файла...")
	if err := f.SaveAs(destPath); err != nil {
		log.Printf("❌ Ошибка сохранения: %v", err)
		return err
	}
	log.Printf("✅ Excel файл создан за %v", time.Since(startTime))
	return nil
}

// ImportTable строит таблицу из листа книги: первая строка — заголовки,
// остальные — тело. Объединения тела переносятся, объединения заголовка
// отбрасываются. Ширины колонок пересчитываются в проценты.
func ImportTable(path, sheet string) (*TableBlock, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("лист %s пуст", sheet)
	}
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	tb := &TableBlock{Headers: padStrings(append([]string(nil), rows[0]...), cols)}
	for _, r := range rows[1:] {
		tb.Rows = append(tb.Rows, padStrings(append([]string(nil), r...), cols))
	}
	if len(tb.Rows) == 0 {
		tb.Rows = [][]string{make([]string, cols)}
	}

	widths := make([]float64, cols)
	for c := range widths {
		name, _ := excelize.ColumnNumberToName(c + 1)
		if w, err := f.GetColWidth(sheet, name); err == nil {
			widths[c] = w
		}
	}
	if total := totalWidth(widths); total > 0 {
		for c := range widths {
			widths[c] = widths[c] / total * 100
		}
	} else {
		widths = evenWidths(cols, 100)
	}
	tb.ColumnWidths = widths

	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	for _, m := range merges {
		sc, sr, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		ec, er, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil || sr == 1 {
			continue
		}
		region := MergeRegion{StartRow: sr - 2, StartCol: sc - 1, EndRow: er - 2, EndCol: ec - 1}
		if !tb.inBounds(region.StartRow, region.StartCol) || !tb.inBounds(region.EndRow, region.EndCol) {
			continue
		}
		tb.Merges = append(tb.Merges, region)
	}
	return tb, nil
}
