package doctemplar

import "strings"

// Resolve возвращает полностью подставленную копию схемы: переменные текстовых
// блоков заменены значениями, заголовки и ячейки таблиц прошли через конвейер
// фильтров, вычисляемые колонки посчитаны. Исходная схема не меняется.
func (r *Renderer) Resolve(s Schema, ctx Context) Schema {
	out := Schema{Version: s.Version, Blocks: make([]Block, 0, len(s.Blocks))}
	for _, b := range s.Blocks {
		switch bb := b.(type) {
		case *TextBlock:
			out.Blocks = append(out.Blocks, r.resolveText(bb, ctx))
		case *TableBlock:
			out.Blocks = append(out.Blocks, r.resolveTable(bb, ctx))
		default:
			r.log.Warn("пропущен блок неизвестного типа", "type", b.Type(), "id", b.Place().ID)
		}
	}
	return out
}

func (r *Renderer) resolveText(b *TextBlock, ctx Context) *TextBlock {
	nb := b.cloneText()
	segs := make([]Segment, 0, len(b.Segments))
	for _, seg := range b.Segments {
		switch seg.Type {
		case SegmentVariable:
			segs = append(segs, TextRun(toString(r.Eval(seg.Key, ctx))))
		default:
			segs = append(segs, TextRun(r.Render(seg.Text, ctx)))
		}
	}
	nb.Segments = compactSegments(segs)
	return nb
}

func (r *Renderer) resolveTable(b *TableBlock, ctx Context) *TableBlock {
	nb := b.cloneTable()
	for i, h := range nb.Headers {
		nb.Headers[i] = r.Render(h, ctx)
	}
	for ri, row := range nb.Rows {
		for ci, cell := range row {
			nb.Rows[ri][ci] = r.Render(cell, ctx)
		}
	}
	return nb.computeRows(func(row int, col Column, err error) {
		// Сбой формулы намеренно даёт 0, но автору шаблона стоит об этом знать.
		r.log.Warn("формула вычислена как 0", "block", b.ID, "row", row, "column", col.Key,
			"formula", col.Formula, "error", err)
	})
}

// ResolveText собирает подставленный текстовый блок в одну строку.
func ResolveText(b *TextBlock) string {
	var sb strings.Builder
	for _, seg := range b.Segments {
		switch seg.Type {
		case SegmentVariable:
			sb.WriteString(TagText(seg.Key, ""))
		default:
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// RenderText подставляет контекст в текстовый блок и возвращает строку.
func (r *Renderer) RenderText(b *TextBlock, ctx Context) string {
	return ResolveText(r.resolveText(b, ctx))
}
