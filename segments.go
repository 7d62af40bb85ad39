package doctemplar

import "strings"

// ParseSegments превращает строку с записью {{key}} в фрагменты текстового
// блока. Подписи переменных берутся из каталога (если ключ известен).
func ParseSegments(s string, catalog Catalog) []Segment {
	tags := ScanTags(s)
	if len(tags) == 0 {
		if s == "" {
			return []Segment{}
		}
		return []Segment{TextRun(s)}
	}
	rs := []rune(s)
	segs := make([]Segment, 0, 2*len(tags)+1)
	last := 0
	for _, t := range tags {
		if t.Start > last {
			segs = append(segs, TextRun(string(rs[last:t.Start])))
		}
		seg := VariableRef(t.Key, catalog.Label(t.Key))
		if t.Explicit {
			seg.Color = t.Color
		}
		segs = append(segs, seg)
		last = t.End
	}
	if last < len(rs) {
		segs = append(segs, TextRun(string(rs[last:])))
	}
	return segs
}

// JoinSegments собирает фрагменты обратно в строку с записью тегов.
func JoinSegments(segs []Segment) string {
	var sb strings.Builder
	for _, seg := range segs {
		switch seg.Type {
		case SegmentVariable:
			sb.WriteString(TagText(seg.Key, seg.Color))
		default:
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// PlainText возвращает текст блока, где переменные заменены подписями.
func (b *TextBlock) PlainText() string {
	var sb strings.Builder
	for _, seg := range b.Segments {
		switch seg.Type {
		case SegmentVariable:
			if seg.Label != "" {
				sb.WriteString(seg.Label)
			} else {
				sb.WriteString(seg.Key)
			}
		default:
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// compactSegments склеивает соседние текстовые фрагменты и убирает пустые.
func compactSegments(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, seg := range segs {
		if seg.Type != SegmentVariable {
			if seg.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Type != SegmentVariable {
				out[n-1].Text += seg.Text
				continue
			}
			seg.Type = SegmentText
		}
		out = append(out, seg)
	}
	return out
}

// SetText заменяет содержимое текстового блока разбором строки редактора.
// Новые вхождения переменных проверяются на лимиты каталога.
func (s Schema) SetText(id, value string, catalog Catalog) (Schema, error) {
	tb, i, err := s.text(id)
	if err != nil {
		return s, err
	}
	segs := ParseSegments(value, catalog)
	if err := checkReplace(s, catalog, tb, &TextBlock{Segments: segs}); err != nil {
		return s, err
	}
	nb := tb.cloneText()
	nb.Segments = segs
	return s.replace(i, nb), nil
}
