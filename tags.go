package doctemplar

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Теги переменных в свободном тексте: {{key}} или {{key|color:#RRGGBB}}.
// Тег — неделимая единица редактирования. Все смещения считаются в символах
// (рунах), как их видит курсор редактора.

// DefaultTagColor — бледно-голубой цвет чипа без явного цвета.
const DefaultTagColor = "#DBEAFE"

var (
	rxTag      = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*(?:\|\s*color:\s*(#[0-9A-Fa-f]{6})\s*)?\}\}`)
	rxHexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Tag — найденный тег и его границы [Start, End) в символах.
type Tag struct {
	Key   string
	Color string
	// Explicit — цвет указан в самом теге.
	Explicit bool
	Start    int
	End      int
}

// ScanTags находит все теги в строке слева направо.
func ScanTags(s string) []Tag { return scanTags(s, DefaultTagColor) }

func scanTags(s, defColor string) []Tag {
	ms := rxTag.FindAllStringSubmatchIndex(s, -1)
	if len(ms) == 0 {
		return nil
	}
	tags := make([]Tag, 0, len(ms))
	// Переводим байтовые смещения в руны одним проходом.
	runePos := 0
	bytePos := 0
	toRunes := func(b int) int {
		runePos += utf8.RuneCountInString(s[bytePos:b])
		bytePos = b
		return runePos
	}
	for _, m := range ms {
		t := Tag{Key: s[m[2]:m[3]], Color: defColor}
		if m[4] >= 0 {
			t.Color = strings.ToUpper(s[m[4]:m[5]])
			t.Explicit = true
		}
		t.Start = toRunes(m[0])
		t.End = toRunes(m[1])
		tags = append(tags, t)
	}
	return tags
}

// tagInside возвращает тег, внутри которого (строго) стоит курсор.
func tagInside(tags []Tag, cursor int) (Tag, bool) {
	for _, t := range tags {
		if cursor > t.Start && cursor < t.End {
			return t, true
		}
	}
	return Tag{}, false
}

// Edit — результат клавиатурной операции: новое значение и позиция курсора.
type Edit struct {
	Value  string
	Cursor int
	// Removed — удалённый целиком тег, если был.
	Removed *Tag
}

// DeleteBackward обрабатывает Backspace. Курсор ровно на конце тега удаляет
// тег целиком и ставит курсор в его начало; иначе удаляется один символ.
func DeleteBackward(value string, cursor int) Edit {
	rs := []rune(value)
	cursor = clamp(cursor, 0, len(rs))
	tags := ScanTags(value)
	for _, t := range tags {
		if cursor == t.End {
			return removeTag(rs, t)
		}
	}
	if t, ok := tagInside(tags, cursor); ok {
		return removeTag(rs, t)
	}
	if cursor == 0 {
		return Edit{Value: value, Cursor: 0}
	}
	out := append(append([]rune(nil), rs[:cursor-1]...), rs[cursor:]...)
	return Edit{Value: string(out), Cursor: cursor - 1}
}

// DeleteForward обрабатывает Delete. Курсор ровно в начале тега удаляет тег
// целиком; иначе удаляется символ справа.
func DeleteForward(value string, cursor int) Edit {
	rs := []rune(value)
	cursor = clamp(cursor, 0, len(rs))
	tags := ScanTags(value)
	for _, t := range tags {
		if cursor == t.Start {
			return removeTag(rs, t)
		}
	}
	if t, ok := tagInside(tags, cursor); ok {
		return removeTag(rs, t)
	}
	if cursor >= len(rs) {
		return Edit{Value: value, Cursor: cursor}
	}
	out := append(append([]rune(nil), rs[:cursor]...), rs[cursor+1:]...)
	return Edit{Value: string(out), Cursor: cursor}
}

// DeleteRange удаляет выделение [start, end), расширяя его так, чтобы
// задетые теги удалялись целиком.
func DeleteRange(value string, start, end int) Edit {
	rs := []rune(value)
	if start > end {
		start, end = end, start
	}
	start = clamp(start, 0, len(rs))
	end = clamp(end, 0, len(rs))
	if start == end {
		return Edit{Value: value, Cursor: start}
	}
	for _, t := range ScanTags(value) {
		if t.Start < end && start < t.End {
			start = min(start, t.Start)
			end = max(end, t.End)
		}
	}
	out := append(append([]rune(nil), rs[:start]...), rs[end:]...)
	return Edit{Value: string(out), Cursor: start}
}

func removeTag(rs []rune, t Tag) Edit {
	out := append(append([]rune(nil), rs[:t.Start]...), rs[t.End:]...)
	removed := t
	return Edit{Value: string(out), Cursor: t.Start, Removed: &removed}
}

// InsertText вставляет обычный текст; курсор внутри тега сдвигается на его конец.
func InsertText(value string, cursor int, text string) Edit {
	rs := []rune(value)
	cursor = snapOutside(value, clamp(cursor, 0, len(rs)))
	out := make([]rune, 0, len(rs)+utf8.RuneCountInString(text))
	out = append(out, rs[:cursor]...)
	out = append(out, []rune(text)...)
	out = append(out, rs[cursor:]...)
	return Edit{Value: string(out), Cursor: cursor + utf8.RuneCountInString(text)}
}

// InsertTag вставляет {{key}} в позицию курсора.
func InsertTag(value string, cursor int, key string) Edit {
	return InsertText(value, cursor, TagText(key, ""))
}

// TagText возвращает запись тега; пустой color — без явного цвета.
func TagText(key, color string) string {
	if color == "" {
		return "{{" + key + "}}"
	}
	return "{{" + key + "|color:" + strings.ToUpper(color) + "}}"
}

func snapOutside(value string, cursor int) int {
	if t, ok := tagInside(ScanTags(value), cursor); ok {
		return t.End
	}
	return cursor
}

// Recolor переписывает только тег, начинающийся в start, встраивая цвет.
// Прочие вхождения того же ключа не меняются. Некорректный цвет отклоняется.
func Recolor(value string, start int, color string) (string, bool) {
	if !rxHexColor.MatchString(color) {
		return value, false
	}
	for _, t := range ScanTags(value) {
		if t.Start != start {
			continue
		}
		rs := []rune(value)
		out := string(rs[:t.Start]) + TagText(t.Key, color) + string(rs[t.End:])
		return out, true
	}
	return value, false
}

// SpanKind — вид фрагмента наложения.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanChip
)

// Span — фрагмент для отрисовки поверх поля ввода: обычный текст или чип тега.
type Span struct {
	Kind  SpanKind
	Text  string
	Key   string
	Label string
	Color string
	Start int
	End   int
}

// Labeler возвращает подпись для ключа.
type Labeler func(key string) string

// Overlay разбивает значение на текст и чипы. Хранимое значение не меняется:
// чип — только слой представления поверх записи {{...}}.
func Overlay(value string, label Labeler) []Span {
	return overlay(value, label, DefaultTagColor)
}

// Overlay — то же, но цвет чипа по умолчанию берётся из настроек.
func (c Config) Overlay(value string, label Labeler) []Span {
	return overlay(value, label, c.TagColor)
}

func overlay(value string, label Labeler, defColor string) []Span {
	rs := []rune(value)
	var spans []Span
	last := 0
	for _, t := range scanTags(value, defColor) {
		if t.Start > last {
			spans = append(spans, Span{Kind: SpanText, Text: string(rs[last:t.Start]), Start: last, End: t.Start})
		}
		lbl := t.Key
		if label != nil {
			if l := label(t.Key); l != "" {
				lbl = l
			}
		}
		spans = append(spans, Span{
			Kind:  SpanChip,
			Text:  string(rs[t.Start:t.End]),
			Key:   t.Key,
			Label: lbl,
			Color: t.Color,
			Start: t.Start,
			End:   t.End,
		})
		last = t.End
	}
	if last < len(rs) {
		spans = append(spans, Span{Kind: SpanText, Text: string(rs[last:]), Start: last, End: len(rs)})
	}
	return spans
}

// StripTagColors убирает подсказки цвета, оставляя {{key}}.
func StripTagColors(s string) string {
	if !strings.Contains(s, "color:") {
		return s
	}
	return rxTag.ReplaceAllString(s, "{{$1}}")
}
