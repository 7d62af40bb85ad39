package doctemplar

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// VariableDefinition — переменная из каталога поставщика данных дела.
// MaxUsage == nil означает отсутствие лимита.
type VariableDefinition struct {
	Key      string `json:"key" validate:"required"`
	Label    string `json:"label"`
	MaxUsage *int   `json:"maxUsage,omitempty" validate:"omitempty,gte=0"`
}

// Catalog — список доступных для вставки переменных.
type Catalog []VariableDefinition

// Lookup ищет определение по ключу.
func (c Catalog) Lookup(key string) (VariableDefinition, bool) {
	for _, d := range c {
		if d.Key == key {
			return d, true
		}
	}
	return VariableDefinition{}, false
}

// Label возвращает подпись ключа или сам ключ.
func (c Catalog) Label(key string) string {
	if d, ok := c.Lookup(key); ok && d.Label != "" {
		return d.Label
	}
	return key
}

// Labeler — подписи каталога для наложения чипов.
func (c Catalog) Labeler() Labeler { return c.Label }

// allow проверяет, можно ли добавить ещё одно вхождение при текущем счётчике.
func (c Catalog) allow(key string, current int) error {
	d, ok := c.Lookup(key)
	if !ok || d.MaxUsage == nil {
		return nil
	}
	if current >= *d.MaxUsage {
		return fmt.Errorf("%w: %s используется %d раз из %d", ErrUsageLimitExceeded, key, current, *d.MaxUsage)
	}
	return nil
}

// UsageIndex — число вхождений каждого ключа во всей схеме.
type UsageIndex map[string]int

// ComputeUsage пересчитывает индекс по всей схеме: ссылки на переменные
// в текстовых блоках плюс теги в заголовках и ячейках таблиц.
func ComputeUsage(s Schema) UsageIndex {
	idx := UsageIndex{}
	for _, b := range s.Blocks {
		for k, n := range blockUsage(b) {
			idx[k] += n
		}
	}
	return idx
}

// blockUsage — вхождения ключей в одном блоке.
func blockUsage(b Block) UsageIndex {
	idx := UsageIndex{}
	switch bb := b.(type) {
	case *TextBlock:
		for _, seg := range bb.Segments {
			if seg.Type == SegmentVariable && seg.Key != "" {
				idx[seg.Key]++
			}
		}
	case *TableBlock:
		for _, h := range bb.Headers {
			countTags(idx, h)
		}
		for _, row := range bb.Rows {
			for _, cell := range row {
				countTags(idx, cell)
			}
		}
	}
	return idx
}

// checkReplace отклоняет замену блока old на nb, если добавленные
// вхождения выводят какой-либо ключ за maxUsage. Убывание не проверяется.
func checkReplace(s Schema, catalog Catalog, old, nb Block) error {
	if len(catalog) == 0 {
		return nil
	}
	before, after := blockUsage(old), blockUsage(nb)
	var usage UsageIndex
	for key, n := range after {
		if n <= before[key] {
			continue
		}
		if usage == nil {
			usage = ComputeUsage(s)
		}
		if err := catalog.allow(key, usage[key]-before[key]+n-1); err != nil {
			return err
		}
	}
	return nil
}

func countTags(idx UsageIndex, s string) {
	for _, t := range ScanTags(s) {
		idx[t.Key]++
	}
}

// CheckInsert отклоняет вставку ключа, если его счётчик уже достиг maxUsage.
func CheckInsert(s Schema, catalog Catalog, key string) error {
	return catalog.allow(key, ComputeUsage(s)[key])
}

// InsertVariable вставляет ссылку на переменную в текстовый блок перед
// фрагментом at (at == len — в конец). При превышении лимита схема не меняется.
func (s Schema) InsertVariable(id string, at int, key string, catalog Catalog) (Schema, error) {
	tb, i, err := s.text(id)
	if err != nil {
		return s, err
	}
	if at < 0 || at > len(tb.Segments) {
		return s, fmt.Errorf("%w: фрагмент %d из %d", ErrOutOfRange, at, len(tb.Segments))
	}
	if err := CheckInsert(s, catalog, key); err != nil {
		return s, err
	}
	nb := tb.cloneText()
	segs := make([]Segment, 0, len(tb.Segments)+1)
	segs = append(segs, tb.Segments[:at]...)
	segs = append(segs, VariableRef(key, catalog.Label(key)))
	segs = append(segs, tb.Segments[at:]...)
	nb.Segments = segs
	return s.replace(i, nb), nil
}

// InsertTextVariable вставляет тег в строку редактора текстового блока
// по позиции курсора (в символах строки JoinSegments).
func (s Schema) InsertTextVariable(id string, cursor int, key string, catalog Catalog) (Schema, Edit, error) {
	tb, i, err := s.text(id)
	if err != nil {
		return s, Edit{}, err
	}
	if err := CheckInsert(s, catalog, key); err != nil {
		return s, Edit{}, err
	}
	edit := InsertTag(JoinSegments(tb.Segments), cursor, key)
	nb := tb.cloneText()
	nb.Segments = ParseSegments(edit.Value, catalog)
	return s.replace(i, nb), edit, nil
}

// RemoveVariable удаляет фрагмент-переменную at из текстового блока.
func (s Schema) RemoveVariable(id string, at int) (Schema, error) {
	tb, i, err := s.text(id)
	if err != nil {
		return s, err
	}
	if at < 0 || at >= len(tb.Segments) || tb.Segments[at].Type != SegmentVariable {
		return s, fmt.Errorf("%w: фрагмент %d не переменная", ErrOutOfRange, at)
	}
	nb := tb.cloneText()
	nb.Segments = compactSegments(append(nb.Segments[:at:at], nb.Segments[at+1:]...))
	return s.replace(i, nb), nil
}

// InsertCellVariable вставляет тег в ячейку таблицы по позиции курсора.
func (s Schema) InsertCellVariable(id string, r, c, cursor int, key string, catalog Catalog) (Schema, error) {
	return s.editTable(id, catalog, func(tb *TableBlock) (*TableBlock, error) {
		if !tb.inBounds(r, c) {
			return tb, fmt.Errorf("%w: ячейка (%d,%d)", ErrOutOfRange, r, c)
		}
		return tb.SetCell(r, c, InsertTag(tb.cell(r, c), cursor, key).Value)
	})
}

// SetCell записывает текст ячейки (r,c) таблицы id. Теги, которых
// в ячейке не было, проверяются на лимиты каталога.
func (s Schema) SetCell(id string, r, c int, value string, catalog Catalog) (Schema, error) {
	return s.editTable(id, catalog, func(tb *TableBlock) (*TableBlock, error) {
		return tb.SetCell(r, c, value)
	})
}

// SetHeader записывает заголовок колонки c с той же проверкой лимитов.
func (s Schema) SetHeader(id string, c int, value string, catalog Catalog) (Schema, error) {
	return s.editTable(id, catalog, func(tb *TableBlock) (*TableBlock, error) {
		return tb.SetHeader(c, value)
	})
}

// editTable — UpdateTable с проверкой лимитов по разнице тегов до и после fn.
func (s Schema) editTable(id string, catalog Catalog, fn func(*TableBlock) (*TableBlock, error)) (Schema, error) {
	tb, i, err := s.table(id)
	if err != nil {
		return s, err
	}
	nb, err := fn(tb)
	if err != nil {
		return s, err
	}
	if err := checkReplace(s, catalog, tb, nb); err != nil {
		return s, err
	}
	return s.replace(i, nb), nil
}

// RecolorSegment задаёт цвет одного вхождения переменной в текстовом блоке.
func (s Schema) RecolorSegment(id string, at int, color string) (Schema, error) {
	tb, i, err := s.text(id)
	if err != nil {
		return s, err
	}
	if at < 0 || at >= len(tb.Segments) || tb.Segments[at].Type != SegmentVariable {
		return s, fmt.Errorf("%w: фрагмент %d не переменная", ErrOutOfRange, at)
	}
	if !rxHexColor.MatchString(color) {
		return s, nil
	}
	nb := tb.cloneText()
	nb.Segments[at].Color = color
	return s.replace(i, nb), nil
}

// RecolorCellTag перекрашивает тег, начинающийся в позиции start ячейки (r,c).
func (s Schema) RecolorCellTag(id string, r, c, start int, color string) (Schema, error) {
	return s.UpdateTable(id, func(tb *TableBlock) (*TableBlock, error) {
		if !tb.inBounds(r, c) {
			return tb, fmt.Errorf("%w: ячейка (%d,%d)", ErrOutOfRange, r, c)
		}
		if c >= len(tb.Rows[r]) {
			return tb, nil
		}
		v, ok := Recolor(tb.Rows[r][c], start, color)
		if !ok {
			return tb, nil
		}
		nb := tb.cloneTable()
		nb.Rows[r][c] = v
		return nb, nil
	})
}

// UsageCache запоминает индекс по хэшу содержимого схемы, поэтому
// инвалидировать его вручную не нужно.
type UsageCache struct {
	mu           sync.Mutex
	hash         [32]byte
	index        UsageIndex
	computations int
}

// Usage возвращает индекс для схемы, пересчитывая его только при изменении содержимого.
func (c *UsageCache) Usage(s Schema) UsageIndex {
	data, err := json.Marshal(s)
	if err != nil {
		return ComputeUsage(s)
	}
	h := blake3.Sum256(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil && h == c.hash {
		return c.index.clone()
	}
	c.hash = h
	c.index = ComputeUsage(s)
	c.computations++
	return c.index.clone()
}

func (u UsageIndex) clone() UsageIndex {
	out := make(UsageIndex, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
