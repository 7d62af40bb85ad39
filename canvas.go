package doctemplar

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Canvas — операции размещения блоков на поверхности редактора.
// Сам холст не хранит состояние: каждая операция принимает и возвращает Schema.
type Canvas struct {
	cfg Config
}

// NewCanvas создаёт холст с сеткой и минимальными размерами из настроек.
func NewCanvas(cfg Config) Canvas { return Canvas{cfg: cfg} }

func (c Canvas) snap(v float64) float64 {
	if c.cfg.GridSize <= 0 {
		return v
	}
	return math.Round(v/c.cfg.GridSize) * c.cfg.GridSize
}

func (c Canvas) fit(p Placement) Placement {
	p.X = c.snap(p.X)
	p.Y = c.snap(p.Y)
	p.W = math.Max(c.snap(p.W), c.cfg.MinBlockWidth)
	p.H = math.Max(c.snap(p.H), c.cfg.MinBlockHeight)
	return p
}

func maxZ(s Schema) int {
	z := 0
	for i, b := range s.Blocks {
		if bz := b.Place().Z; i == 0 || bz > z {
			z = bz
		}
	}
	return z
}

func minZ(s Schema) int {
	z := 0
	for i, b := range s.Blocks {
		if bz := b.Place().Z; i == 0 || bz < z {
			z = bz
		}
	}
	return z
}

// AddBlock добавляет блок поверх остальных. Пустой id заменяется новым UUID.
func (c Canvas) AddBlock(s Schema, b Block) (Schema, Block) {
	p := b.Place()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if len(s.Blocks) > 0 {
		p.Z = maxZ(s) + 1
	}
	nb := b.withPlacement(c.fit(p))
	out := Schema{Version: s.Version, Blocks: append(append([]Block(nil), s.Blocks...), nb)}
	return out, nb
}

// AddText добавляет текстовый блок с заданной строкой редактора.
func (c Canvas) AddText(s Schema, p Placement, value string, catalog Catalog) (Schema, Block, error) {
	segs := ParseSegments(value, catalog)
	usage := ComputeUsage(s)
	added := map[string]int{}
	for _, seg := range segs {
		if seg.Type != SegmentVariable {
			continue
		}
		if err := catalog.allow(seg.Key, usage[seg.Key]+added[seg.Key]); err != nil {
			return s, nil, err
		}
		added[seg.Key]++
	}
	out, nb := c.AddBlock(s, &TextBlock{Placement: p, Segments: segs})
	return out, nb, nil
}

// AddTable добавляет пустую таблицу rows×cols.
func (c Canvas) AddTable(s Schema, p Placement, rows, cols int) (Schema, Block) {
	return c.AddBlock(s, NewTable(p, rows, cols))
}

// UpdateBlock заменяет блок с тем же id, сохраняя его размещение.
// Новые вхождения переменных проверяются на лимиты каталога.
func (c Canvas) UpdateBlock(s Schema, b Block, catalog Catalog) (Schema, error) {
	id := b.Place().ID
	old, i, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	if old.Type() != b.Type() {
		return s, fmt.Errorf("блок %s: нельзя сменить тип %s на %s", id, old.Type(), b.Type())
	}
	if err := checkReplace(s, catalog, old, b); err != nil {
		return s, err
	}
	return s.replace(i, b.withPlacement(old.Place())), nil
}

// DeleteBlock удаляет блок.
func (c Canvas) DeleteBlock(s Schema, id string) (Schema, error) {
	_, i, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	blocks := make([]Block, 0, len(s.Blocks)-1)
	blocks = append(blocks, s.Blocks[:i]...)
	blocks = append(blocks, s.Blocks[i+1:]...)
	return Schema{Version: s.Version, Blocks: blocks}, nil
}

// DuplicateBlock копирует блок со сдвигом на шаг сетки (или 10) и новым id.
// Копия не входит в группу и не заблокирована.
func (c Canvas) DuplicateBlock(s Schema, id string, catalog Catalog) (Schema, Block, error) {
	b, _, ok := s.Find(id)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	// Копия удваивает вхождения переменных — проверяем лимиты.
	extra := Schema{Version: s.Version, Blocks: []Block{b}}
	usage := ComputeUsage(s)
	for key, n := range ComputeUsage(extra) {
		if err := catalog.allow(key, usage[key]+n-1); err != nil {
			return s, nil, err
		}
	}
	step := c.cfg.GridSize
	if step <= 0 {
		step = 10
	}
	p := b.Place()
	p.ID = ""
	p.X += step
	p.Y += step
	p.GroupID = ""
	p.Locked = false
	out, nb := c.AddBlock(s, b.clone().withPlacement(p))
	return out, nb, nil
}

// MoveBlock переносит блок в (x, y). Блоки той же группы сдвигаются на ту же
// величину; если любой из них заблокирован, перенос отклоняется.
func (c Canvas) MoveBlock(s Schema, id string, x, y float64) (Schema, error) {
	b, _, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	p := b.Place()
	dx := c.snap(x) - p.X
	dy := c.snap(y) - p.Y
	members := c.groupMembers(s, p)
	for _, i := range members {
		if s.Blocks[i].Place().Locked {
			return s, fmt.Errorf("%w: %s", ErrBlockLocked, s.Blocks[i].Place().ID)
		}
	}
	out := Schema{Version: s.Version, Blocks: append([]Block(nil), s.Blocks...)}
	for _, i := range members {
		mp := out.Blocks[i].Place()
		mp.X += dx
		mp.Y += dy
		out.Blocks[i] = out.Blocks[i].withPlacement(mp)
	}
	return out, nil
}

// ResizeBlock задаёт размер блока с учётом минимальных размеров.
func (c Canvas) ResizeBlock(s Schema, id string, w, h float64) (Schema, error) {
	b, i, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	p := b.Place()
	if p.Locked {
		return s, fmt.Errorf("%w: %s", ErrBlockLocked, id)
	}
	p.W = w
	p.H = h
	return s.replace(i, b.withPlacement(c.fit(p))), nil
}

// BringToFront поднимает блок над всеми остальными.
func (c Canvas) BringToFront(s Schema, id string) (Schema, error) {
	return c.setZ(s, id, func(s Schema) int { return maxZ(s) + 1 })
}

// SendToBack опускает блок под все остальные.
func (c Canvas) SendToBack(s Schema, id string) (Schema, error) {
	return c.setZ(s, id, func(s Schema) int { return minZ(s) - 1 })
}

func (c Canvas) setZ(s Schema, id string, z func(Schema) int) (Schema, error) {
	b, i, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	p := b.Place()
	p.Z = z(s)
	return s.replace(i, b.withPlacement(p)), nil
}

// SetLocked блокирует или разблокирует блок.
func (c Canvas) SetLocked(s Schema, id string, locked bool) (Schema, error) {
	b, i, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	p := b.Place()
	p.Locked = locked
	return s.replace(i, b.withPlacement(p)), nil
}

// Group объединяет блоки в группу с новым id. Нужно минимум два блока.
func (c Canvas) Group(s Schema, ids ...string) (Schema, string, error) {
	if len(ids) < 2 {
		return s, "", fmt.Errorf("группа требует минимум два блока, получено %d", len(ids))
	}
	gid := uuid.NewString()
	out := Schema{Version: s.Version, Blocks: append([]Block(nil), s.Blocks...)}
	for _, id := range ids {
		b, i, ok := out.Find(id)
		if !ok {
			return s, "", fmt.Errorf("%w: %s", ErrBlockNotFound, id)
		}
		p := b.Place()
		p.GroupID = gid
		out.Blocks[i] = b.withPlacement(p)
	}
	return out, gid, nil
}

// Ungroup снимает группу со всех её блоков.
func (c Canvas) Ungroup(s Schema, groupID string) Schema {
	out := Schema{Version: s.Version, Blocks: append([]Block(nil), s.Blocks...)}
	for i, b := range out.Blocks {
		p := b.Place()
		if p.GroupID != groupID || groupID == "" {
			continue
		}
		p.GroupID = ""
		out.Blocks[i] = b.withPlacement(p)
	}
	return out
}

func (c Canvas) groupMembers(s Schema, p Placement) []int {
	var idx []int
	for i, b := range s.Blocks {
		bp := b.Place()
		if bp.ID == p.ID || (p.GroupID != "" && bp.GroupID == p.GroupID) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Ordered возвращает блоки в порядке отрисовки: по z, при равенстве — по порядку добавления.
func (s Schema) Ordered() []Block {
	out := append([]Block(nil), s.Blocks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Place().Z < out[j].Place().Z })
	return out
}

// BlockAt возвращает верхний блок, накрывающий точку (x, y).
func (s Schema) BlockAt(x, y float64) (Block, bool) {
	ordered := s.Ordered()
	for i := len(ordered) - 1; i >= 0; i-- {
		p := ordered[i].Place()
		if x >= p.X && x <= p.X+p.W && y >= p.Y && y <= p.Y+p.H {
			return ordered[i], true
		}
	}
	return nil, false
}
