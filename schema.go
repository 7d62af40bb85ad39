package doctemplar

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion — текущая версия формата шаблона.
const SchemaVersion = 1

// Schema — документ шаблона: упорядоченный список блоков.
// Любая операция редактора возвращает новую схему, исходная не меняется.
type Schema struct {
	Version int     `json:"version"`
	Blocks  []Block `json:"blocks"`
}

// NewSchema создаёт пустую схему текущей версии.
func NewSchema() Schema {
	return Schema{Version: SchemaVersion, Blocks: []Block{}}
}

// BlockType — дискриминант варианта блока.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockTable BlockType = "table"
)

// Block — закрытое множество вариантов: *TextBlock и *TableBlock.
type Block interface {
	Type() BlockType
	Place() Placement
	withPlacement(p Placement) Block
	clone() Block
}

// Placement — положение блока на поверхности редактора.
type Placement struct {
	ID      string  `json:"id" validate:"required"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w" validate:"gte=0"`
	H       float64 `json:"h" validate:"gte=0"`
	Z       int     `json:"z,omitempty"`
	Locked  bool    `json:"locked,omitempty"`
	GroupID string  `json:"groupId,omitempty"`
}

// SegmentType — вид фрагмента текстового блока.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentVariable SegmentType = "variable"
)

// Segment — фрагмент абзаца: либо текст (Text), либо ссылка на переменную (Key, Label).
type Segment struct {
	Type  SegmentType `json:"type" validate:"oneof=text variable"`
	Text  string      `json:"text,omitempty"`
	Key   string      `json:"key,omitempty" validate:"required_if=Type variable"`
	Label string      `json:"label,omitempty"`
	Color string      `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// TextRun создаёт текстовый фрагмент.
func TextRun(text string) Segment { return Segment{Type: SegmentText, Text: text} }

// VariableRef создаёт ссылку на переменную.
func VariableRef(key, label string) Segment {
	return Segment{Type: SegmentVariable, Key: key, Label: label}
}

type TextStyle struct {
	Align           string  `json:"align,omitempty" yaml:"align" validate:"omitempty,oneof=left center right justify"`
	FontSize        float64 `json:"fontSize,omitempty" yaml:"font_size" validate:"gte=0"`
	Bold            bool    `json:"bold,omitempty" yaml:"bold"`
	Italic          bool    `json:"italic,omitempty" yaml:"italic"`
	Underline       bool    `json:"underline,omitempty" yaml:"underline"`
	Color           string  `json:"color,omitempty" yaml:"color" validate:"omitempty,hexcolor"`
	BackgroundColor string  `json:"backgroundColor,omitempty" yaml:"background_color" validate:"omitempty,hexcolor"`
}

// CellStyle — стиль ячеек таблицы. Поля совпадают с TextStyle.
type CellStyle = TextStyle

// DefaultHeaderStyle — стиль строки заголовков по умолчанию.
var DefaultHeaderStyle = CellStyle{Align: "center", Bold: true, BackgroundColor: "#F3F4F6"}

type TextBlock struct {
	Placement
	Segments []Segment `json:"segments" validate:"dive"`
	Style    TextStyle `json:"style"`
}

func (b *TextBlock) Type() BlockType  { return BlockText }
func (b *TextBlock) Place() Placement { return b.Placement }

func (b *TextBlock) withPlacement(p Placement) Block {
	nb := b.cloneText()
	nb.Placement = p
	return nb
}

func (b *TextBlock) clone() Block { return b.cloneText() }

func (b *TextBlock) cloneText() *TextBlock {
	nb := *b
	nb.Segments = append([]Segment(nil), b.Segments...)
	return &nb
}

// MergeRegion — прямоугольник объединённых ячеек; якорь — (StartRow, StartCol).
type MergeRegion struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

// Column — объявление вычисляемой колонки по позиции в таблице.
// Key используется как имя в формулах других колонок.
type Column struct {
	Key     string `json:"key" validate:"required"`
	Formula string `json:"formula,omitempty"`
}

type TableBlock struct {
	Placement
	Headers      []string      `json:"headers"`
	Rows         [][]string    `json:"rows"`
	ColumnWidths []float64     `json:"columnWidths"`
	Merges       []MergeRegion `json:"merges,omitempty"`
	HeaderStyle  *CellStyle    `json:"headerStyle,omitempty"`
	CellStyle    *CellStyle    `json:"cellStyle,omitempty"`
	Columns      []Column      `json:"columns,omitempty" validate:"dive"`
}

func (b *TableBlock) Type() BlockType  { return BlockTable }
func (b *TableBlock) Place() Placement { return b.Placement }

func (b *TableBlock) withPlacement(p Placement) Block {
	nb := b.cloneTable()
	nb.Placement = p
	return nb
}

func (b *TableBlock) clone() Block { return b.cloneTable() }

func (b *TableBlock) cloneTable() *TableBlock {
	nb := *b
	nb.Headers = append([]string(nil), b.Headers...)
	nb.Rows = make([][]string, len(b.Rows))
	for i, r := range b.Rows {
		nb.Rows[i] = append([]string(nil), r...)
	}
	nb.ColumnWidths = append([]float64(nil), b.ColumnWidths...)
	nb.Merges = append([]MergeRegion(nil), b.Merges...)
	nb.Columns = append([]Column(nil), b.Columns...)
	if b.HeaderStyle != nil {
		hs := *b.HeaderStyle
		nb.HeaderStyle = &hs
	}
	if b.CellStyle != nil {
		cs := *b.CellStyle
		nb.CellStyle = &cs
	}
	return &nb
}

// Clone возвращает глубокую копию схемы.
func (s Schema) Clone() Schema {
	out := Schema{Version: s.Version, Blocks: make([]Block, len(s.Blocks))}
	for i, b := range s.Blocks {
		out.Blocks[i] = b.clone()
	}
	return out
}

// Find возвращает блок по id и его индекс.
func (s Schema) Find(id string) (Block, int, bool) {
	for i, b := range s.Blocks {
		if b.Place().ID == id {
			return b, i, true
		}
	}
	return nil, -1, false
}

// replace возвращает новую схему, где блок i заменён на nb. Остальные блоки
// разделяются со старой схемой: они неизменяемы по соглашению.
func (s Schema) replace(i int, nb Block) Schema {
	out := Schema{Version: s.Version, Blocks: append([]Block(nil), s.Blocks...)}
	out.Blocks[i] = nb
	return out
}

func (s Schema) table(id string) (*TableBlock, int, error) {
	b, i, ok := s.Find(id)
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	tb, ok := b.(*TableBlock)
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrNotTable, id)
	}
	return tb, i, nil
}

func (s Schema) text(id string) (*TextBlock, int, error) {
	b, i, ok := s.Find(id)
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	tb, ok := b.(*TextBlock)
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrNotText, id)
	}
	return tb, i, nil
}

// UpdateTable применяет fn к копии таблицы id.
func (s Schema) UpdateTable(id string, fn func(*TableBlock) (*TableBlock, error)) (Schema, error) {
	tb, i, err := s.table(id)
	if err != nil {
		return s, err
	}
	nb, err := fn(tb)
	if err != nil {
		return s, err
	}
	return s.replace(i, nb), nil
}

// -----------------------------
// JSON с дискриминантом "type"
// -----------------------------

type blockEnvelope struct {
	Type BlockType `json:"type"`
}

type textBlockJSON struct {
	Type BlockType `json:"type"`
	*TextBlock
}

type tableBlockJSON struct {
	Type BlockType `json:"type"`
	*TableBlock
}

func marshalBlock(b Block) ([]byte, error) {
	switch bb := b.(type) {
	case *TextBlock:
		return json.Marshal(textBlockJSON{Type: BlockText, TextBlock: bb})
	case *TableBlock:
		return json.Marshal(tableBlockJSON{Type: BlockTable, TableBlock: bb})
	default:
		return nil, fmt.Errorf("неизвестный тип блока %T", b)
	}
}

func unmarshalBlock(data []byte) (Block, error) {
	var env blockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case BlockText:
		tb := &TextBlock{}
		if err := json.Unmarshal(data, tb); err != nil {
			return nil, err
		}
		if tb.Segments == nil {
			tb.Segments = []Segment{}
		}
		return tb, nil
	case BlockTable:
		tb := &TableBlock{}
		if err := json.Unmarshal(data, tb); err != nil {
			return nil, err
		}
		return tb, nil
	case "":
		return nil, fmt.Errorf("блок без поля type")
	default:
		return nil, fmt.Errorf("неизвестный тип блока %q", env.Type)
	}
}

func (s Schema) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(s.Blocks))
	for i, b := range s.Blocks {
		data, err := marshalBlock(b)
		if err != nil {
			return nil, fmt.Errorf("блок %d: %w", i, err)
		}
		raw = append(raw, data)
	}
	return json.Marshal(struct {
		Version int               `json:"version"`
		Blocks  []json.RawMessage `json:"blocks"`
	}{Version: s.Version, Blocks: raw})
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var aux struct {
		Version int               `json:"version"`
		Blocks  []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	blocks := make([]Block, 0, len(aux.Blocks))
	for i, raw := range aux.Blocks {
		b, err := unmarshalBlock(raw)
		if err != nil {
			return fmt.Errorf("блок %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	s.Version = aux.Version
	s.Blocks = blocks
	return nil
}
