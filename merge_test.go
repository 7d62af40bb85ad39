package doctemplar_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/nikitaxru/doctemplar"
)

// GridSuite — объединение ячеек и структурные правки таблицы
type GridSuite struct {
	suite.Suite
}

func TestGridSuite(t *testing.T) {
	suite.Run(t, new(GridSuite))
}

func region(r0, c0, r1, c1 int) doctemplar.MergeRegion {
	return doctemplar.MergeRegion{StartRow: r0, StartCol: c0, EndRow: r1, EndCol: c1}
}

func (s *GridSuite) table(rows, cols int) *doctemplar.TableBlock {
	return doctemplar.NewTable(doctemplar.Placement{ID: "t", W: 300, H: 100}, rows, cols)
}

func (s *GridSuite) TestMergeSquare() {
	tb := s.table(2, 2)
	tb.Rows[0][0] = "A"

	m := tb.Merge(region(0, 0, 1, 1))
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 1)}, m.Merges)
	s.Equal("A", m.Rows[0][0])
	s.True(m.Covered(0, 1))
	s.True(m.Covered(1, 1))
	s.False(m.Covered(0, 0))

	_, err := m.SetCell(0, 1, "x")
	s.ErrorIs(err, doctemplar.ErrCellCovered)
	// исходная таблица не тронута
	s.Empty(tb.Merges)
}

func (s *GridSuite) TestMergeJoinsContentRowMajor() {
	tb := s.table(2, 2)
	tb.Rows = [][]string{{"A", "B"}, {"C", "  "}}
	m := tb.Merge(region(0, 0, 1, 1))
	s.Equal("A B C", m.Rows[0][0])
	s.Equal([]string{"", ""}, m.Rows[1])
}

func (s *GridSuite) TestMergeAbsorbsOverlap() {
	tb := s.table(3, 3)
	m := tb.Merge(region(0, 0, 0, 1))
	m = m.Merge(region(0, 1, 1, 2))
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 2)}, m.Merges)

	// расширенный регион задевает следующий — поглощаем до неподвижной точки
	tb = s.table(4, 4)
	m = tb.Merge(region(2, 1, 3, 1)).Merge(region(1, 0, 2, 0))
	s.Len(m.Merges, 2)
	m = m.Merge(region(0, 0, 1, 1))
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 3, 1)}, m.Merges)
	s.NoError(m.Validate())
}

func (s *GridSuite) TestMergeNormalizesAndClamps() {
	tb := s.table(2, 2)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 1)}, tb.Merge(region(1, 1, 0, 0)).Merges)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 1)}, tb.Merge(region(0, 0, 9, 9)).Merges)
	// одна ячейка — не регион
	s.Empty(tb.Merge(region(1, 1, 1, 1)).Merges)
}

func (s *GridSuite) TestSplitAtAnchor() {
	tb := s.table(2, 2)
	tb.Rows[0][0] = "A"
	m := tb.Merge(region(0, 0, 1, 1))

	sp, ok := m.Split(0, 0)
	s.True(ok)
	s.Empty(sp.Merges)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			s.Equal("", sp.Rows[r][c])
			_, err := sp.SetCell(r, c, "x")
			s.NoError(err)
		}
	}

	same, ok := m.Split(0, 1)
	s.False(ok)
	s.Equal(m.Merges, same.Merges)
}

func (s *GridSuite) TestLayout() {
	tb := s.table(2, 3)
	tb.Rows[0][0] = "A"
	tb.Rows[0][2] = "Z"
	grid := tb.Merge(region(0, 0, 1, 1)).Layout()

	s.Require().Len(grid, 2)
	s.Equal(doctemplar.GridCell{Row: 0, Col: 0, RowSpan: 2, ColSpan: 2, Text: "A"}, grid[0][0])
	s.True(grid[1][1].Covered)
	s.Equal(doctemplar.GridCell{Row: 0, Col: 2, RowSpan: 1, ColSpan: 1, Text: "Z"}, grid[0][2])
}

func (s *GridSuite) TestSchemaMergeAndSplit() {
	sc := doctemplar.Schema{Version: 1, Blocks: []doctemplar.Block{
		s.table(2, 2),
		&doctemplar.TextBlock{Placement: doctemplar.Placement{ID: "p"}},
	}}
	out, err := sc.MergeCells("t", region(0, 0, 0, 1))
	s.Require().NoError(err)
	tb := out.Blocks[0].(*doctemplar.TableBlock)
	s.Len(tb.Merges, 1)
	s.Empty(sc.Blocks[0].(*doctemplar.TableBlock).Merges)
	// текстовый блок разделяется между версиями схемы
	s.Same(sc.Blocks[1], out.Blocks[1])

	out, err = out.SplitCell("t", 0, 0)
	s.Require().NoError(err)
	s.Empty(out.Blocks[0].(*doctemplar.TableBlock).Merges)

	_, err = sc.MergeCells("p", region(0, 0, 1, 1))
	s.ErrorIs(err, doctemplar.ErrNotTable)
	_, err = sc.MergeCells("nope", region(0, 0, 1, 1))
	s.ErrorIs(err, doctemplar.ErrBlockNotFound)
}

func (s *GridSuite) TestAddColumnKeepsTotalWidth() {
	tb := s.table(1, 3)
	nb := tb.AddColumn("New")
	s.Equal(4, nb.NumCols())
	s.Equal("New", nb.Headers[3])
	sum := 0.0
	for _, w := range nb.ColumnWidths {
		s.InDelta(25, w, 1e-9)
		sum += w
	}
	s.InDelta(100, sum, 1e-9)
	s.Len(nb.Rows[0], 4)
}

func (s *GridSuite) TestInsertColumnShiftsMerges() {
	tb := s.table(1, 3).Merge(region(0, 0, 0, 1))

	wider, err := tb.InsertColumn(1, "")
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 0, 2)}, wider.Merges)

	shifted, err := tb.InsertColumn(0, "")
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(0, 1, 0, 2)}, shifted.Merges)

	_, err = tb.InsertColumn(9, "")
	s.ErrorIs(err, doctemplar.ErrOutOfRange)
}

func (s *GridSuite) TestRemoveColumn() {
	tb := s.table(2, 3)
	tb.ColumnWidths = []float64{50, 25, 25}
	tb.Rows[0][0] = "A"
	tb = tb.Merge(region(0, 0, 1, 1))

	nb, err := tb.RemoveColumn(0)
	s.Require().NoError(err)
	s.Equal(2, nb.NumCols())
	s.Equal([]float64{50, 50}, nb.ColumnWidths)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 0)}, nb.Merges)
	s.Equal("A", nb.Rows[0][0])

	// регион схлопнулся до одной ячейки — исчезает
	nb, err = s.table(1, 3).Merge(region(0, 0, 0, 1)).RemoveColumn(1)
	s.Require().NoError(err)
	s.Empty(nb.Merges)

	_, err = s.table(2, 1).RemoveColumn(0)
	s.ErrorIs(err, doctemplar.ErrLastColumn)
}

func (s *GridSuite) TestRowsShiftMerges() {
	tb := s.table(3, 2).Merge(region(1, 0, 2, 1))
	nb, err := tb.RemoveRow(0)
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 1, 1)}, nb.Merges)

	nb, err = tb.InsertRow(0)
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(2, 0, 3, 1)}, nb.Merges)
	s.Equal(4, nb.NumRows())

	nb, err = tb.InsertRow(2)
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(1, 0, 3, 1)}, nb.Merges)

	top := s.table(2, 2)
	top.Rows[0][0] = "A"
	top = top.Merge(region(0, 0, 1, 1))
	nb, err = top.RemoveRow(0)
	s.Require().NoError(err)
	s.Equal([]doctemplar.MergeRegion{region(0, 0, 0, 1)}, nb.Merges)
	s.Equal("A", nb.Rows[0][0])

	_, err = s.table(1, 2).RemoveRow(0)
	s.ErrorIs(err, doctemplar.ErrLastRow)
	s.Equal(3, s.table(2, 2).AddRow().NumRows())
}

func (s *GridSuite) TestSetters() {
	tb := s.table(1, 2)
	nb, err := tb.SetHeader(1, "Qty")
	s.Require().NoError(err)
	s.Equal([]string{"", "Qty"}, nb.Headers)

	nb, err = nb.SetColumnWidth(0, 70)
	s.Require().NoError(err)
	s.Equal(70.0, nb.ColumnWidths[0])

	_, err = nb.SetColumnWidth(0, 0)
	s.ErrorIs(err, doctemplar.ErrOutOfRange)
	_, err = nb.SetCell(3, 0, "x")
	s.ErrorIs(err, doctemplar.ErrOutOfRange)
}

func (s *GridSuite) TestValidate() {
	tb := s.table(2, 2)
	s.NoError(tb.Validate())
	tb.Rows[1] = []string{"only one"}
	tb.Merges = []doctemplar.MergeRegion{region(0, 0, 5, 5)}
	err := tb.Validate()
	s.Error(err)
	s.Contains(err.Error(), "строка 1")
	s.Contains(err.Error(), "вне таблицы")
}
