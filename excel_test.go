package doctemplar_test

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/nikitaxru/doctemplar"
)

// ExcelSuite — экспорт подставленной схемы в книгу и импорт таблицы обратно
type ExcelSuite struct {
	suite.Suite
}

func TestExcelSuite(t *testing.T) {
	suite.Run(t, new(ExcelSuite))
}

func mergeRefs(f *excelize.File, sheet string) ([]string, error) {
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(merges))
	for _, m := range merges {
		refs = append(refs, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	sort.Strings(refs)
	return refs, nil
}

func (s *ExcelSuite) TestExportLayout() {
	tb := doctemplar.NewTable(doctemplar.Placement{ID: "t", Y: 50}, 2, 3)
	tb.Headers = []string{"A", "B", "C"}
	tb.ColumnWidths = []float64{50, 25, 25}
	tb.Rows = [][]string{{"anchor", "", "x"}, {"", "", "y"}}
	tb = tb.Merge(doctemplar.MergeRegion{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 1})
	sc := doctemplar.Schema{Version: 1, Blocks: []doctemplar.Block{
		tb,
		&doctemplar.TextBlock{Placement: doctemplar.Placement{ID: "p"}, Segments: []doctemplar.Segment{doctemplar.TextRun("Hello")}},
	}}

	f, err := doctemplar.ExportWorkbook(sc, doctemplar.DefaultConfig())
	s.Require().NoError(err)
	defer f.Close()

	sheet := doctemplar.ExportSheet
	cases := map[string]string{
		"A1": "Hello",
		"A3": "A",
		"C3": "C",
		"A4": "anchor",
		"C4": "x",
		"C5": "y",
	}
	for cell, want := range cases {
		v, err := f.GetCellValue(sheet, cell)
		s.Require().NoError(err)
		s.Equal(want, v, cell)
	}

	refs, err := mergeRefs(f, sheet)
	s.Require().NoError(err)
	s.Equal([]string{"A1:C1", "A4:B5"}, refs)

	w, err := f.GetColWidth(sheet, "A")
	s.Require().NoError(err)
	s.InDelta(50, w, 0.01)
}

func (s *ExcelSuite) TestWriteAndImport() {
	dir := s.T().TempDir()
	out := filepath.Join(dir, "quote.xlsx")

	tb := doctemplar.NewTable(doctemplar.Placement{ID: "fees"}, 3, 3)
	tb.Headers = []string{"{{firm.name}}", "Hours", "Amount"}
	tb.ColumnWidths = []float64{50, 25, 25}
	tb.Rows = [][]string{
		{"Consult", "{{hours}}", ""},
		{"", "", ""},
		{"Drafting", "1", ""},
	}
	tb.Columns = []doctemplar.Column{{Key: "service"}, {Key: "hours"}, {Key: "amount", Formula: "hours * 1000"}}
	tb = tb.Merge(doctemplar.MergeRegion{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 0})
	sc := doctemplar.Schema{Version: 1, Blocks: []doctemplar.Block{tb}}
	ctx := doctemplar.Context{"firm": map[string]interface{}{"name": "Lin & Partners"}, "hours": 2.0}

	s.Require().NoError(doctemplar.WriteWorkbook(out, sc, ctx, nil))

	imported, err := doctemplar.ImportTable(out, "")
	s.Require().NoError(err)
	s.Equal([]string{"Lin & Partners", "Hours", "Amount"}, imported.Headers)
	s.Require().Len(imported.Rows, 3)
	s.Equal([]string{"Consult", "2", "2000"}, imported.Rows[0])
	s.Equal([]string{"", "", "0"}, imported.Rows[1])
	s.Equal([]string{"Drafting", "1", "1000"}, imported.Rows[2])
	s.Equal([]doctemplar.MergeRegion{{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 0}}, imported.Merges)
	s.Require().Len(imported.ColumnWidths, 3)
	s.InDelta(50, imported.ColumnWidths[0], 0.01)
	s.NoError(imported.Validate())

	_, err = doctemplar.ImportTable(filepath.Join(dir, "missing.xlsx"), "")
	s.Error(err)
}
