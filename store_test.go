package doctemplar_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/nikitaxru/doctemplar"
)

// StoreSuite — сохранение и загрузка шаблонов
type StoreSuite struct {
	suite.Suite
	store doctemplar.DirStore
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = doctemplar.DirStore{Dir: filepath.Join(s.T().TempDir(), "templates")}
}

func sampleSchema() doctemplar.Schema {
	tb := doctemplar.NewTable(doctemplar.Placement{ID: "fees", Y: 60, W: 400, H: 120, Z: 1}, 2, 3)
	tb.Headers = []string{"Service", "Hours", "Amount"}
	tb.Rows = [][]string{{"Consult", "2", ""}, {"Drafting {{case_no}}", "", ""}}
	tb.Merges = []doctemplar.MergeRegion{{StartRow: 1, StartCol: 0, EndRow: 1, EndCol: 1}}
	tb.Columns = []doctemplar.Column{{Key: "service"}, {Key: "hours"}, {Key: "amount", Formula: "hours * 1500"}}
	hs := doctemplar.CellStyle{Bold: true, BackgroundColor: "#EEEEEE"}
	tb.HeaderStyle = &hs
	return doctemplar.Schema{Version: doctemplar.SchemaVersion, Blocks: []doctemplar.Block{
		&doctemplar.TextBlock{
			Placement: doctemplar.Placement{ID: "intro", W: 400, H: 40, GroupID: "g1"},
			Segments:  []doctemplar.Segment{doctemplar.TextRun("Dear "), doctemplar.VariableRef("client.name", "Client")},
			Style:     doctemplar.TextStyle{Align: "left", FontSize: 12, Color: "#111111"},
		},
		tb,
	}}
}

func (s *StoreSuite) TestRoundTrip() {
	sc := sampleSchema()
	s.Require().NoError(s.store.Save("quote", sc))

	loaded, err := s.store.Load("quote")
	s.Require().NoError(err)
	s.Equal(sc, loaded)

	s.Require().NoError(s.store.Save("letter", doctemplar.NewSchema()))
	names, err := s.store.List()
	s.Require().NoError(err)
	s.Equal([]string{"letter", "quote"}, names)

	s.Require().NoError(s.store.Delete("letter"))
	_, err = s.store.Load("letter")
	s.ErrorIs(err, doctemplar.ErrTemplateNotFound)
	s.ErrorIs(s.store.Delete("letter"), doctemplar.ErrTemplateNotFound)

	s.Error(s.store.Save("../evil", sc))
}

func (s *StoreSuite) TestListMissingDir() {
	names, err := s.store.List()
	s.NoError(err)
	s.Empty(names)
}

func (s *StoreSuite) TestDecodeJSONC() {
	data := []byte(`{
		// шаблон, отредактированный вручную
		"blocks": [
			{"type": "text", "id": "t1", "w": 100, "h": 20,
			 "segments": [{"type": "text", "text": "Hi "}, {"type": "variable", "key": "client.name"},],},
		],
	}`)
	sc, err := doctemplar.DecodeSchema(data)
	s.Require().NoError(err)
	s.Equal(doctemplar.SchemaVersion, sc.Version)
	s.Require().Len(sc.Blocks, 1)
	tb := sc.Blocks[0].(*doctemplar.TextBlock)
	s.Equal("Hi {{client.name}}", doctemplar.JoinSegments(tb.Segments))
}

func (s *StoreSuite) TestDecodeRejects() {
	cases := map[string]string{
		"unknown type":  `{"blocks":[{"type":"image","id":"x"}]}`,
		"missing type":  `{"blocks":[{"id":"x"}]}`,
		"newer version": `{"version":99,"blocks":[]}`,
		"duplicate id":  `{"blocks":[{"type":"text","id":"a","segments":[]},{"type":"text","id":"a","segments":[]}]}`,
		"missing id":    `{"blocks":[{"type":"text","segments":[]}]}`,
		"bad color":     `{"blocks":[{"type":"text","id":"a","segments":[{"type":"variable","key":"k","color":"red"}]}]}`,
		"ragged table":  `{"blocks":[{"type":"table","id":"t","headers":["a","b"],"rows":[["x"]],"columnWidths":[50,50]}]}`,
		"not json":      `<xml/>`,
	}
	for name, data := range cases {
		s.Run(name, func() {
			_, err := doctemplar.DecodeSchema([]byte(data))
			s.Error(err)
		})
	}
}

func (s *StoreSuite) TestSaveSchemaIsAtomic() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "quote.json")
	s.Require().NoError(doctemplar.SaveSchema(path, sampleSchema()))

	entries, err := os.ReadDir(dir)
	s.Require().NoError(err)
	s.Len(entries, 1)

	loaded, err := doctemplar.LoadSchema(path)
	s.Require().NoError(err)
	s.Len(loaded.Blocks, 2)
}
