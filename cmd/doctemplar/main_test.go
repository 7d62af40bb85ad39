package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitaxru/doctemplar"
)

const quoteTemplate = `{
  // шаблон коммерческого предложения
  "version": 1,
  "blocks": [
    {"type": "text", "id": "intro", "w": 400, "h": 40,
     "segments": [
       {"type": "text", "text": "Dear "},
       {"type": "variable", "key": "client.name"},
       {"type": "text", "text": ", total {{amount | currency}}"}
     ]},
    {"type": "table", "id": "fees", "y": 60, "w": 400, "h": 80,
     "headers": ["Service", "Hours"],
     "rows": [["{{service}}", "{{hours}}"]],
     "columnWidths": [50, 50]},
  ]
}`

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunPlainText(t *testing.T) {
	dir := t.TempDir()
	tpl := writeInput(t, dir, "quote.json", quoteTemplate)
	caseCtx := writeInput(t, dir, "case.json", `{"client": {"name": "Chen"}, "service": "Consult", "hours": 2}`)
	firmCtx := writeInput(t, dir, "firm.json", "```json\n{\"client\": {\"name\": \"Chen Mei\"}, \"amount\": 0}\n```")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-t", tpl, "-c", caseCtx, "-c", firmCtx}, &out))
	assert.Equal(t, "Dear Chen Mei, total NT$0\nService\tHours\nConsult\t2\n", out.String())
}

func TestRunWritesJSONAndXLSX(t *testing.T) {
	dir := t.TempDir()
	tpl := writeInput(t, dir, "quote.json", quoteTemplate)
	caseCtx := writeInput(t, dir, "case.json", `{"client": {"name": "Chen"}, "service": "Consult", "hours": 2}`)

	jsonOut := filepath.Join(dir, "out.json")
	require.NoError(t, run([]string{"-t", tpl, "-c", caseCtx, "-o", jsonOut}, nil))
	resolved, err := doctemplar.LoadSchema(jsonOut)
	require.NoError(t, err)
	intro := resolved.Blocks[0].(*doctemplar.TextBlock)
	assert.Equal(t, "Dear Chen, total NT$0", doctemplar.ResolveText(intro))

	xlsxOut := filepath.Join(dir, "out.xlsx")
	require.NoError(t, run([]string{"-t", tpl, "-c", caseCtx, "-o", xlsxOut}, nil))
	tb, err := doctemplar.ImportTable(xlsxOut, doctemplar.ExportSheet)
	require.NoError(t, err)
	// первая строка листа — текстовый блок
	assert.Equal(t, "Dear Chen, total NT$0", tb.Headers[0])

	assert.Error(t, run([]string{"-t", tpl, "-o", filepath.Join(dir, "out.pdf")}, nil))
	assert.Error(t, run([]string{"-c", caseCtx}, nil))
}

func TestRunImportTable(t *testing.T) {
	dir := t.TempDir()
	tpl := writeInput(t, dir, "quote.json", quoteTemplate)
	caseCtx := writeInput(t, dir, "case.json", `{"service": "Consult", "hours": 2}`)
	xlsx := filepath.Join(dir, "fees.xlsx")

	sc, err := doctemplar.LoadSchema(tpl)
	require.NoError(t, err)
	only := doctemplar.Schema{Version: 1, Blocks: []doctemplar.Block{sc.Blocks[1]}}
	require.NoError(t, doctemplar.WriteWorkbook(xlsx, only, doctemplar.Context{"service": "Consult", "hours": 2.0}, nil))

	merged := filepath.Join(dir, "merged.json")
	require.NoError(t, run([]string{"-t", tpl, "--import-table", xlsx, "-o", merged}, nil))
	out, err := doctemplar.LoadSchema(merged)
	require.NoError(t, err)
	require.Len(t, out.Blocks, 3)
	imported := out.Blocks[2].(*doctemplar.TableBlock)
	assert.Equal(t, []string{"Service", "Hours"}, imported.Headers)
	assert.Equal(t, [][]string{{"Consult", "2"}}, imported.Rows)
	assert.NotEmpty(t, imported.ID)

	var text bytes.Buffer
	require.NoError(t, run([]string{"-t", merged, "-c", caseCtx}, &text))
	assert.Contains(t, text.String(), "Consult\t2")
}
