package doctemplar_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitaxru/doctemplar"
)

func TestDefaultConfig(t *testing.T) {
	cfg := doctemplar.DefaultConfig()
	assert.Equal(t, "TWD", cfg.Currency)
	assert.Equal(t, "zh-TW", cfg.Locale)
	assert.Equal(t, "YYYY-MM-DD", cfg.DateFormat)
	assert.Equal(t, "Asia/Taipei", cfg.Timezone)
	assert.Equal(t, doctemplar.DefaultTagColor, cfg.TagColor)
	assert.Equal(t, doctemplar.DefaultHeaderStyle, cfg.HeaderStyle)
	assert.Equal(t, "Asia/Taipei", cfg.Location().String())
	require.NoError(t, cfg.Validate())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "doctemplar.yaml", `
currency: USD
currency_digits: 2
locale: en-US
timezone: Europe/Berlin
grid_size: 8
header_style:
  bold: true
  align: left
  background_color: "#112233"
`)
	cfg, err := doctemplar.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 2, cfg.CurrencyDigits)
	assert.Equal(t, "en-US", cfg.Locale)
	assert.Equal(t, 8.0, cfg.GridSize)
	assert.Equal(t, "YYYY-MM-DD", cfg.DateFormat)
	assert.Equal(t, doctemplar.CellStyle{Bold: true, Align: "left", BackgroundColor: "#112233"}, cfg.HeaderStyle)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"lowercase currency": "currency: usd\n",
		"unknown timezone":   "timezone: Mars/Olympus\n",
		"bad tag color":      "tag_color: blue\n",
		"bad align":          "header_style:\n  align: middle\n",
		"not yaml":           "currency: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := doctemplar.LoadConfig(writeFile(t, "c.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := doctemplar.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
