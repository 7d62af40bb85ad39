package doctemplar

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config — настройки движка. Загружается из YAML, незаданные поля
// заполняются значениями по умолчанию.
type Config struct {
	Currency       string  `yaml:"currency" validate:"required,len=3,uppercase"`
	CurrencyDigits int     `yaml:"currency_digits" validate:"gte=0,lte=4"`
	Locale         string  `yaml:"locale" validate:"required,bcp47_language_tag"`
	DateFormat     string  `yaml:"date_format" validate:"required"`
	Timezone       string  `yaml:"timezone" validate:"required,timezone"`
	TagColor       string  `yaml:"tag_color" validate:"required,hexcolor"`
	GridSize       float64 `yaml:"grid_size" validate:"gte=0"`
	MinBlockWidth  float64 `yaml:"min_block_width" validate:"gt=0"`
	MinBlockHeight float64 `yaml:"min_block_height" validate:"gt=0"`
	// ColumnBaseWidth — ширина всей таблицы в символах Excel при экспорте.
	ColumnBaseWidth float64   `yaml:"column_base_width" validate:"gt=0"`
	HeaderStyle     CellStyle `yaml:"header_style"`
}

// DefaultConfig возвращает настройки по умолчанию (TWD, zh-TW, Asia/Taipei).
func DefaultConfig() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Currency == "" {
		cfg.Currency = "TWD"
	}
	if cfg.Locale == "" {
		cfg.Locale = "zh-TW"
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = "YYYY-MM-DD"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Taipei"
	}
	if cfg.TagColor == "" {
		cfg.TagColor = DefaultTagColor
	}
	if cfg.MinBlockWidth == 0 {
		cfg.MinBlockWidth = 20
	}
	if cfg.MinBlockHeight == 0 {
		cfg.MinBlockHeight = 20
	}
	if cfg.ColumnBaseWidth == 0 {
		cfg.ColumnBaseWidth = 100
	}
	if cfg.HeaderStyle == (CellStyle{}) {
		cfg.HeaderStyle = DefaultHeaderStyle
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет настройки.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location возвращает часовой пояс из настроек, при ошибке — time.Local.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LoadConfig читает YAML, применяет умолчания и валидирует результат.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("чтение конфигурации %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("разбор конфигурации %q: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
