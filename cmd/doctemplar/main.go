// doctemplar подставляет данные дела, клиента и фирмы в шаблон документа
// и сохраняет результат в Excel, JSON или простой текст.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nikitaxru/doctemplar"
)

type options struct {
	template    string
	contexts    []string
	config      string
	output      string
	importTable string
	sheet       string
	watch       bool
	verbose     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("doctemplar", pflag.ContinueOnError)
	fs.StringVarP(&opts.template, "template", "t", "", "шаблон документа (JSON/JSONC)")
	fs.StringArrayVarP(&opts.contexts, "context", "c", nil, "файл контекста JSON; можно несколько, поздний перекрывает ранний")
	fs.StringVar(&opts.config, "config", "", "настройки YAML (валюта, локаль, часовой пояс)")
	fs.StringVarP(&opts.output, "output", "o", "", "результат: .xlsx, .json или .txt; без флага — текст в stdout")
	fs.StringVar(&opts.importTable, "import-table", "", "добавить в шаблон таблицу из книги Excel и сохранить шаблон в -o")
	fs.StringVar(&opts.sheet, "sheet", "", "лист для --import-table (по умолчанию первый)")
	fs.BoolVarP(&opts.watch, "watch", "w", false, "перерисовывать при изменении входных файлов")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "подробный журнал")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.template == "" {
		fs.PrintDefaults()
		return errors.New("не задан шаблон (-t)")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opts.importTable != "" {
		return importTable(opts)
	}

	if err := render(opts, logger, stdout); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	watched := append([]string{opts.template}, opts.contexts...)
	if opts.config != "" {
		watched = append(watched, opts.config)
	}
	log.Printf("👀 Ожидание изменений (%d файлов), Ctrl+C для выхода", len(watched))
	return doctemplar.Watch(ctx, watched, doctemplar.DefaultDebounce, logger, func() error {
		log.Printf("🔁 Входные файлы изменились, перерисовка...")
		return render(opts, logger, stdout)
	})
}

func render(opts options, logger *slog.Logger, stdout io.Writer) error {
	cfg := doctemplar.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = doctemplar.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	schema, err := doctemplar.LoadSchema(opts.template)
	if err != nil {
		return fmt.Errorf("шаблон %s: %w", opts.template, err)
	}
	sources := make([]doctemplar.Context, 0, len(opts.contexts))
	for _, p := range opts.contexts {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		c, err := doctemplar.DecodeContext(data)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		sources = append(sources, c)
	}
	data := doctemplar.MergeContexts(sources...)
	r := doctemplar.NewRenderer(doctemplar.WithConfig(cfg), doctemplar.WithLogger(logger))

	switch strings.ToLower(filepath.Ext(opts.output)) {
	case ".xlsx":
		return doctemplar.WriteWorkbook(opts.output, schema, data, r)
	case ".json":
		out, err := doctemplar.EncodeSchema(r.Resolve(schema, data))
		if err != nil {
			return err
		}
		return os.WriteFile(opts.output, out, 0o644)
	case ".txt":
		return os.WriteFile(opts.output, []byte(plainText(r, schema, data)), 0o644)
	case "":
		_, err := io.WriteString(stdout, plainText(r, schema, data))
		return err
	default:
		return fmt.Errorf("неизвестный формат результата %q", opts.output)
	}
}

// plainText печатает текстовые блоки и таблицы в порядке отрисовки.
func plainText(r *doctemplar.Renderer, s doctemplar.Schema, ctx doctemplar.Context) string {
	resolved := r.Resolve(s, ctx)
	var sb strings.Builder
	for _, b := range resolved.Ordered() {
		switch bb := b.(type) {
		case *doctemplar.TextBlock:
			sb.WriteString(doctemplar.ResolveText(bb))
			sb.WriteByte('\n')
		case *doctemplar.TableBlock:
			sb.WriteString(strings.Join(bb.Headers, "\t"))
			sb.WriteByte('\n')
			for _, row := range bb.Rows {
				sb.WriteString(strings.Join(row, "\t"))
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

func importTable(opts options) error {
	if opts.output == "" {
		return errors.New("--import-table требует -o для сохранения шаблона")
	}
	schema, err := doctemplar.LoadSchema(opts.template)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if schema.Blocks == nil {
		schema = doctemplar.NewSchema()
	}
	tb, err := doctemplar.ImportTable(opts.importTable, opts.sheet)
	if err != nil {
		return fmt.Errorf("импорт %s: %w", opts.importTable, err)
	}
	y := 0.0
	for _, b := range schema.Blocks {
		p := b.Place()
		y = max(y, p.Y+p.H)
	}
	tb.Placement = doctemplar.Placement{X: 0, Y: y + 20, W: 600, H: 40 * float64(tb.NumRows()+1)}
	cfg := doctemplar.DefaultConfig()
	schema, added := doctemplar.NewCanvas(cfg).AddBlock(schema, tb)
	if err := doctemplar.SaveSchema(opts.output, schema); err != nil {
		return err
	}
	log.Printf("✅ Таблица %s (%d×%d) добавлена в %s", added.Place().ID, tb.NumRows(), tb.NumCols(), opts.output)
	return nil
}
