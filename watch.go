package doctemplar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce — пауза после последнего события перед перерисовкой.
const DefaultDebounce = 150 * time.Millisecond

// Watch следит за файлами шаблона, контекста и настроек и вызывает onChange
// после каждой серии изменений. Редакторы часто пишут файл через rename,
// поэтому наблюдаем каталоги и фильтруем события по имени. Блокирует до
// отмены ctx; onChange вызывается из той же горутины, ошибки только логируются.
func Watch(ctx context.Context, paths []string, debounce time.Duration, log *slog.Logger, onChange func() error) error {
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("наблюдатель файлов: %w", err)
	}
	defer w.Close()

	wanted := make(map[string]struct{}, len(paths))
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("наблюдение за %s: %w", d, err)
		}
	}
	log.Info("наблюдение за файлами запущено", "files", len(wanted), "debounce_ms", debounce.Milliseconds())

	// onChange вызывается только из этого цикла
	var (
		timer *time.Timer
		fired <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fired:
			fired = nil
			if err := onChange(); err != nil {
				log.Error("перерисовка не удалась", "error", err)
			}
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("канал событий закрыт")
			}
			if _, ok := wanted[filepath.Clean(ev.Name)]; !ok {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("изменение файла", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fired = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("канал ошибок закрыт")
			}
			log.Error("ошибка наблюдателя", "error", err)
		}
	}
}
