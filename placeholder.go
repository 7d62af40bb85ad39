package doctemplar

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Плейсхолдеры вида {{ path | filter(arg1, arg2) | filter2 }}.
// Разбор разрешающий: всё, что не похоже на токен, остаётся текстом как есть.

var rxPlaceholder = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Filter преобразует значение с учётом аргументов вызова.
type Filter func(r *Renderer, v interface{}, args []interface{}) interface{}

// Renderer подставляет значения контекста в строки шаблона.
type Renderer struct {
	cfg     Config
	filters map[string]Filter
	now     func() time.Time
	loc     *time.Location
	log     *slog.Logger
}

// Option настраивает Renderer.
type Option func(*Renderer)

// WithConfig задаёт настройки (валюта, локаль, формат даты, часовой пояс).
func WithConfig(cfg Config) Option {
	return func(r *Renderer) { r.cfg = cfg }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithLogger задаёт логгер для диагностики деградаций.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithFilter регистрирует дополнительный фильтр.
func WithFilter(name string, f Filter) Option {
	return func(r *Renderer) { r.filters[name] = f }
}

// NewRenderer создаёт рендерер со встроенными фильтрами.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		cfg:     DefaultConfig(),
		filters: builtinFilters(),
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.loc = r.cfg.Location()
	return r
}

// RegisterFilter добавляет или заменяет фильтр.
func (r *Renderer) RegisterFilter(name string, f Filter) { r.filters[name] = f }

// Config возвращает настройки рендерера.
func (r *Renderer) Config() Config { return r.cfg }

var defaultRenderer = NewRenderer()

// Render подставляет контекст в строку рендерером по умолчанию.
func Render(s string, ctx Context) string { return defaultRenderer.Render(s, ctx) }

// Render заменяет каждый токен результатом конвейера. Текст вне токенов
// копируется без изменений, отсутствующие значения дают пустую строку.
func (r *Renderer) Render(s string, ctx Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	ms := rxPlaceholder.FindAllStringSubmatchIndex(s, -1)
	if len(ms) == 0 {
		return s
	}
	var sb strings.Builder
	last := 0
	for _, m := range ms {
		start, end := m[0], m[1]
		inner := s[m[2]:m[3]]
		if strings.TrimSpace(inner) == "" {
			continue
		}
		sb.WriteString(s[last:start])
		sb.WriteString(toString(r.Eval(inner, ctx)))
		last = end
	}
	sb.WriteString(s[last:])
	return sb.String()
}

// Eval вычисляет содержимое одного токена (без фигурных скобок).
func (r *Renderer) Eval(inner string, ctx Context) interface{} {
	parts := splitTopLevel(inner, '|')
	v := r.resolveHead(parts[0], ctx)
	for _, call := range parts[1:] {
		if call == "" {
			continue
		}
		name, args := parseFilterCall(call)
		if strings.HasPrefix(name, "color:") {
			// Подсказка цвета для чипа редактора, на значение не влияет.
			continue
		}
		f, ok := r.filters[name]
		if !ok {
			r.log.Debug("неизвестный фильтр, значение без изменений", "filter", name, "token", inner)
			continue
		}
		v = f(r, v, args)
	}
	return v
}

func (r *Renderer) resolveHead(head string, ctx Context) interface{} {
	head = strings.TrimSpace(head)
	switch {
	case isQuoted(head):
		return head[1 : len(head)-1]
	case head == "now":
		return r.now().UTC().Format("2006-01-02T15:04:05.000Z")
	case head == "sys.day":
		return strconv.Itoa(r.now().In(r.loc).Day())
	}
	v, ok := ctx.Lookup(head)
	if !ok {
		return nil
	}
	return v
}

// parseFilterCall разбирает "name(a, 'b', 3)" в имя и аргументы.
func parseFilterCall(call string) (string, []interface{}) {
	call = strings.TrimSpace(call)
	open := strings.IndexByte(call, '(')
	if open < 0 || !strings.HasSuffix(call, ")") {
		return call, nil
	}
	name := strings.TrimSpace(call[:open])
	inner := strings.TrimSpace(call[open+1 : len(call)-1])
	if inner == "" {
		return name, nil
	}
	raw := splitTopLevel(inner, ',')
	args := make([]interface{}, 0, len(raw))
	for _, a := range raw {
		args = append(args, parseArg(a))
	}
	return name, args
}

// parseArg: строка в кавычках — как есть, число — float64, иначе голая строка.
func parseArg(a string) interface{} {
	if isQuoted(a) {
		return a[1 : len(a)-1]
	}
	if n, err := strconv.ParseFloat(a, 64); err == nil {
		return n
	}
	return a
}
