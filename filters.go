package doctemplar

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

func builtinFilters() map[string]Filter {
	return map[string]Filter{
		"upper":    filterUpper,
		"lower":    filterLower,
		"trim":     filterTrim,
		"default":  filterDefault,
		"currency": filterCurrency,
		"date":     filterDate,
	}
}

func filterUpper(_ *Renderer, v interface{}, _ []interface{}) interface{} {
	if v == nil {
		return nil
	}
	return strings.ToUpper(toString(v))
}

func filterLower(_ *Renderer, v interface{}, _ []interface{}) interface{} {
	if v == nil {
		return nil
	}
	return strings.ToLower(toString(v))
}

func filterTrim(_ *Renderer, v interface{}, _ []interface{}) interface{} {
	if v == nil {
		return nil
	}
	return strings.TrimSpace(toString(v))
}

// default('—') подставляет аргумент вместо пустого значения.
func filterDefault(_ *Renderer, v interface{}, args []interface{}) interface{} {
	if toString(v) != "" || len(args) == 0 {
		return v
	}
	return args[0]
}

// Символы валют в стиле Intl для английской локали.
var currencySymbols = map[string]string{
	"TWD": "NT$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"HKD": "HK$",
	"KRW": "₩",
	"SGD": "SGD ",
	"AUD": "A$",
}

// currency(code='TWD', digits=0): символ валюты и число с группировкой разрядов.
// Нечисловое или пустое значение форматируется как 0.
func filterCurrency(r *Renderer, v interface{}, args []interface{}) interface{} {
	code := r.cfg.Currency
	digits := r.cfg.CurrencyDigits
	if len(args) > 0 {
		if s, ok := args[0].(string); ok && s != "" {
			code = strings.ToUpper(s)
		}
	}
	if len(args) > 1 {
		if n, ok := args[1].(float64); ok && n >= 0 && n <= 8 {
			digits = int(n)
		}
	}
	amount, err := toNumber(v)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	sym, ok := currencySymbols[code]
	if !ok {
		sym = code + " "
	}
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := formatGrouped(r.cfg.Locale, amount, digits)
	if neg && s != "0" {
		return "-" + sym + s
	}
	return sym + s
}

func formatGrouped(locale string, v float64, digits int) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", number.Decimal(v, number.Scale(digits)))
}

// date(format='YYYY-MM-DD'): подстановка YYYY/MM/DD (и HH/mm/ss) по дате значения.
// Пустое значение — текущий момент; нераспознанная дата возвращается как есть.
func filterDate(r *Renderer, v interface{}, args []interface{}) interface{} {
	format := r.cfg.DateFormat
	if len(args) > 0 {
		if s, ok := args[0].(string); ok && s != "" {
			format = s
		}
	}
	var t time.Time
	if toString(v) == "" {
		t = r.now()
	} else {
		parsed, ok := parseDate(v, r.loc)
		if !ok {
			r.log.Debug("нераспознанная дата в фильтре date", "value", v)
			return v
		}
		t = parsed
	}
	t = t.In(r.loc)
	rep := strings.NewReplacer(
		"YYYY", strconv.Itoa(t.Year()),
		"MM", pad2(int(t.Month())),
		"DD", pad2(t.Day()),
		"HH", pad2(t.Hour()),
		"mm", pad2(t.Minute()),
		"ss", pad2(t.Second()),
	)
	return rep.Replace(format)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
}

func parseDate(v interface{}, loc *time.Location) (time.Time, bool) {
	switch vv := v.(type) {
	case time.Time:
		return vv, true
	case float64:
		// миллисекунды Unix, как у JSON-дат клиента
		return time.UnixMilli(int64(vv)), true
	case int64:
		return time.UnixMilli(vv), true
	case json.Number:
		n, err := vv.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(n), true
	case string:
		s := strings.TrimSpace(vv)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
