package doctemplar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Context — данные для подстановки в плейсхолдеры (дело, клиент, фирма).
// Пути адресуются через точку; поддерживаются как вложенные map, так и
// плоские ключи вида "client.name".
type Context map[string]interface{}

// Lookup возвращает значение по пути. Отсутствие любого сегмента даёт (nil, false).
func (c Context) Lookup(path string) (interface{}, bool) {
	path = strings.TrimSpace(path)
	if path == "" || c == nil {
		return nil, false
	}
	if v, ok := c[path]; ok {
		return v, true
	}
	return drill(map[string]interface{}(c), path)
}

// drill спускается по пути a.b[0].c; числовой сегмент после точки
// тоже считается индексом массива.
func drill(v interface{}, path string) (interface{}, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	rest := path
	for rest != "" {
		seg, tail := nextSeg(rest)
		if seg == "" {
			return nil, false
		}
		idxStr := seg
		if strings.HasPrefix(seg, "[") {
			idxStr = strings.Trim(seg, "[]")
		}
		switch cv := cur.(type) {
		case map[string]interface{}:
			nv, ok := cv[seg]
			if !ok {
				return nil, false
			}
			cur = nv
		case Context:
			nv, ok := cv[seg]
			if !ok {
				return nil, false
			}
			cur = nv
		case map[string]string:
			nv, ok := cv[seg]
			if !ok {
				return nil, false
			}
			cur = nv
		case []interface{}:
			i, err := strconv.Atoi(idxStr)
			if err != nil || i < 0 || i >= len(cv) {
				return nil, false
			}
			cur = cv[i]
		case []string:
			i, err := strconv.Atoi(idxStr)
			if err != nil || i < 0 || i >= len(cv) {
				return nil, false
			}
			cur = cv[i]
		default:
			return nil, false
		}
		rest = tail
	}
	return cur, true
}

func nextSeg(path string) (seg string, tail string) {
	if path == "" {
		return "", ""
	}
	if path[0] == '[' {
		if i := strings.Index(path, "]"); i >= 0 {
			seg = path[:i+1]
			if i+1 < len(path) && path[i+1] == '.' {
				tail = path[i+2:]
			} else {
				tail = path[i+1:]
			}
			return
		}
	}
	i := 0
	for i < len(path) && path[i] != '.' && path[i] != '[' {
		i++
	}
	seg = path[:i]
	if i < len(path) && path[i] == '.' {
		tail = path[i+1:]
	} else {
		tail = path[i:]
	}
	return
}

// toString приводит значение к строке для финальной подстановки; nil → "".
func toString(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		if vv == float64(int64(vv)) {
			return strconv.FormatInt(int64(vv), 10)
		}
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case float32:
		return toString(float64(vv))
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case json.Number:
		return vv.String()
	case bool:
		if vv {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, len(vv))
		for i, it := range vv {
			parts[i] = toString(it)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, _ := json.Marshal(vv)
		return string(b)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

// splitTopLevel делит строку по sep вне кавычек и круглых скобок.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var b strings.Builder
	quote := byte(0)
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			b.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case ch == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(b.String()))
			b.Reset()
			continue
		}
		b.WriteByte(ch)
	}
	parts = append(parts, strings.TrimSpace(b.String()))
	return parts
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"')
}
