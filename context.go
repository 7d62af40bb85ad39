package doctemplar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Данные контекста приходят от сервисов дела, клиента и фирмы как JSON.
// Иногда JSON обёрнут в тройные кавычки ``` ... ``` — снимаем обёртку.
var fenceRx = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")

func sanitizeJSONBlock(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	m := fenceRx.FindStringSubmatch(s)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// DecodeContext разбирает JSON-объект в Context. Пустой ввод даёт пустой контекст.
func DecodeContext(data []byte) (Context, error) {
	s := strings.TrimSpace(sanitizeJSONBlock(string(data)))
	if s == "" {
		return Context{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	var v map[string]interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("контекст: %w", err)
	}
	return Context(v), nil
}

// MergeContexts сливает источники глубоко; при конфликте побеждает более поздний.
func MergeContexts(sources ...Context) Context {
	out := Context{}
	for _, src := range sources {
		mergeInto(out, src)
	}
	return out
}

func mergeInto(dst map[string]interface{}, src map[string]interface{}) {
	for k, v := range src {
		sv, ok := asMap(v)
		if !ok {
			dst[k] = v
			continue
		}
		dv, ok := asMap(dst[k])
		if !ok {
			dv = map[string]interface{}{}
		} else {
			dv = copyMap(dv)
		}
		mergeInto(dv, sv)
		dst[k] = dv
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch vv := v.(type) {
	case map[string]interface{}:
		return vv, true
	case Context:
		return map[string]interface{}(vv), true
	}
	return nil, false
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
