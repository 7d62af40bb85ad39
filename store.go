package doctemplar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrTemplateNotFound — шаблон с таким именем отсутствует в хранилище.
var ErrTemplateNotFound = errors.New("template not found")

// DecodeSchema разбирает сохранённый шаблон. Допускаются комментарии и
// хвостовые запятые (JSONC), как в файлах, которые правят вручную.
func DecodeSchema(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return Schema{}, fmt.Errorf("разбор шаблона: %w", err)
	}
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	if s.Version > SchemaVersion {
		return Schema{}, fmt.Errorf("версия шаблона %d новее поддерживаемой %d", s.Version, SchemaVersion)
	}
	if s.Blocks == nil {
		s.Blocks = []Block{}
	}
	if err := ValidateSchema(s); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// EncodeSchema сериализует схему в JSON с отступами.
func EncodeSchema(s Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ValidateSchema проверяет теги полей и структурные инварианты таблиц.
func ValidateSchema(s Schema) error {
	var errs []error
	seen := make(map[string]struct{}, len(s.Blocks))
	for i, b := range s.Blocks {
		id := b.Place().ID
		if _, dup := seen[id]; dup && id != "" {
			errs = append(errs, fmt.Errorf("блок %d: повторный id %q", i, id))
		}
		seen[id] = struct{}{}
		if err := validate.Struct(b); err != nil {
			errs = append(errs, fmt.Errorf("блок %d (%s): %w", i, id, err))
		}
		if tb, ok := b.(*TableBlock); ok {
			if err := tb.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("таблица %d (%s): %w", i, id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// LoadSchema читает шаблон из файла.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	return DecodeSchema(data)
}

// SaveSchema атомарно записывает шаблон: во временный файл, затем rename.
func SaveSchema(path string, s Schema) error {
	data, err := EncodeSchema(s)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmpl-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Store — хранилище шаблонов: загрузка и сохранение схемы целиком.
type Store interface {
	Load(name string) (Schema, error)
	Save(name string, s Schema) error
	Delete(name string) error
	List() ([]string, error)
}

// DirStore хранит шаблоны файлами <name>.json в каталоге.
type DirStore struct {
	Dir string
}

var _ Store = DirStore{}

func (d DirStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("недопустимое имя шаблона %q", name)
	}
	return filepath.Join(d.Dir, name+".json"), nil
}

func (d DirStore) Load(name string) (Schema, error) {
	p, err := d.path(name)
	if err != nil {
		return Schema{}, err
	}
	s, err := LoadSchema(p)
	if errors.Is(err, os.ErrNotExist) {
		return Schema{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return s, err
}

func (d DirStore) Save(name string, s Schema) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := ValidateSchema(s); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	return SaveSchema(p, s)
}

func (d DirStore) Delete(name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return err
	}
	return nil
}

func (d DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
