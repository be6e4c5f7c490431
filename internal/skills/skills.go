// Package skills загружает каталог skills — markdown-промптов с YAML frontmatter.
//
// Узел DAG может сослаться на skill по имени; тело skill становится
// системным промптом вызова модели.
package skills

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// skillFileName — имя файла skill внутри директории skill.
const skillFileName = "SKILL.md"

var (
	// ErrDuplicateSkill — два файла объявляют skill с одинаковым именем.
	ErrDuplicateSkill = errors.New("duplicate skill name")

	// ErrInvalidFrontmatter — frontmatter не парсится как YAML.
	ErrInvalidFrontmatter = errors.New("invalid skill frontmatter")
)

// Skill — один skill каталога.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	Body        string `json:"-"`
}

// frontmatter — поля заголовка SKILL.md.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog — набор skills, индексированный по имени.
// После загрузки только читается и безопасен для конкурентного доступа.
type Catalog struct {
	skills map[string]*Skill
}

// NewCatalog создаёт каталог из готовых skills.
func NewCatalog(items ...Skill) *Catalog {
	c := &Catalog{skills: make(map[string]*Skill, len(items))}
	for i := range items {
		s := items[i]
		c.skills[s.Name] = &s
	}
	return c
}

// Load читает каталог из директории.
//
// Подхватываются все SKILL.md (рекурсивно, имя по умолчанию — имя
// родительской директории) и *.md в корне dir (имя по умолчанию — имя
// файла без расширения). Пустой dir — пустой каталог.
func Load(dir string) (*Catalog, error) {
	c := NewCatalog()
	if dir == "" {
		return c, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		var defaultName string
		switch {
		case d.Name() == skillFileName:
			defaultName = filepath.Base(filepath.Dir(path))
		case filepath.Dir(path) == filepath.Clean(dir) && strings.HasSuffix(d.Name(), ".md"):
			defaultName = strings.TrimSuffix(d.Name(), ".md")
		default:
			return nil
		}

		skill, err := loadFile(path, defaultName)
		if err != nil {
			return err
		}

		if existing, ok := c.skills[skill.Name]; ok {
			return fmt.Errorf("%w: %q in %s and %s", ErrDuplicateSkill, skill.Name, existing.Path, skill.Path)
		}
		c.skills[skill.Name] = skill
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load skills from %s: %w", dir, err)
	}

	return c, nil
}

// loadFile читает один markdown-файл skill.
func loadFile(path, defaultName string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = defaultName
	}

	return &Skill{
		Name:        name,
		Description: strings.TrimSpace(meta.Description),
		Path:        path,
		Body:        strings.TrimSpace(body),
	}, nil
}

// parseFrontmatter отделяет YAML-заголовок между строками "---" от тела.
// Файл без заголовка целиком считается телом.
func parseFrontmatter(content []byte) (frontmatter, string, error) {
	var meta frontmatter

	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return meta, string(content), nil
	}

	rest := content[len("---\n"):]

	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---")):
		body = rest[len("---"):]
	default:
		idx := bytes.Index(rest, []byte("\n---"))
		if idx == -1 {
			return meta, string(content), nil
		}
		header = rest[:idx]
		body = rest[idx+len("\n---"):]
	}
	body = bytes.TrimPrefix(body, []byte("\n"))

	if len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return meta, "", fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return meta, string(body), nil
}

// Get возвращает skill по имени.
func (c *Catalog) Get(name string) (*Skill, bool) {
	s, ok := c.skills[name]
	return s, ok
}

// Has проверяет наличие skill. Подходит как engine.SkillLookup.
func (c *Catalog) Has(name string) bool {
	_, ok := c.skills[name]
	return ok
}

// List возвращает skills, отсортированные по имени.
func (c *Catalog) List() []Skill {
	list := make([]Skill, 0, len(c.skills))
	for _, s := range c.skills {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Len возвращает количество skills.
func (c *Catalog) Len() int {
	return len(c.skills)
}
