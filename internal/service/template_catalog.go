package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexanderramin/milestones/internal/domain"
)

type templateYAML struct {
	Head     string   `yaml:"head"`
	SubHead  string   `yaml:"sub_head"`
	SubHeads []string `yaml:"sub_heads"`
}

// catalogYAML maps department to month key ("1".."12", month names, or
// "default") to headings.
type catalogYAML struct {
	Departments map[string]map[string]templateYAML `yaml:"departments"`
}

// TemplateCatalog is the static (department, month) to meeting template
// lookup.
type TemplateCatalog struct {
	byDept map[string]map[int]domain.MeetingTemplate
}

// EmptyTemplateCatalog returns a catalog with no entries.
func EmptyTemplateCatalog() *TemplateCatalog {
	return &TemplateCatalog{byDept: make(map[string]map[int]domain.MeetingTemplate)}
}

// LoadTemplateCatalog reads a YAML catalog. A missing file yields an empty
// catalog.
func LoadTemplateCatalog(path string) (*TemplateCatalog, error) {
	if path == "" {
		return EmptyTemplateCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EmptyTemplateCatalog(), nil
		}
		return nil, fmt.Errorf("reading template catalog: %w", err)
	}
	return ParseTemplateCatalog(data)
}

// ParseTemplateCatalog parses catalog YAML.
func ParseTemplateCatalog(data []byte) (*TemplateCatalog, error) {
	var raw catalogYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing template catalog: %w", err)
	}
	c := EmptyTemplateCatalog()
	for dept, months := range raw.Departments {
		key := strings.ToLower(strings.TrimSpace(dept))
		if c.byDept[key] == nil {
			c.byDept[key] = make(map[int]domain.MeetingTemplate)
		}
		for monthKey, t := range months {
			m, err := parseCatalogMonth(monthKey)
			if err != nil {
				return nil, fmt.Errorf("template catalog %s: %w", dept, err)
			}
			if len(t.SubHeads) > len(domain.Stages) {
				return nil, fmt.Errorf("template catalog %s/%s: at most %d sub_heads", dept, monthKey, len(domain.Stages))
			}
			mt := domain.MeetingTemplate{Head: t.Head, SubHead: t.SubHead}
			copy(mt.SubHeads[:], t.SubHeads)
			c.byDept[key][m] = mt
		}
	}
	return c, nil
}

// parseCatalogMonth returns 1-12, or 0 for "default".
func parseCatalogMonth(key string) (int, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "default" || k == "*" {
		return 0, nil
	}
	m, err := domain.ParseMonth(k)
	if err != nil {
		return 0, fmt.Errorf("invalid month key %q", key)
	}
	return m, nil
}

// Lookup returns the template for (department, month), falling back to the
// department's default entry.
func (c *TemplateCatalog) Lookup(department string, month int) (domain.MeetingTemplate, bool) {
	if c == nil {
		return domain.MeetingTemplate{}, false
	}
	months, ok := c.byDept[strings.ToLower(strings.TrimSpace(department))]
	if !ok {
		return domain.MeetingTemplate{}, false
	}
	if t, ok := months[month]; ok {
		return t, true
	}
	t, ok := months[0]
	return t, ok
}
