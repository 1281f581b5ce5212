package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/domain"
)

const catalogYAMLFixture = `
departments:
  Engineering:
    default:
      head: Engineering sync
      sub_heads: [Goals, Progress, Retro]
    3:
      head: Quarter close
      sub_head: Wrap-up
      sub_heads: [Scope, Delivery]
    Dec:
      head: Year end
`

func TestParseTemplateCatalog_Lookup(t *testing.T) {
	c, err := ParseTemplateCatalog([]byte(catalogYAMLFixture))
	require.NoError(t, err)

	march, ok := c.Lookup("engineering", 3)
	require.True(t, ok)
	assert.Equal(t, "Quarter close", march.Head)
	assert.Equal(t, "Wrap-up", march.SubHead)
	assert.Equal(t, "Delivery", march.StageHeading(domain.StageD2))
	assert.Equal(t, "Stage D3", march.StageHeading(domain.StageD3))

	dec, ok := c.Lookup("Engineering", 12)
	require.True(t, ok)
	assert.Equal(t, "Year end", dec.Head)

	other, ok := c.Lookup("Engineering", 7)
	require.True(t, ok, "falls back to the department default")
	assert.Equal(t, "Engineering sync", other.Head)

	_, ok = c.Lookup("Marketing", 3)
	assert.False(t, ok)
}

func TestParseTemplateCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad month": `
departments:
  Sales:
    thirteenth: {head: x}
`,
		"too many sub heads": `
departments:
  Sales:
    default: {sub_heads: [a, b, c, d]}
`,
		"not yaml": "departments: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplateCatalog([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplateCatalog_MissingFileIsEmpty(t *testing.T) {
	c, err := LoadTemplateCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	_, ok := c.Lookup("Engineering", 1)
	assert.False(t, ok)
}

func TestLoadTemplateCatalog_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAMLFixture), 0o644))

	c, err := LoadTemplateCatalog(path)
	require.NoError(t, err)
	tmpl, ok := c.Lookup("Engineering", 3)
	require.True(t, ok)
	assert.Equal(t, "Quarter close", tmpl.Head)
}
