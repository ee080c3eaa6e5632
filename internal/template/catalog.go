package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

//go:embed catalogs/*.yaml
var builtinCatalogs embed.FS

// catalogFile is the YAML shape of one template catalog.
type catalogFile struct {
	Language  string `yaml:"language"`
	Templates []struct {
		EventType string `yaml:"event_type"`
		Platform  string `yaml:"platform"`
		Header    string `yaml:"header"`
		Body      string `yaml:"body"`
		Footer    string `yaml:"footer"`
		Options   []struct {
			ID   string `yaml:"id"`
			Text string `yaml:"text"`
		} `yaml:"options"`
	} `yaml:"templates"`
}

// Catalog holds the built-in templates keyed by (event type, platform,
// language). Platform "" entries apply to every platform.
type Catalog struct {
	templates map[string]models.MessageTemplate
}

func catalogKey(eventType models.EventType, platform models.Platform, language string) string {
	return string(eventType) + "|" + string(platform) + "|" + language
}

// LoadBuiltinCatalog parses the catalogs compiled into the binary.
func LoadBuiltinCatalog() (*Catalog, error) {
	return loadCatalogFS(builtinCatalogs, "catalogs")
}

// LoadCatalogDir parses *.yaml catalogs from a directory on disk, for
// deployments that ship their own catalogs.
func LoadCatalogDir(dir string) (*Catalog, error) {
	return loadCatalogFS(os.DirFS(dir), ".")
}

func loadCatalogFS(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	c := &Catalog{templates: make(map[string]models.MessageTemplate)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", entry.Name(), err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", entry.Name(), err)
		}
		if file.Language == "" {
			return nil, fmt.Errorf("catalog %s is missing a language", entry.Name())
		}
		for _, raw := range file.Templates {
			if raw.EventType == "" || raw.Body == "" {
				return nil, fmt.Errorf("catalog %s has a template without event_type or body", entry.Name())
			}
			tmpl := models.MessageTemplate{
				EventType: models.EventType(raw.EventType),
				Platform:  models.Platform(raw.Platform),
				Language:  file.Language,
				Header:    raw.Header,
				Body:      raw.Body,
				Footer:    raw.Footer,
			}
			for _, opt := range raw.Options {
				tmpl.Options = append(tmpl.Options, models.ResponseOption{ID: opt.ID, Text: opt.Text})
			}
			c.templates[catalogKey(tmpl.EventType, tmpl.Platform, file.Language)] = tmpl
		}
	}
	return c, nil
}

// Lookup finds a template for (event type, platform, language), falling
// back to the platform-agnostic entry for the same type and language.
func (c *Catalog) Lookup(eventType models.EventType, platform models.Platform, language string) (models.MessageTemplate, bool) {
	if tmpl, ok := c.templates[catalogKey(eventType, platform, language)]; ok {
		return tmpl, true
	}
	tmpl, ok := c.templates[catalogKey(eventType, "", language)]
	return tmpl, ok
}
