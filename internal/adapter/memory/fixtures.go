package memory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest lists recorded pages. A page with several files grows one file per scroll.
type Manifest struct {
	Pages []struct {
		URL   string   `yaml:"url"`
		Files []string `yaml:"files"`
	} `yaml:"pages"`
}

// LoadSite reads dir/manifest.yaml and the HTML files it names, relative to dir.
func LoadSite(dir string) (*Site, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read fixture manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse fixture manifest: %w", err)
	}

	site := NewSite()
	for _, p := range m.Pages {
		if p.URL == "" || len(p.Files) == 0 {
			return nil, fmt.Errorf("fixture page %q: url and files are required", p.URL)
		}
		stages := make([]string, 0, len(p.Files))
		for _, name := range p.Files {
			html, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("fixture page %s: %w", p.URL, err)
			}
			stages = append(stages, string(html))
		}
		site.ScrollPage(p.URL, stages...)
	}
	return site, nil
}
