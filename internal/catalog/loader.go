package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type itemsFile struct {
	Items map[string]*ItemDef `yaml:"items"`
}

type monstersFile struct {
	Monsters map[string]*MonsterDef `yaml:"monsters"`
}

type bossesFile struct {
	Bosses map[string]*BossDef `yaml:"bosses"`
}

// Load reads items.yaml, monsters.yaml and bosses.yaml from dir and
// validates the result. A missing monsters or bosses file is allowed.
func Load(dir string) (*Catalog, error) {
	var items itemsFile
	if err := readYAML(filepath.Join(dir, "items.yaml"), &items, true); err != nil {
		return nil, err
	}
	var monsters monstersFile
	if err := readYAML(filepath.Join(dir, "monsters.yaml"), &monsters, false); err != nil {
		return nil, err
	}
	var bosses bossesFile
	if err := readYAML(filepath.Join(dir, "bosses.yaml"), &bosses, false); err != nil {
		return nil, err
	}

	c := New(items.Items, monsters.Monsters, bosses.Bosses)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid content in %s: %w", dir, err)
	}
	return c, nil
}

func readYAML(path string, out any, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
