package achievement

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalogue []byte

type catalogueFile struct {
	Achievements []Definition `yaml:"achievements"`
}

// LoadRegistry читает каталог достижений в формате YAML.
func LoadRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogueFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode achievements: %w", err)
	}
	return NewRegistry(file.Achievements...)
}

// LoadRegistryFile читает каталог из файла.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open achievements file: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// DefaultRegistry возвращает встроенный каталог достижений.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultDefinitions()...)
	if err != nil {
		panic(fmt.Sprintf("achievement: invalid built-in catalogue: %v", err))
	}
	return reg
}

// DefaultDefinitions возвращает определения встроенного каталога.
func DefaultDefinitions() []Definition {
	var file catalogueFile
	if err := yaml.Unmarshal(defaultCatalogue, &file); err != nil {
		panic(fmt.Sprintf("achievement: decode built-in catalogue: %v", err))
	}
	return file.Achievements
}
