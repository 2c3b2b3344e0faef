package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dgallion1/doxynav/internal/layout"
)

// ResolvePreset looks up a built-in preset and, when path is non-empty,
// overlays the fields set in the YAML file at path. A "name" key in the file
// selects the base preset and takes precedence over name.
func ResolvePreset(name, path string) (layout.Preset, error) {
	if path == "" {
		return layout.PresetByName(name)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return layout.Preset{}, fmt.Errorf("reading preset file %s: %w", path, err)
	}
	if n := k.String("name"); n != "" {
		name = n
	}

	preset, err := layout.PresetByName(name)
	if err != nil {
		return layout.Preset{}, fmt.Errorf("preset file %s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", &preset, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return layout.Preset{}, fmt.Errorf("unmarshalling preset file %s: %w", path, err)
	}
	if err := preset.Validate(); err != nil {
		return layout.Preset{}, fmt.Errorf("preset file %s: %w", path, err)
	}
	return preset, nil
}
