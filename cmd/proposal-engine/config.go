// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// credentialKeys are bound even though the defaults leave them empty, so
// that environment variables can supply them.
var credentialKeys = []string{
	"blueprint.api_key", "blueprint.base_url",
	"generation.api_key", "generation.base_url",
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("PROPOSAL_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig registers every default as a viper key, then decodes file,
// environment and default values into a PipelineConfig.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	if err := setDefaults(v, types.DefaultPipelineConfig()); err != nil {
		return types.PipelineConfig{}, err
	}

	var c types.PipelineConfig
	err := v.Unmarshal(&c,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)),
		func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "yaml"
			dc.Squash = true
		},
	)
	if err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper, def types.PipelineConfig) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	setTree(v, "", tree)
	for _, k := range credentialKeys {
		v.SetDefault(k, "")
	}
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		if sub, ok := val.(map[string]any); ok {
			setTree(v, prefix+k+".", sub)
			continue
		}
		v.SetDefault(prefix+k, val)
	}
}
