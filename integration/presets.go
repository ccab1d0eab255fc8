package integration

import "fmt"

// Package integration bundles per-provider RPC settings into named profiles.
// Hosted providers accept wide eth_getLogs ranges; public endpoints cap the
// range lower and rate-limit harder, so they get smaller chunks.
//
// Usage:
//   p := integration.AlchemyPreset() // paid endpoint
//   p := integration.PublicPreset()  // polygon-rpc.com, ankr

// PresetConfig captures the RPC parameters that vary across providers.
type PresetConfig struct {
	Name      string
	ChunkSize uint64 // blocks per eth_getLogs query
	Endpoints []string
}

// PublicEndpoints are the free fallbacks tried after a configured endpoint.
var PublicEndpoints = []string{
	"https://polygon-rpc.com",
	"https://rpc.ankr.com/polygon",
}

func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:      "default",
		ChunkSize: 2000,
		Endpoints: append([]string(nil), PublicEndpoints...),
	}
}

// AlchemyPreset is for a hosted endpoint supplied via POLYGON_RPC_URL.
func AlchemyPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "alchemy"
	cfg.ChunkSize = 2000
	return cfg
}

// PublicPreset halves the chunk to stay under public range caps.
func PublicPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "public"
	cfg.ChunkSize = 1000
	return cfg
}

// GetPresetByName looks up a preset by name.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "alchemy":
		return AlchemyPreset(), nil
	case "public":
		return PublicPreset(), nil
	case "default", "":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: alchemy, public, default)", name)
	}
}

// ApplyPreset merges the non-zero fields of preset into target.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.ChunkSize > 0 {
		target.ChunkSize = preset.ChunkSize
	}
	if len(preset.Endpoints) > 0 {
		target.Endpoints = append([]string(nil), preset.Endpoints...)
	}
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
