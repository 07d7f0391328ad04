package config

// ModelInfo contains static information about a known model. This data is
// hardcoded in the application, not user-configurable.
type ModelInfo struct {
	InputCPM         float64 // Cost per million input tokens (USD)
	OutputCPM        float64 // Cost per million output tokens (USD)
	MaxContextTokens int     // Maximum context window size in tokens
	MaxOutputTokens  int     // Maximum output tokens per request
}

// KnownModels contains pricing and sizing for the models the registry knows.
// Unknown models still work; they fall back to conservative defaults.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	"claude-3-7-sonnet-latest": {
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  64000,
	},
	"claude-3-7-sonnet-20250219": {
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  64000,
	},
	"claude-3-5-sonnet-latest": {
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-3-5-sonnet-20241022": {
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-3-5-sonnet-20240620": {
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-3-5-haiku-latest": {
		InputCPM:         0.8,
		OutputCPM:        4.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-3-5-haiku-20241022": {
		InputCPM:         0.8,
		OutputCPM:        4.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-3-opus-latest": {
		InputCPM:         15.0,
		OutputCPM:        75.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  4096,
	},
	"claude-3-opus-20240229": {
		InputCPM:         15.0,
		OutputCPM:        75.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  4096,
	},
	"claude-3-haiku-20240307": {
		InputCPM:         0.25,
		OutputCPM:        1.25,
		MaxContextTokens: 200000,
		MaxOutputTokens:  4096,
	},
}

// GetModelInfo returns the registry entry for a model, or conservative
// defaults and false when the model is not listed.
func GetModelInfo(name string) (ModelInfo, bool) {
	if info, ok := KnownModels[name]; ok {
		return info, true
	}
	return ModelInfo{
		MaxContextTokens: 200000,
		MaxOutputTokens:  DefaultMaxTokens,
	}, false
}

// Cost returns the USD cost of a call against this model. Unknown models
// carry zero pricing, so their cost reports as zero rather than failing.
func (m ModelInfo) Cost(inputTokens, outputTokens int) float64 {
	inputCost := (float64(inputTokens) / 1_000_000.0) * m.InputCPM
	outputCost := (float64(outputTokens) / 1_000_000.0) * m.OutputCPM
	return inputCost + outputCost
}
