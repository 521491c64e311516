package prompt

import (
	"fmt"
	"strings"

	"github.com/liujianjie/BeatForgeAI/internal/models"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// Energy descriptors, one per tier
const (
	EnergyHigh     = "high energy, intense, powerful"
	EnergyModerate = "moderate energy, groovy"
	EnergyLow      = "low energy, calm, subtle"
)

// QualitySuffix closes every prompt
const QualitySuffix = "high quality, professional production, stereo"

const (
	separator       = ", "
	highEnergyFloor = 0.8
	midEnergyFloor  = 0.5
)

// Builder turns a generation request into the text prompt sent to the music
// model. Models weigh earlier words more heavily, so segment order is fixed.
type Builder struct{}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{}
}

// Build composes style prefix, user text, tempo, key, energy and quality
// suffix. Empty segments are dropped.
func (b *Builder) Build(req models.GenerationRequest, style styles.Entry) string {
	parts := []string{
		style.PromptPrefix,
		req.Prompt,
		fmt.Sprintf("%d BPM", req.BPM),
		KeyDescriptor(req.Key),
		EnergyDescriptor(req.Energy),
		QualitySuffix,
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, separator)
}

// KeyDescriptor returns "key of X", or "" for C which is left implicit.
func KeyDescriptor(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || key == models.DefaultKey {
		return ""
	}
	return "key of " + key
}

// EnergyDescriptor maps energy in [0,1] to one of three tiers. Lower bounds
// are inclusive: 0.8 is high and 0.5 is moderate.
func EnergyDescriptor(energy float64) string {
	switch {
	case energy >= highEnergyFloor:
		return EnergyHigh
	case energy >= midEnergyFloor:
		return EnergyModerate
	default:
		return EnergyLow
	}
}
