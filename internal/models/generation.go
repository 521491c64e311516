package models

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// Request defaults applied before binding client input
const (
	DefaultBPM    = 128
	DefaultKey    = "C"
	DefaultEnergy = 0.7
)

// GenerationRequest wraps the user's generation parameters
type GenerationRequest struct {
	Prompt   string       `json:"prompt" binding:"required,max=500"`
	Style    styles.Style `json:"style" binding:"required,oneof=house techno dubstep trance ambient drum_and_bass edm lo_fi"`
	BPM      int          `json:"bpm" binding:"gte=60,lte=200"`
	Duration int          `json:"duration" binding:"gte=5,lte=30"` // seconds
	Key      string       `json:"key" binding:"max=16"`
	Energy   float64      `json:"energy" binding:"gte=0,lte=1"`
	Seed     *int64       `json:"seed,omitempty"` // Optional seed for reproducibility
}

// NewGenerationRequest returns a request pre-filled with the defaults that
// apply to any field the client leaves out.
func NewGenerationRequest(defaultDuration int) GenerationRequest {
	return GenerationRequest{
		Style:    styles.DefaultStyle,
		BPM:      DefaultBPM,
		Duration: defaultDuration,
		Key:      DefaultKey,
		Energy:   DefaultEnergy,
	}
}

// Validate trims the free-text fields and checks every constraint. It is
// safe to call on a request that was already bound by gin.
func (r *GenerationRequest) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Key = strings.TrimSpace(r.Key)
	if r.Key == "" {
		r.Key = DefaultKey
	}
	if r.Prompt == "" {
		return errs.E(errs.Validation, "validate request", errors.New("prompt must not be empty"))
	}
	if err := binding.Validator.ValidateStruct(r); err != nil {
		return errs.E(errs.Validation, "validate request", err)
	}
	return nil
}

// GenerationMetadata describes one finished generation. It is returned to
// the caller and not stored.
type GenerationMetadata struct {
	Prompt            string       `json:"prompt"`
	Style             styles.Style `json:"style"`
	BPM               int          `json:"bpm"`
	Key               string       `json:"key"`
	Energy            float64      `json:"energy"`
	RequestedDuration int          `json:"requested_duration"`
	ActualDuration    float64      `json:"actual_duration"`
	SampleRate        int          `json:"sample_rate"`
	Device            string       `json:"device"`
	Model             string       `json:"model"`
}

// AudioInfo summarises a sample buffer
type AudioInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Samples         int     `json:"samples"`
	RMSLevel        float64 `json:"rms_level"`
	PeakLevel       float64 `json:"peak_level"`
	RMSDB           float64 `json:"rms_db"`
	PeakDB          float64 `json:"peak_db"`
}
