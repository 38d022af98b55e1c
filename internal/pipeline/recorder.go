package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// Recorder stamps each decision with model and configuration identity plus
// the dampening rules that fired, for regulatory traceability. Hashes are
// computed once at construction; the threshold tables are locked for the
// process lifetime.
type Recorder struct {
	modelHash  string
	configHash string
}

// NewRecorder derives content hashes from the model version and the
// per-sport threshold tables.
func NewRecorder(modelVersion string, sports map[string]config.SportConfig) (*Recorder, error) {
	// json.Marshal sorts map keys, so the hash is stable across runs.
	encoded, err := json.Marshal(sports)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sport tables: %w", err)
	}

	modelSum := sha256.Sum256([]byte(modelVersion))
	configSum := sha256.Sum256(encoded)

	return &Recorder{
		modelHash:  hex.EncodeToString(modelSum[:8]),
		configHash: hex.EncodeToString(configSum[:8]),
	}, nil
}

// Stamp produces the version stamp for one decision.
func (r *Recorder) Stamp(triggers []string, now time.Time) models.VersionStamp {
	return models.VersionStamp{
		ModelHash:  r.modelHash,
		ConfigHash: r.configHash,
		Triggers:   append([]string{}, triggers...),
		Timestamp:  now,
	}
}

// ModelHash returns the model identity hash.
func (r *Recorder) ModelHash() string {
	return r.modelHash
}

// ConfigHash returns the configuration identity hash.
func (r *Recorder) ConfigHash() string {
	return r.configHash
}
