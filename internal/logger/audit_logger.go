// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for pipeline stage
// transitions. Every event carries the contest+market key so a decision can
// be reconstructed end to end from logs alone.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogIntegrityResult logs the market integrity verification outcome.
func (al *AuditLogger) LogIntegrityResult(marketKey, sport string, passed, stale bool, ageHours float64, warnings []string) {
	al.WithFields(logrus.Fields{
		"market_key": marketKey,
		"sport":      sport,
		"passed":     passed,
		"stale":      stale,
		"age_hours":  ageHours,
		"warnings":   warnings,
	}).Info("Market integrity verified")
}

// LogStructuralFailure logs a hard verification failure. Logged even when
// the caller has already cancelled downstream work.
func (al *AuditLogger) LogStructuralFailure(marketKey, sport, reason string) {
	al.WithFields(logrus.Fields{
		"market_key": marketKey,
		"sport":      sport,
		"reason":     reason,
	}).Warn("Structural verification failure")
}

// LogSimulationRun logs a completed simulation run.
func (al *AuditLogger) LogSimulationRun(marketKey string, sampleCount int, seed int64, median, mean, variance float64, durationMs int64) {
	al.WithFields(logrus.Fields{
		"market_key":   marketKey,
		"sample_count": sampleCount,
		"seed":         seed,
		"median":       median,
		"mean":         mean,
		"variance":     variance,
		"duration_ms":  durationMs,
	}).Info("Simulation run complete")
}

// LogClampApplied logs a reality-check adjustment.
func (al *AuditLogger) LogClampApplied(marketKey string, raw, clamped float64, passed bool, reasons []string) {
	al.WithFields(logrus.Fields{
		"market_key": marketKey,
		"raw":        raw,
		"clamped":    clamped,
		"passed":     passed,
		"reasons":    reasons,
	}).Info("Reality check applied")
}

// LogDecompositionFlags logs structural anomaly flags.
func (al *AuditLogger) LogDecompositionFlags(marketKey string, flags []string, paceDelta, efficiencyDelta float64) {
	al.WithFields(logrus.Fields{
		"market_key":       marketKey,
		"flags":            flags,
		"pace_delta":       paceDelta,
		"efficiency_delta": efficiencyDelta,
	}).Warn("Decomposition flags raised")
}

// LogCalibrationPenalty logs a single calibration layer firing.
func (al *AuditLogger) LogCalibrationPenalty(marketKey, layer, reason string, probability, edge, confidence float64) {
	al.WithFields(logrus.Fields{
		"market_key":  marketKey,
		"layer":       layer,
		"reason":      reason,
		"probability": probability,
		"edge":        edge,
		"confidence":  confidence,
	}).Info("Calibration penalty applied")
}

// LogDecisionRecorded logs the terminal decision record.
func (al *AuditLogger) LogDecisionRecorded(decisionID, marketKey, sport, pickState string, probability, edge, confidence float64, blockReasons, triggers []string) {
	al.WithFields(logrus.Fields{
		"decision_id":   decisionID,
		"market_key":    marketKey,
		"sport":         sport,
		"pick_state":    pickState,
		"probability":   probability,
		"edge":          edge,
		"confidence":    confidence,
		"block_reasons": blockReasons,
		"triggers":      triggers,
	}).Info("Decision recorded")
}

// LogSnapshotPublished logs an atomic calibration snapshot swap.
func (al *AuditLogger) LogSnapshotPublished(sport string, snapshotID string, biasVsActual, biasVsMarket, dampFactor float64, bootstrap bool, computedAt time.Time) {
	al.WithFields(logrus.Fields{
		"sport":          sport,
		"snapshot_id":    snapshotID,
		"bias_vs_actual": biasVsActual,
		"bias_vs_market": biasVsMarket,
		"damp_factor":    dampFactor,
		"bootstrap":      bootstrap,
		"computed_at":    computedAt.Unix(),
	}).Info("Calibration snapshot published")
}
