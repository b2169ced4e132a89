package proctor

import "time"

// DefaultSeverity is applied when a violation event carries no severity.
const DefaultSeverity = 10

// Tracker applies violation events to session state. The caller decides what
// to broadcast with the result.
type Tracker struct {
	registry *Registry
	now      func() time.Time
}

func NewTracker(registry *Registry) *Tracker {
	return &Tracker{registry: registry, now: time.Now}
}

// ViolationResult is the updated state after one recorded violation.
type ViolationResult struct {
	SessionID      string
	ViolationType  string
	Severity       int
	Timestamp      time.Time
	ViolationCount int
	RiskScore      int
}

// RecordViolation increments the count, raises the risk score (clamped at
// 100), and remembers the violation type. Unknown sessions return
// ErrSessionNotFound so the caller can treat it as a no-op.
func (t *Tracker) RecordViolation(sessionID, violationType string, severity int) (ViolationResult, error) {
	if severity <= 0 {
		severity = DefaultSeverity
	}
	// A single event can at most saturate the score; an uncapped severity
	// would overflow the addition and wrap the score negative.
	if severity > maxRiskScore {
		severity = maxRiskScore
	}
	s, err := t.registry.Get(sessionID)
	if err != nil {
		return ViolationResult{}, err
	}
	now := t.now()
	count, score := s.recordViolation(violationType, severity, now)
	return ViolationResult{
		SessionID:      sessionID,
		ViolationType:  violationType,
		Severity:       severity,
		Timestamp:      now,
		ViolationCount: count,
		RiskScore:      score,
	}, nil
}
