package proctor

import (
	"errors"
	"math"
	"testing"
)

func TestRecordViolation(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	newTestSession(t, r, "sess-1")
	tr := NewTracker(r)

	res, err := tr.RecordViolation("sess-1", "tab-switch", 15)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.ViolationCount != 1 || res.RiskScore != 15 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ViolationType != "tab-switch" {
		t.Fatalf("violation type = %q", res.ViolationType)
	}
}

func TestRecordViolationDefaultSeverity(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	newTestSession(t, r, "sess-1")
	tr := NewTracker(r)

	res, err := tr.RecordViolation("sess-1", "multiple-faces", 0)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Severity != DefaultSeverity || res.RiskScore != DefaultSeverity {
		t.Fatalf("expected default severity %d, got %+v", DefaultSeverity, res)
	}
}

func TestRiskScoreClampsAtHundred(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	newTestSession(t, r, "sess-1")
	tr := NewTracker(r)

	var last ViolationResult
	for i := 0; i < 3; i++ {
		res, err := tr.RecordViolation("sess-1", "tab-switch", 40)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if res.RiskScore < last.RiskScore {
			t.Fatalf("risk score decreased: %d -> %d", last.RiskScore, res.RiskScore)
		}
		last = res
	}
	if last.ViolationCount != 3 {
		t.Fatalf("violation count = %d, want 3", last.ViolationCount)
	}
	if last.RiskScore != 100 {
		t.Fatalf("risk score = %d, want 100 (clamped from 120)", last.RiskScore)
	}
}

func TestRecordViolationExtremeSeverity(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	newTestSession(t, r, "sess-1")
	tr := NewTracker(r)

	for i := 0; i < 2; i++ {
		res, err := tr.RecordViolation("sess-1", "tab-switch", math.MaxInt)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if res.Severity != maxRiskScore {
			t.Fatalf("severity not capped: %d", res.Severity)
		}
		if res.RiskScore != maxRiskScore {
			t.Fatalf("risk score out of range after record %d: %d", i, res.RiskScore)
		}
	}
}

func TestRecordViolationUnknownSession(t *testing.T) {
	t.Parallel()
	tr := NewTracker(NewRegistry())
	if _, err := tr.RecordViolation("missing", "tab-switch", 10); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
