package report

import "fmt"

type ReadinessLevel string

const (
	LevelOnTrack ReadinessLevel = "on_track"
	LevelMonitor ReadinessLevel = "monitor"
	LevelAtRisk  ReadinessLevel = "at_risk"
)

// FocusRule selects which stage the insights concentrate on.
type FocusRule string

const (
	// FocusMostOpen picks the stage with the most open tasks; ties go to the earlier stage.
	FocusMostOpen FocusRule = "most_open"
	// FocusEarliestOpen picks the first stage in workflow order with any open task.
	FocusEarliestOpen FocusRule = "earliest_open"
)

// Policy holds the tunable thresholds of report generation.
type Policy struct {
	OnTrackMin        int
	MonitorMin        int
	Focus             FocusRule
	MaxBlockers       int
	PaceTolerancePct  int
	MoveInWarningDays int
	StandupWindowDays int
}

func DefaultPolicy() Policy {
	return Policy{
		OnTrackMin:        70,
		MonitorMin:        40,
		Focus:             FocusMostOpen,
		MaxBlockers:       5,
		PaceTolerancePct:  5,
		MoveInWarningDays: 7,
		StandupWindowDays: 5,
	}
}

func (p Policy) Validate() error {
	if p.MonitorMin < 0 || p.OnTrackMin > 100 {
		return fmt.Errorf("readiness bands must lie within 0-100")
	}
	if p.MonitorMin > p.OnTrackMin {
		return fmt.Errorf("monitor_min %d must not exceed on_track_min %d", p.MonitorMin, p.OnTrackMin)
	}
	switch p.Focus {
	case FocusMostOpen, FocusEarliestOpen:
	default:
		return fmt.Errorf("unknown focus rule %q", p.Focus)
	}
	if p.MaxBlockers < 0 {
		return fmt.Errorf("max_blockers must be >= 0")
	}
	if p.PaceTolerancePct < 0 {
		return fmt.Errorf("pace_tolerance_pct must be >= 0")
	}
	return nil
}

// Level maps every score to exactly one band.
func (p Policy) Level(score int) ReadinessLevel {
	switch {
	case score >= p.OnTrackMin:
		return LevelOnTrack
	case score >= p.MonitorMin:
		return LevelMonitor
	default:
		return LevelAtRisk
	}
}
