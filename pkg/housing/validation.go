package housing

import "time"

// PhaseValidator answers questions about a plot's lottery data freshness.
// A plot's phase is outdated once its reported phase end lies in the past,
// and unknown when PaissaDB has no phase for it.
type PhaseValidator struct {
	now func() time.Time
}

// NewPhaseValidator creates a validator. A nil clock uses time.Now.
func NewPhaseValidator(now func() time.Time) PhaseValidator {
	if now == nil {
		now = time.Now
	}
	return PhaseValidator{now: now}
}

// PhaseValidatorAt returns a validator that judges freshness as of at.
func PhaseValidatorAt(at time.Time) PhaseValidator {
	return PhaseValidator{now: func() time.Time { return at }}
}

// IsLottery reports whether the plot is sold by lottery rather than first come,
// first served.
func (PhaseValidator) IsLottery(p Plot) bool {
	return p.PurchaseSystem&PurchaseLottery != 0
}

// IsOutdatedPhase reports whether the plot's phase window has already ended.
func (v PhaseValidator) IsOutdatedPhase(p Plot) bool {
	until, ok := p.PhaseUntil()
	if !ok {
		return false
	}
	return until.Before(v.clock())
}

// IsUnknownOrOutdatedPhase reports whether a lottery plot lacks usable phase data.
func (v PhaseValidator) IsUnknownOrOutdatedPhase(p Plot) bool {
	if !v.IsLottery(p) {
		return false
	}
	return p.LottoPhase == nil || v.IsOutdatedPhase(p)
}

// PhaseWindow is the lottery phase most recently reported for a world.
type PhaseWindow struct {
	Phase   LottoPhase
	Until   time.Time
	Current bool
}

// Name returns the label used when announcing the phase end.
func (w PhaseWindow) Name() string {
	switch w.Phase {
	case PhaseEntry:
		return "Entry phase"
	case PhaseResults:
		return "Results phase"
	default:
		return "Lottery phase"
	}
}

// LatestPhase returns the phase window with the latest end time among the
// world's lottery plots that report one.
func (v PhaseValidator) LatestPhase(w *WorldDetail) (PhaseWindow, bool) {
	var (
		best  PhaseWindow
		found bool
	)
	if w == nil {
		return best, false
	}
	for _, d := range w.Districts {
		for _, p := range d.OpenPlots {
			if !v.IsLottery(p) || p.LottoPhase == nil {
				continue
			}
			until, ok := p.PhaseUntil()
			if !ok {
				continue
			}
			if !found || until.After(best.Until) {
				best = PhaseWindow{Phase: *p.LottoPhase, Until: until}
				found = true
			}
		}
	}
	if found {
		best.Current = best.Until.After(v.clock())
	}
	return best, found
}

func (v PhaseValidator) clock() time.Time {
	if v.now == nil {
		return time.Now()
	}
	return v.now()
}
