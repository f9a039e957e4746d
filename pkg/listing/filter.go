// Package listing filters a world snapshot down to the plots a viewer asked for.
package listing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/txn2/plotwatch/pkg/housing"
)

// subdivisionOffset is the distance between a main-ward plot and its
// subdivision counterpart.
const subdivisionOffset = 30

// MaxWard and MaxPlot bound the 1-based ward and plot filters.
const (
	MaxWard = 30
	MaxPlot = 30
)

// ErrInvalidFilter is returned by Validate for out-of-domain filter values.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterSpec is the set of optional filters. A nil field does not filter.
type FilterSpec struct {
	District *housing.DistrictID     `json:"district,omitempty"`
	Size     *housing.HouseSize      `json:"size,omitempty"`
	Phase    *housing.FilterPhase    `json:"phase,omitempty"`
	Tenants  *housing.PurchaseSystem `json:"tenants,omitempty"`
	Plot     *int                    `json:"plot,omitempty"`
	Ward     *int                    `json:"ward,omitempty"`
}

// Validate rejects filter values outside their domains.
func (f FilterSpec) Validate() error {
	if f.District != nil && !f.District.Valid() {
		return fmt.Errorf("%w: unknown district %d", ErrInvalidFilter, *f.District)
	}
	if f.Size != nil && !f.Size.Valid() {
		return fmt.Errorf("%w: unknown size %d", ErrInvalidFilter, *f.Size)
	}
	if f.Phase != nil && !f.Phase.Valid() {
		return fmt.Errorf("%w: unknown lottery phase %d", ErrInvalidFilter, *f.Phase)
	}
	if f.Tenants != nil && *f.Tenants != housing.PurchaseFreeCompany && *f.Tenants != housing.PurchaseIndividual {
		return fmt.Errorf("%w: unknown tenant type %d", ErrInvalidFilter, *f.Tenants)
	}
	if f.Plot != nil && (*f.Plot < 1 || *f.Plot > MaxPlot) {
		return fmt.Errorf("%w: plot must be between 1 and %d", ErrInvalidFilter, MaxPlot)
	}
	if f.Ward != nil && (*f.Ward < 1 || *f.Ward > MaxWard) {
		return fmt.Errorf("%w: ward must be between 1 and %d", ErrInvalidFilter, MaxWard)
	}
	return nil
}

// IsZero reports whether no filter is set.
func (f FilterSpec) IsZero() bool {
	return f.District == nil && f.Size == nil && f.Phase == nil &&
		f.Tenants == nil && f.Plot == nil && f.Ward == nil
}

// Labels returns a short label for each active filter in display order.
func (f FilterSpec) Labels() []string {
	var labels []string
	if f.District != nil {
		labels = append(labels, f.District.Name())
	}
	if f.Size != nil {
		labels = append(labels, f.Size.String())
	}
	if f.Plot != nil {
		labels = append(labels, "Plot "+strconv.Itoa(*f.Plot)+" / "+strconv.Itoa(*f.Plot+subdivisionOffset))
	}
	if f.Ward != nil {
		labels = append(labels, "Ward "+strconv.Itoa(*f.Ward))
	}
	if f.Phase != nil {
		labels = append(labels, f.Phase.String())
	}
	if f.Tenants != nil {
		labels = append(labels, f.Tenants.TenantsLabel())
	}
	return labels
}

// Flatten returns every open plot of the world in district order.
func Flatten(world *housing.WorldDetail) []housing.Listing {
	if world == nil {
		return nil
	}
	var out []housing.Listing
	for _, d := range world.Districts {
		for _, p := range d.OpenPlots {
			p.DistrictID = d.ID
			out = append(out, housing.Listing{Plot: p, DistrictName: d.Name})
		}
	}
	return out
}

// Filter returns the plots of world matching every set field of spec, in
// district order and then plot order. The result is never an error; an empty
// slice is a valid outcome.
func Filter(world *housing.WorldDetail, spec FilterSpec, v housing.PhaseValidator) []housing.Listing {
	all := Flatten(world)
	out := make([]housing.Listing, 0, len(all))
	for _, l := range all {
		if spec.Match(l, v) {
			out = append(out, l)
		}
	}
	return out
}

// Match reports whether a single listing satisfies the filter.
func (f FilterSpec) Match(l housing.Listing, v housing.PhaseValidator) bool {
	if f.District != nil && l.DistrictID != *f.District {
		return false
	}
	if f.Size != nil && l.Size != *f.Size {
		return false
	}
	if f.Plot != nil {
		idx := *f.Plot - 1
		if l.PlotNumber != idx && l.PlotNumber != idx+subdivisionOffset {
			return false
		}
	}
	if f.Ward != nil && l.WardNumber != *f.Ward-1 {
		return false
	}
	if f.Phase != nil && !matchPhase(l.Plot, *f.Phase, v) {
		return false
	}
	if f.Tenants != nil && l.PurchaseSystem&*f.Tenants == 0 {
		return false
	}
	return true
}

func matchPhase(p housing.Plot, want housing.FilterPhase, v housing.PhaseValidator) bool {
	switch {
	case !v.IsLottery(p):
		return want == housing.FilterFCFS
	case v.IsUnknownOrOutdatedPhase(p):
		return want == housing.FilterMissingOutdated
	default:
		return housing.FilterPhase(*p.LottoPhase) == want
	}
}

// Summary holds world-wide counts shown above a filtered page.
type Summary struct {
	OpenPlots    int
	Available    int
	MissingData  int
	Phase        housing.PhaseWindow
	HasPhaseData bool
}

// Summarize counts the world's open plots, the lottery plots currently
// accepting entries, and the lottery plots with missing or outdated data.
func Summarize(world *housing.WorldDetail, v housing.PhaseValidator) Summary {
	var s Summary
	for _, l := range Flatten(world) {
		s.OpenPlots++
		switch {
		case !v.IsLottery(l.Plot):
		case v.IsUnknownOrOutdatedPhase(l.Plot):
			s.MissingData++
		case *l.LottoPhase == housing.PhaseEntry:
			s.Available++
		}
	}
	s.Phase, s.HasPhaseData = v.LatestPhase(world)
	return s
}
