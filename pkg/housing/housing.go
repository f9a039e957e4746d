// Package housing defines the PaissaDB housing data model: worlds, districts,
// open plots, and the enumerations used to describe and filter them.
package housing

import (
	"math"
	"time"
)

// DistrictID identifies a residential district.
type DistrictID int

// Residential districts.
const (
	DistrictMist           DistrictID = 339
	DistrictLavenderBeds   DistrictID = 340
	DistrictGoblet         DistrictID = 341
	DistrictShirogane      DistrictID = 641
	DistrictEmpyreum       DistrictID = 979
	unknownDistrictDisplay            = "Unknown District"
)

// Districts lists every district in display order.
var Districts = []DistrictID{
	DistrictMist,
	DistrictLavenderBeds,
	DistrictGoblet,
	DistrictShirogane,
	DistrictEmpyreum,
}

// Name returns the display name of the district.
func (d DistrictID) Name() string {
	switch d {
	case DistrictMist:
		return "Mist"
	case DistrictLavenderBeds:
		return "The Lavender Beds"
	case DistrictGoblet:
		return "The Goblet"
	case DistrictShirogane:
		return "Shirogane"
	case DistrictEmpyreum:
		return "Empyreum"
	default:
		return unknownDistrictDisplay
	}
}

// Valid reports whether d is a known district.
func (d DistrictID) Valid() bool {
	for _, known := range Districts {
		if d == known {
			return true
		}
	}
	return false
}

// HouseSize is the size class of a plot.
type HouseSize int

// House sizes.
const (
	SizeSmall HouseSize = iota
	SizeMedium
	SizeLarge
)

// String returns the display name of the size.
func (s HouseSize) String() string {
	switch s {
	case SizeSmall:
		return "Small"
	case SizeMedium:
		return "Medium"
	case SizeLarge:
		return "Large"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the three size classes.
func (s HouseSize) Valid() bool {
	return s >= SizeSmall && s <= SizeLarge
}

// PurchaseSystem is a bitmask describing how a plot is sold and who may buy it.
type PurchaseSystem int

// Purchase system flags.
const (
	PurchaseLottery     PurchaseSystem = 1 << 0
	PurchaseFreeCompany PurchaseSystem = 1 << 1
	PurchaseIndividual  PurchaseSystem = 1 << 2
)

// TenantsLabel describes which tenant types may buy a plot.
func (p PurchaseSystem) TenantsLabel() string {
	both := PurchaseFreeCompany | PurchaseIndividual
	switch {
	case p&both == both:
		return "Unrestricted"
	case p&PurchaseFreeCompany != 0:
		return "Free Company"
	default:
		return "Individual"
	}
}

// LottoPhase is the raw lottery phase reported by PaissaDB.
type LottoPhase int

// Lottery phases.
const (
	PhaseEntry       LottoPhase = 1
	PhaseResults     LottoPhase = 2
	PhaseUnavailable LottoPhase = 3
)

// String returns the display name of the phase.
func (p LottoPhase) String() string {
	switch p {
	case PhaseEntry:
		return "Accepting Entries"
	case PhaseResults:
		return "Results"
	case PhaseUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// FilterPhase is the lottery-phase filter category. The first three values
// coincide with LottoPhase; FCFS and MissingOutdated are derived categories.
type FilterPhase int

// Filter phase categories.
const (
	FilterEntry                       = FilterPhase(PhaseEntry)
	FilterResults                     = FilterPhase(PhaseResults)
	FilterUnavailable                 = FilterPhase(PhaseUnavailable)
	FilterFCFS            FilterPhase = 4
	FilterMissingOutdated FilterPhase = 5
)

// String returns the display name of the category.
func (f FilterPhase) String() string {
	switch f {
	case FilterFCFS:
		return "FCFS"
	case FilterMissingOutdated:
		return "Missing/Outdated"
	default:
		return LottoPhase(f).String()
	}
}

// Valid reports whether f is a known category.
func (f FilterPhase) Valid() bool {
	return f >= FilterEntry && f <= FilterMissingOutdated
}

// Plot is one open plot as reported by PaissaDB. Ward and plot numbers are
// raw 0-based indices; plot numbers 30-59 are the subdivision.
type Plot struct {
	WorldID         int            `json:"world_id"`
	DistrictID      DistrictID     `json:"district_id"`
	WardNumber      int            `json:"ward_number"`
	PlotNumber      int            `json:"plot_number"`
	Size            HouseSize      `json:"size"`
	Price           int            `json:"price"`
	LastUpdatedTime float64        `json:"last_updated_time"`
	FirstSeenTime   float64        `json:"first_seen_time"`
	EstTimeOpenMin  float64        `json:"est_time_open_min"`
	EstTimeOpenMax  float64        `json:"est_time_open_max"`
	PurchaseSystem  PurchaseSystem `json:"purchase_system"`
	LottoEntries    *int           `json:"lotto_entries"`
	LottoPhase      *LottoPhase    `json:"lotto_phase"`
	LottoPhaseUntil *float64       `json:"lotto_phase_until"`
}

// LastUpdated returns the time PaissaDB last saw the plot.
func (p Plot) LastUpdated() time.Time {
	return fromUnixSeconds(p.LastUpdatedTime)
}

// PhaseUntil returns the end of the plot's reported lottery phase.
func (p Plot) PhaseUntil() (time.Time, bool) {
	if p.LottoPhaseUntil == nil {
		return time.Time{}, false
	}
	return fromUnixSeconds(*p.LottoPhaseUntil), true
}

// DisplayPlot returns the 1-based plot number shown to players.
func (p Plot) DisplayPlot() int { return p.PlotNumber + 1 }

// DisplayWard returns the 1-based ward number shown to players.
func (p Plot) DisplayWard() int { return p.WardNumber + 1 }

// DistrictDetail is one district of a world with its open plots.
type DistrictDetail struct {
	ID             DistrictID `json:"id"`
	Name           string     `json:"name"`
	NumOpenPlots   int        `json:"num_open_plots"`
	OldestPlotTime float64    `json:"oldest_plot_time"`
	OpenPlots      []Plot     `json:"open_plots"`
}

// WorldDetail is a snapshot of every open plot on a world, grouped by district.
type WorldDetail struct {
	ID             int              `json:"id"`
	Name           string           `json:"name"`
	Districts      []DistrictDetail `json:"districts"`
	NumOpenPlots   int              `json:"num_open_plots"`
	OldestPlotTime float64          `json:"oldest_plot_time"`
}

// District returns the district with the given id.
func (w *WorldDetail) District(id DistrictID) (DistrictDetail, bool) {
	for _, d := range w.Districts {
		if d.ID == id {
			return d, true
		}
	}
	return DistrictDetail{}, false
}

// Clone returns a deep copy of the snapshot.
func (w *WorldDetail) Clone() *WorldDetail {
	if w == nil {
		return nil
	}
	out := *w
	out.Districts = make([]DistrictDetail, len(w.Districts))
	for i, d := range w.Districts {
		d.OpenPlots = append([]Plot(nil), d.OpenPlots...)
		out.Districts[i] = d
	}
	return &out
}

// Listing is a plot together with the district it belongs to.
type Listing struct {
	Plot
	DistrictName string
}

// DistrictLabel returns the district name, falling back to a placeholder.
func (l Listing) DistrictLabel() string {
	if l.DistrictName != "" {
		return l.DistrictName
	}
	return unknownDistrictDisplay
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
