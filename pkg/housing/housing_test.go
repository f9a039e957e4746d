package housing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ptr[T any](v T) *T { return &v }

func unix(t time.Time) *float64 {
	f := float64(t.Unix())
	return &f
}

func TestPhaseValidator_IsLottery(t *testing.T) {
	v := NewPhaseValidator(fixedClock)
	assert.True(t, v.IsLottery(Plot{PurchaseSystem: PurchaseLottery | PurchaseIndividual}))
	assert.False(t, v.IsLottery(Plot{PurchaseSystem: PurchaseFreeCompany}))
}

func TestPhaseValidator_IsUnknownOrOutdatedPhase(t *testing.T) {
	v := NewPhaseValidator(fixedClock)

	tests := []struct {
		name string
		plot Plot
		want bool
	}{
		{
			name: "fcfs plot is never missing",
			plot: Plot{PurchaseSystem: PurchaseIndividual},
		},
		{
			name: "lottery without phase",
			plot: Plot{PurchaseSystem: PurchaseLottery},
			want: true,
		},
		{
			name: "lottery with expired phase",
			plot: Plot{
				PurchaseSystem:  PurchaseLottery,
				LottoPhase:      ptr(PhaseEntry),
				LottoPhaseUntil: unix(testNow.Add(-time.Hour)),
			},
			want: true,
		},
		{
			name: "lottery with current phase",
			plot: Plot{
				PurchaseSystem:  PurchaseLottery,
				LottoPhase:      ptr(PhaseEntry),
				LottoPhaseUntil: unix(testNow.Add(time.Hour)),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsUnknownOrOutdatedPhase(tt.plot))
		})
	}
}

func TestPhaseValidator_LatestPhase(t *testing.T) {
	v := NewPhaseValidator(fixedClock)
	world := &WorldDetail{Districts: []DistrictDetail{
		{ID: DistrictMist, OpenPlots: []Plot{
			{PurchaseSystem: PurchaseLottery, LottoPhase: ptr(PhaseEntry), LottoPhaseUntil: unix(testNow.Add(-48 * time.Hour))},
			{PurchaseSystem: PurchaseLottery, LottoPhase: ptr(PhaseResults), LottoPhaseUntil: unix(testNow.Add(24 * time.Hour))},
			{PurchaseSystem: PurchaseIndividual},
		}},
	}}

	got, ok := v.LatestPhase(world)
	require.True(t, ok)
	assert.Equal(t, PhaseResults, got.Phase)
	assert.True(t, got.Current)
	assert.Equal(t, "Results phase", got.Name())

	_, ok = v.LatestPhase(&WorldDetail{})
	assert.False(t, ok)
}

func TestWorldDetail_DecodePaissaDB(t *testing.T) {
	raw := `{
		"id": 73, "name": "Adamantoise", "num_open_plots": 1, "oldest_plot_time": 1700000000.5,
		"districts": [{"id": 339, "name": "Mist", "num_open_plots": 1, "oldest_plot_time": 0,
			"open_plots": [{"world_id": 73, "district_id": 339, "ward_number": 4, "plot_number": 31,
				"size": 2, "price": 3187500, "last_updated_time": 1700000000.25,
				"first_seen_time": 1699990000, "est_time_open_min": 0, "est_time_open_max": 0,
				"purchase_system": 5, "lotto_entries": 12, "lotto_phase": 1, "lotto_phase_until": 1700100000}]}]
	}`

	var w WorldDetail
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	d, ok := w.District(DistrictMist)
	require.True(t, ok)
	require.Len(t, d.OpenPlots, 1)

	p := d.OpenPlots[0]
	assert.Equal(t, 32, p.DisplayPlot())
	assert.Equal(t, 5, p.DisplayWard())
	assert.Equal(t, SizeLarge, p.Size)
	require.NotNil(t, p.LottoEntries)
	assert.Equal(t, 12, *p.LottoEntries)
	assert.Equal(t, int64(1700000000), p.LastUpdated().Unix())
	assert.Equal(t, "Individual", p.PurchaseSystem.TenantsLabel())
}

func TestWorldDetail_Clone(t *testing.T) {
	w := &WorldDetail{ID: 1, Districts: []DistrictDetail{{ID: DistrictMist, OpenPlots: []Plot{{PlotNumber: 1}}}}}
	c := w.Clone()
	c.Districts[0].OpenPlots[0].PlotNumber = 9
	assert.Equal(t, 1, w.Districts[0].OpenPlots[0].PlotNumber)
	assert.Nil(t, (*WorldDetail)(nil).Clone())
}

func TestLookupWorld(t *testing.T) {
	w, ok := LookupWorld(73)
	require.True(t, ok)
	assert.Equal(t, "Adamantoise", w.Name)

	w, ok = LookupWorldByName("seraph")
	require.True(t, ok)
	assert.Equal(t, 405, w.ID)

	_, ok = LookupWorld(-1)
	assert.False(t, ok)
}

func TestEnumLabels(t *testing.T) {
	assert.Equal(t, "The Lavender Beds", DistrictLavenderBeds.Name())
	assert.Equal(t, "Unknown District", DistrictID(1).Name())
	assert.False(t, DistrictID(1).Valid())
	assert.Equal(t, "Medium", SizeMedium.String())
	assert.False(t, HouseSize(3).Valid())
	assert.Equal(t, "FCFS", FilterFCFS.String())
	assert.Equal(t, "Accepting Entries", FilterEntry.String())
	assert.False(t, FilterPhase(6).Valid())
	assert.Equal(t, "Unrestricted", (PurchaseFreeCompany | PurchaseIndividual).TenantsLabel())
}
