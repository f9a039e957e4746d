// Package render turns a filtered world snapshot into a chat message: an embed
// describing one page of plots and the control row used to navigate it.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/paging"
)

// DefaultPageSize is the number of plots shown per page.
const DefaultPageSize = 9

// DefaultColor is the embed accent color.
const DefaultColor = 0xD4A55C

// User-facing notices.
const (
	ExpiredNotice      = "Pagination session expired. Run the command again to continue browsing."
	StaleSessionText   = "❌ Pagination session expired. Please run the command again."
	RefreshFailedText  = "❌ Failed to refresh data. Please try again later."
	expiredFooterToken = "expired"
	filterSeparator    = " • "
)

// Message is a transport-neutral chat message.
type Message struct {
	Embeds   []Embed
	Controls []Control
}

// Embed is a rich message block.
type Embed struct {
	Title       string
	URL         string
	Description string
	Color       int
	Timestamp   time.Time
	Fields      []Field
	Footer      string
}

// Field is one titled block of an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// View is everything needed to render one page.
type View struct {
	World         *housing.WorldDetail
	Filters       listing.FilterSpec
	Page          int
	LastRefreshed time.Time
}

// Config configures a Renderer.
type Config struct {
	PageSize int
	Color    int
	Now      func() time.Time
}

// Renderer builds messages for views.
type Renderer struct {
	pageSize  int
	color     int
	now       func() time.Time
	validator housing.PhaseValidator
	printer   *message.Printer
}

// NewRenderer creates a renderer with defaults applied.
func NewRenderer(cfg Config) *Renderer {
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Color == 0 {
		cfg.Color = DefaultColor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Renderer{
		pageSize:  cfg.PageSize,
		color:     cfg.Color,
		now:       cfg.Now,
		validator: housing.NewPhaseValidator(cfg.Now),
		printer:   message.NewPrinter(language.English),
	}
}

// PageSize returns the configured page size.
func (r *Renderer) PageSize() int { return r.pageSize }

// validatorFor returns the validator a view is filtered with. Plots are
// judged as of the snapshot's refresh time, the same time the session's
// page count was computed with.
func (r *Renderer) validatorFor(v View) housing.PhaseValidator {
	if v.LastRefreshed.IsZero() {
		return r.validator
	}
	return housing.PhaseValidatorAt(v.LastRefreshed)
}

// Render builds the message for the view's page. Out-of-range pages are
// clamped.
func (r *Renderer) Render(v View) Message {
	val := r.validatorFor(v)
	filtered := listing.Filter(v.World, v.Filters, val)
	page := paging.Paginate(filtered, r.pageSize, v.Page)

	embed := Embed{
		URL:         PaissaDBURL(worldID(v.World), v.Filters),
		Description: r.describe(v, val, len(filtered)),
		Color:       r.color,
		Timestamp:   v.LastRefreshed,
	}
	if v.World != nil {
		embed.Title = v.World.Name
	}
	for _, l := range page.Items {
		embed.Fields = append(embed.Fields, r.field(l, val))
	}
	if page.HasMultiplePages && len(page.Items) > 0 {
		embed.Footer = fmt.Sprintf("Page %d/%d%sShowing plots %d-%d of %d total",
			page.Index+1, page.TotalPages, filterSeparator, page.Start, page.End, page.TotalItems)
	}

	return Message{
		Embeds:   []Embed{embed},
		Controls: Controls(page.Index, page.TotalPages, page.HasMultiplePages),
	}
}

func (r *Renderer) describe(v View, val housing.PhaseValidator, filtered int) string {
	s := listing.Summarize(v.World, val)

	var b strings.Builder
	fmt.Fprintf(&b, "Open plots: %d (Available: %d", s.OpenPlots, s.Available)
	if s.MissingData > 0 {
		fmt.Fprintf(&b, ", Missing/outdated data: %d", s.MissingData)
	}
	b.WriteString(")")

	switch {
	case !s.HasPhaseData:
		b.WriteString("\nLottery phase ends: Insufficient data")
	case s.Phase.Until.After(r.now()):
		fmt.Fprintf(&b, "\n%s ends: %s", s.Phase.Name(), discordTime(s.Phase.Until))
	default:
		fmt.Fprintf(&b, "\n%s ended: %s", s.Phase.Name(), discordTime(s.Phase.Until))
	}

	if filtered != s.OpenPlots {
		noun := "plots"
		if filtered == 1 {
			noun = "plot"
		}
		fmt.Fprintf(&b, "\n\nFiltered %d %s", filtered, noun)
		if labels := r.filterLabels(v); len(labels) > 0 {
			b.WriteString(": " + strings.Join(labels, filterSeparator))
		}
	}
	return b.String()
}

func (r *Renderer) filterLabels(v View) []string {
	labels := v.Filters.Labels()
	if v.Filters.District != nil && v.World != nil {
		if d, ok := v.World.District(*v.Filters.District); ok && d.Name != "" {
			labels[0] = d.Name
		}
	}
	return labels
}

func (r *Renderer) field(l housing.Listing, val housing.PhaseValidator) Field {
	lines := []string{
		l.DistrictLabel(),
		l.Size.String(),
		r.printer.Sprintf("%d", l.Price) + " gil",
		"Entries: " + entries(l.Plot, val),
		phase(l.Plot, val),
		l.PurchaseSystem.TenantsLabel(),
		"Updated " + relativeTime(l.LastUpdated()),
	}
	return Field{
		Name:   fmt.Sprintf("Plot %d (Ward %d)", l.DisplayPlot(), l.DisplayWard()),
		Value:  strings.Join(lines, "\n"),
		Inline: true,
	}
}

func entries(p housing.Plot, val housing.PhaseValidator) string {
	switch {
	case !val.IsLottery(p):
		return "N/A"
	case p.LottoPhase == nil || val.IsOutdatedPhase(p):
		return "_Missing Pl. Data_"
	case p.LottoEntries == nil:
		return "0"
	default:
		return strconv.Itoa(*p.LottoEntries)
	}
}

func phase(p housing.Plot, val housing.PhaseValidator) string {
	switch {
	case !val.IsLottery(p):
		return housing.FilterFCFS.String()
	case val.IsUnknownOrOutdatedPhase(p):
		return housing.FilterMissingOutdated.String()
	default:
		return p.LottoPhase.String()
	}
}

// ExpiredFooter appends the expiry notice to a footer unless one is
// already present.
func ExpiredFooter(existing string) string {
	if strings.Contains(existing, expiredFooterToken) {
		return existing
	}
	if existing == "" {
		return ExpiredNotice
	}
	return existing + "\n" + ExpiredNotice
}

// Help returns the /help message.
func Help(color int) Message {
	if color == 0 {
		color = DefaultColor
	}
	return Message{Embeds: []Embed{{
		Title: "PaissaHouse",
		Description: "An unofficial Discord bot that displays open housing plots from " +
			"[PaissaDB](https://zhu.codes/paissa). It is not affiliated with PaissaDB.",
		Color: color,
		Fields: []Field{
			{
				Name: "PaissaDB",
				Value: "PaissaDB lists houses for sale in Final Fantasy XIV and how many lottery bids " +
					"are on each, crowd-sourced through the PaissaHouse XIVLauncher plugin.",
			},
			{
				Name: "/paissa [datacenter] [world]",
				Value: "Displays the houses currently for sale on a world. Optional filters:\n" +
					"`/paissa [datacenter] [world] [district?] [size?] [lottery-phase?] [allowed-tenants?] [plot?] [ward?]`\n" +
					"Use the buttons below the result to browse pages or refresh the data.",
			},
		},
	}}}
}

func worldID(w *housing.WorldDetail) int {
	if w == nil {
		return 0
	}
	return w.ID
}

func discordTime(t time.Time) string {
	ts := t.Unix()
	return fmt.Sprintf("<t:%d:F> (<t:%d:R>)", ts, ts)
}

func relativeTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
