// Package mcptools exposes housing search as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/paging"
	"github.com/txn2/plotwatch/pkg/render"
)

// ToolSearchHousing is the name of the search tool.
const ToolSearchHousing = "search_housing"

// DefaultPageSize matches the page size of chat sessions.
const DefaultPageSize = 9

// Source fetches world snapshots.
type Source interface {
	FetchWorldDetail(ctx context.Context, worldID int) (*housing.WorldDetail, error)
}

// Toolkit holds the housing tools.
type Toolkit struct {
	source    Source
	pageSize  int
	validator housing.PhaseValidator
}

// New creates a toolkit. A non-positive pageSize uses DefaultPageSize and a
// nil clock uses time.Now.
func New(source Source, pageSize int, now func() time.Time) *Toolkit {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Toolkit{
		source:    source,
		pageSize:  pageSize,
		validator: housing.NewPhaseValidator(now),
	}
}

// Tools returns the names of the tools the toolkit registers.
func (*Toolkit) Tools() []string { return []string{ToolSearchHousing} }

// RegisterTools adds the toolkit's tools to the server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: ToolSearchHousing,
		Description: "Search the open housing plots of a world. Filters match the /paissa " +
			"chat command; results are paginated and fetched fresh from PaissaDB.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: ptr(true)},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
		return t.handleSearch(ctx, req, in)
	})
}

type searchInput struct {
	World    string `json:"world" jsonschema:"world name or PaissaDB world id, e.g. Adamantoise or 73"`
	District *int   `json:"district,omitempty" jsonschema:"district id: 339 Mist, 340 Lavender Beds, 341 Goblet, 641 Shirogane, 979 Empyreum"`
	Size     *int   `json:"size,omitempty" jsonschema:"house size: 0 small, 1 medium, 2 large"`
	Phase    *int   `json:"lottery_phase,omitempty" jsonschema:"1 accepting entries, 2 results, 3 unavailable, 4 FCFS, 5 missing or outdated"`
	Tenants  *int   `json:"allowed_tenants,omitempty" jsonschema:"2 free company, 4 individual"`
	Plot     *int   `json:"plot,omitempty" jsonschema:"1-based plot number; matches the plot in both the main ward and the subdivision"`
	Ward     *int   `json:"ward,omitempty" jsonschema:"1-based ward number"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page to return; out-of-range pages are clamped"`
}

type plotEntry struct {
	District    string     `json:"district"`
	Ward        int        `json:"ward"`
	Plot        int        `json:"plot"`
	Size        string     `json:"size"`
	Price       int        `json:"price"`
	Tenants     string     `json:"tenants"`
	Lottery     bool       `json:"lottery"`
	Phase       string     `json:"phase,omitempty"`
	PhaseUntil  *time.Time `json:"phase_until,omitempty"`
	Entries     *int       `json:"entries,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}

type searchOutput struct {
	WorldID      int         `json:"world_id"`
	World        string      `json:"world"`
	Page         int         `json:"page"`
	TotalPages   int         `json:"total_pages"`
	TotalMatches int         `json:"total_matches"`
	OpenPlots    int         `json:"open_plots"`
	Filters      []string    `json:"filters,omitempty"`
	URL          string      `json:"url"`
	Plots        []plotEntry `json:"plots"`
}

func (t *Toolkit) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	worldID, spec, err := in.parse()
	if err != nil {
		return errorResult(err), nil, nil
	}

	world, err := t.source.FetchWorldDetail(ctx, worldID)
	if err != nil {
		return errorResult(fmt.Errorf("fetching world %d: %w", worldID, err)), nil, nil
	}

	filtered := listing.Filter(world, spec, t.validator)
	page := paging.Paginate(filtered, t.pageSize, in.Page-1)

	out := searchOutput{
		WorldID:      worldID,
		World:        world.Name,
		Page:         page.Index + 1,
		TotalPages:   page.TotalPages,
		TotalMatches: page.TotalItems,
		OpenPlots:    world.NumOpenPlots,
		Filters:      spec.Labels(),
		URL:          render.PaissaDBURL(worldID, spec),
		Plots:        make([]plotEntry, 0, len(page.Items)),
	}
	for _, l := range page.Items {
		out.Plots = append(out.Plots, t.entry(l))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (t *Toolkit) entry(l housing.Listing) plotEntry {
	e := plotEntry{
		District:    l.DistrictLabel(),
		Ward:        l.DisplayWard(),
		Plot:        l.DisplayPlot(),
		Size:        l.Size.String(),
		Price:       l.Price,
		Tenants:     l.PurchaseSystem.TenantsLabel(),
		Lottery:     t.validator.IsLottery(l.Plot),
		Entries:     l.LottoEntries,
		LastUpdated: l.LastUpdated().UTC(),
	}
	if !e.Lottery {
		return e
	}
	if t.validator.IsUnknownOrOutdatedPhase(l.Plot) {
		e.Phase = housing.FilterMissingOutdated.String()
		return e
	}
	e.Phase = l.LottoPhase.String()
	if until, ok := l.PhaseUntil(); ok {
		until = until.UTC()
		e.PhaseUntil = &until
	}
	return e
}

func (in searchInput) parse() (int, listing.FilterSpec, error) {
	worldID, err := lookupWorld(in.World)
	if err != nil {
		return 0, listing.FilterSpec{}, err
	}
	spec := listing.FilterSpec{
		District: convert[housing.DistrictID](in.District),
		Size:     convert[housing.HouseSize](in.Size),
		Phase:    convert[housing.FilterPhase](in.Phase),
		Tenants:  convert[housing.PurchaseSystem](in.Tenants),
		Plot:     in.Plot,
		Ward:     in.Ward,
	}
	if err := spec.Validate(); err != nil {
		return 0, listing.FilterSpec{}, err
	}
	return worldID, spec, nil
}

func lookupWorld(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("world is required")
	}
	if id, err := strconv.Atoi(s); err == nil {
		if w, ok := housing.LookupWorld(id); ok {
			return w.ID, nil
		}
		return 0, fmt.Errorf("unknown world id %d", id)
	}
	if w, ok := housing.LookupWorldByName(s); ok {
		return w.ID, nil
	}
	return 0, fmt.Errorf("unknown world %q", s)
}

func convert[T ~int](v *int) *T {
	if v == nil {
		return nil
	}
	out := T(*v)
	return &out
}

func ptr[T any](v T) *T { return &v }

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
