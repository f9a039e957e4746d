package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/listing"
)

// Command and option names.
const (
	CommandPaissa = "paissa"
	CommandHelp   = "help"

	optWorld    = "world"
	optDistrict = "district"
	optSize     = "size"
	optPhase    = "lottery-phase"
	optTenants  = "allowed-tenants"
	optPlot     = "plot"
	optWard     = "ward"
)

var errNoSubcommand = errors.New("missing data center")

// Commands returns the application commands registered by the bot.
func Commands() []*discordgo.ApplicationCommand {
	paissa := &discordgo.ApplicationCommand{
		Name:        CommandPaissa,
		Description: "Get detailed housing information for a specific district and world",
	}
	for _, dc := range housing.DataCenters {
		paissa.Options = append(paissa.Options, dataCenterCommand(dc))
	}
	return []*discordgo.ApplicationCommand{
		paissa,
		{Name: CommandHelp, Description: "Show information about this bot"},
	}
}

func dataCenterCommand(dc housing.DataCenter) *discordgo.ApplicationCommandOption {
	worlds := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(dc.Worlds))
	for _, w := range dc.Worlds {
		worlds = append(worlds, choice(w.Name, w.ID))
	}

	districts := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(housing.Districts))
	for _, d := range housing.Districts {
		districts = append(districts, choice(d.Name(), int(d)))
	}

	minValue := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        strings.ToLower(dc.Name),
		Description: fmt.Sprintf("Get detailed housing information for %s datacenter", dc.Name),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optWorld,
				Description: fmt.Sprintf("World in %s datacenter", dc.Name),
				Required:    true,
				Choices:     worlds,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optDistrict,
				Description: "District to get detailed housing information for",
				Choices:     districts,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optSize,
				Description: "Filter by plot size (optional)",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					choice(housing.SizeSmall.String(), int(housing.SizeSmall)),
					choice(housing.SizeMedium.String(), int(housing.SizeMedium)),
					choice(housing.SizeLarge.String(), int(housing.SizeLarge)),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optPhase,
				Description: "Filter by lottery phase (optional)",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					choice(housing.FilterEntry.String(), int(housing.FilterEntry)),
					choice(housing.FilterResults.String(), int(housing.FilterResults)),
					choice(housing.FilterUnavailable.String(), int(housing.FilterUnavailable)),
					choice(housing.FilterFCFS.String(), int(housing.FilterFCFS)),
					choice(housing.FilterMissingOutdated.String(), int(housing.FilterMissingOutdated)),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optTenants,
				Description: "Filter by allowed tenants (optional)",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					choice("Free Company", int(housing.PurchaseFreeCompany)),
					choice("Individual", int(housing.PurchaseIndividual)),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        optPlot,
				Description: "Filter by plot (1-30). Includes subdivisions (e.g. 30 also shows 60)",
				MinValue:    &minValue,
				MaxValue:    listing.MaxPlot,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        optWard,
				Description: "Filter by exact ward number (1-30)",
				MinValue:    &minValue,
				MaxValue:    listing.MaxWard,
			},
		},
	}
}

func choice(name string, value int) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{Name: name, Value: strconv.Itoa(value)}
}

// parsePaissa reads the world and filters of a /paissa invocation.
func parsePaissa(data discordgo.ApplicationCommandInteractionData) (int, listing.FilterSpec, error) {
	var spec listing.FilterSpec
	if len(data.Options) == 0 || data.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return 0, spec, errNoSubcommand
	}

	worldID := 0
	for _, opt := range data.Options[0].Options {
		var err error
		switch opt.Name {
		case optWorld:
			worldID, err = strconv.Atoi(opt.StringValue())
		case optDistrict:
			spec.District, err = parseEnum[housing.DistrictID](opt)
		case optSize:
			spec.Size, err = parseEnum[housing.HouseSize](opt)
		case optPhase:
			spec.Phase, err = parseEnum[housing.FilterPhase](opt)
		case optTenants:
			spec.Tenants, err = parseEnum[housing.PurchaseSystem](opt)
		case optPlot:
			v := int(opt.IntValue())
			spec.Plot = &v
		case optWard:
			v := int(opt.IntValue())
			spec.Ward = &v
		}
		if err != nil {
			return 0, spec, fmt.Errorf("invalid %s option: %w", opt.Name, err)
		}
	}

	if _, ok := housing.LookupWorld(worldID); !ok {
		return 0, spec, fmt.Errorf("unknown world %d", worldID)
	}
	if err := spec.Validate(); err != nil {
		return 0, spec, err
	}
	return worldID, spec, nil
}

func parseEnum[T ~int](opt *discordgo.ApplicationCommandInteractionDataOption) (*T, error) {
	n, err := strconv.Atoi(opt.StringValue())
	if err != nil {
		return nil, err
	}
	v := T(n)
	return &v, nil
}
