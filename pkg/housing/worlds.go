package housing

import "strings"

// World is a game world with its PaissaDB id.
type World struct {
	ID   int
	Name string
}

// DataCenter groups the worlds that share a slash subcommand.
type DataCenter struct {
	Name   string
	Region string
	Worlds []World
}

// DataCenters lists every supported data center and its worlds.
var DataCenters = []DataCenter{
	{Name: "Aether", Region: "NA", Worlds: []World{
		{73, "Adamantoise"}, {79, "Cactuar"}, {54, "Faerie"}, {63, "Gilgamesh"},
		{40, "Jenova"}, {65, "Midgardsormr"}, {99, "Sargatanas"}, {57, "Siren"},
	}},
	{Name: "Primal", Region: "NA", Worlds: []World{
		{78, "Behemoth"}, {93, "Excalibur"}, {53, "Exodus"}, {35, "Famfrit"},
		{95, "Hyperion"}, {55, "Lamia"}, {64, "Leviathan"}, {77, "Ultros"},
	}},
	{Name: "Crystal", Region: "NA", Worlds: []World{
		{91, "Balmung"}, {34, "Brynhildr"}, {74, "Coeurl"}, {62, "Diabolos"},
		{81, "Goblin"}, {75, "Malboro"}, {37, "Mateus"}, {41, "Zalera"},
	}},
	{Name: "Dynamis", Region: "NA", Worlds: []World{
		{408, "Cuchulainn"}, {411, "Golem"}, {406, "Halicarnassus"}, {409, "Kraken"},
		{407, "Maduin"}, {404, "Marilith"}, {410, "Rafflesia"}, {405, "Seraph"},
	}},
	{Name: "Chaos", Region: "EU", Worlds: []World{
		{80, "Cerberus"}, {83, "Louisoix"}, {71, "Moogle"}, {39, "Omega"},
		{401, "Phantom"}, {97, "Ragnarok"}, {400, "Sagittarius"}, {85, "Spriggan"},
	}},
	{Name: "Light", Region: "EU", Worlds: []World{
		{402, "Alpha"}, {36, "Lich"}, {66, "Odin"}, {56, "Phoenix"},
		{403, "Raiden"}, {67, "Shiva"}, {33, "Twintania"}, {42, "Zodiark"},
	}},
	{Name: "Materia", Region: "OCE", Worlds: []World{
		{22, "Bismarck"}, {21, "Ravana"}, {86, "Sephirot"}, {87, "Sophia"}, {88, "Zurvan"},
	}},
	{Name: "Elemental", Region: "JP", Worlds: []World{
		{90, "Aegis"}, {68, "Atomos"}, {45, "Carbuncle"}, {58, "Garuda"},
		{94, "Gungnir"}, {49, "Kujata"}, {72, "Tonberry"}, {50, "Typhon"},
	}},
	{Name: "Gaia", Region: "JP", Worlds: []World{
		{43, "Alexander"}, {69, "Bahamut"}, {92, "Durandal"}, {46, "Fenrir"},
		{59, "Ifrit"}, {98, "Ridill"}, {76, "Tiamat"}, {51, "Ultima"},
	}},
	{Name: "Mana", Region: "JP", Worlds: []World{
		{44, "Anima"}, {23, "Asura"}, {70, "Chocobo"}, {47, "Hades"},
		{48, "Ixion"}, {96, "Masamune"}, {28, "Pandaemonium"}, {61, "Titan"},
	}},
	{Name: "Meteor", Region: "JP", Worlds: []World{
		{24, "Belias"}, {82, "Mandragora"}, {60, "Ramuh"}, {29, "Shinryu"},
		{30, "Unicorn"}, {52, "Valefor"}, {31, "Yojimbo"}, {32, "Zeromus"},
	}},
}

// LookupWorld finds a world by id.
func LookupWorld(id int) (World, bool) {
	for _, dc := range DataCenters {
		for _, w := range dc.Worlds {
			if w.ID == id {
				return w, true
			}
		}
	}
	return World{}, false
}

// LookupWorldByName finds a world by case-insensitive name.
func LookupWorldByName(name string) (World, bool) {
	for _, dc := range DataCenters {
		for _, w := range dc.Worlds {
			if strings.EqualFold(w.Name, name) {
				return w, true
			}
		}
	}
	return World{}, false
}
