package scoring

// PriceTier awards Points to final prices at or below UpTo minor units
type PriceTier struct {
	UpTo   int64
	Points int
}

// Rules holds every constant the scorer uses
type Rules struct {
	DiscountCap int

	PopularKeywords []string
	PopularityBonus int

	// Tiers are checked in order; a positive price above every tier, or a
	// zero price, gets FallbackTierPoints
	Tiers              []PriceTier
	FallbackTierPoints int

	TrendKeywords []string
	TrendBonus    int

	DLCKeywords []string
	DLCPenalty  int

	OldYearMarkers []string
	OldYearPenalty int

	MinScore int
	MaxScore int
}

// DefaultRules returns the stock keyword lists and tiers
func DefaultRules() Rules {
	return Rules{
		DiscountCap: 90,

		PopularKeywords: []string{
			"cyberpunk", "witcher", "gta", "elder scrolls", "fallout", "assassin",
			"call of duty", "battlefield", "counter-strike", "dota", "steam", "fifa",
			"tomb raider", "far cry", "watch dogs", "rainbow six", "grand theft",
			"red dead", "mass effect", "dragon age", "bioshock", "borderlands",
			"civilization", "total war", "mortal kombat", "tekken", "street fighter",
			"dark souls", "elden ring", "sekiro", "bloodborne", "resident evil",
			"silent hill", "dead space", "metro", "stalker", "dying light",
			"left 4 dead", "portal", "half-life", "team fortress", "dishonored",
			"prey", "doom", "wolfenstein", "quake", "unreal", "forza",
			"need for speed", "burnout", "dirt", "f1", "wreckfest", "xcom",
			"cities skylines", "europa universalis", "crusader kings",
			"hearts of iron", "stellaris", "age of empires", "starcraft", "warcraft",
			"world of warcraft", "overwatch", "diablo", "heroes", "destiny",
			"division", "ghost recon", "splinter cell", "prince", "just cause",
			"saints row", "mafia", "hitman", "deus ex", "batman", "spider-man",
			"injustice", "marvel", "dc comics", "lego", "minecraft", "terraria",
			"stardew valley", "hollow knight", "ori and", "cuphead", "celeste",
			"hades", "rocket league", "fall guys", "among us", "valheim", "rust",
			"pubg", "fortnite", "apex legends", "titanfall", "warframe",
		},
		PopularityBonus: 30,

		Tiers: []PriceTier{
			{UpTo: 500, Points: 25},
			{UpTo: 1500, Points: 20},
			{UpTo: 3000, Points: 15},
		},
		FallbackTierPoints: 5,

		TrendKeywords: []string{
			"battle royale", "survival", "crafting", "open world", "rpg",
			"multiplayer", "co-op", "indie", "early access", "vr",
			"roguelike", "metroidvania", "soulslike", "tactical", "strategy",
		},
		TrendBonus: 5,

		DLCKeywords: []string{"dlc", "season pass", "expansion", "add-on", "downloadable content"},
		DLCPenalty:  15,

		OldYearMarkers: []string{"2010", "2011", "2012", "2013", "2014", "2015"},
		OldYearPenalty: 10,

		MinScore: 0,
		MaxScore: 200,
	}
}

// WithTiers returns a copy of r with the three tier bounds replaced
func (r Rules) WithTiers(cheap, mid, premium int64) Rules {
	tiers := make([]PriceTier, len(r.Tiers))
	copy(tiers, r.Tiers)
	bounds := []int64{cheap, mid, premium}
	for i := range tiers {
		if i < len(bounds) && bounds[i] > 0 {
			tiers[i].UpTo = bounds[i]
		}
	}
	r.Tiers = tiers
	return r
}
