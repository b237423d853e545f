package bot

import "strconv"

// brRanks maps battle-royale ranking points to a rank band. Ranges are
// inclusive and ordered.
var brRanks = []struct {
	min, max int
	name     string
}{
	{1000, 1299, "Bronze I - III"},
	{1300, 1399, "Bronze III - Silver I"},
	{1400, 1499, "Silver I - II"},
	{1500, 1599, "Silver II - III"},
	{1600, 1724, "Silver III - Gold I"},
	{1725, 1849, "Gold I - II"},
	{1850, 1974, "Gold II - III"},
	{1975, 2099, "Gold III - IV"},
	{2100, 2224, "Gold IV - Platinum I"},
	{2225, 2349, "Platinum I - II"},
	{2350, 2474, "Platinum II - III"},
	{2475, 2599, "Platinum III - IV"},
	{2600, 2749, "Platinum IV - V"},
	{2750, 2899, "Platinum V - Diamond I"},
	{2900, 3049, "Diamond I - II"},
	{3050, 3199, "Diamond II - III"},
	{3200, 3349, "Diamond III - IV"},
	{3350, 3499, "Diamond IV - V"},
	{3500, 4299, "Heroic"},
	{4300, 4899, "Heroic - Elite Heroic"},
	{4900, 6299, "Elite Heroic"},
	{6300, 7099, "Elite Heroic - Master"},
	{7100, 7999, "Master"},
	{8000, 8999, "Master - Elite Master"},
	{9000, 11999, "Elite Master"},
	{12000, 999999, "Grand Master"},
}

// brRank names the rank band of points. Non-numeric input is "Not Found"
// and numbers outside every band are "Unranked".
func brRank(points string) string {
	p, err := strconv.Atoi(points)
	if err != nil {
		return notFound
	}
	for _, r := range brRanks {
		if p >= r.min && p <= r.max {
			return r.name
		}
	}
	return "Unranked"
}
