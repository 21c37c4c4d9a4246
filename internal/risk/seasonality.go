package risk

import "time"

// seasonProfile is the baseline seasonal hazard for one month.
type seasonProfile struct {
	score   float64
	hazards []string
}

// seasonProfiles encodes the regional operating calendar: winter closures
// and storm season dominate December through February, the thaw softens
// secondary roads in March, and midsummer runs near baseline.
var seasonProfiles = map[time.Month]seasonProfile{
	time.January:   {score: 0.6, hazards: []string{"winter closure"}},
	time.February:  {score: 0.55, hazards: []string{"winter closure"}},
	time.March:     {score: 0.5, hazards: []string{"spring thaw"}},
	time.April:     {score: 0.35},
	time.May:       {score: 0.25},
	time.June:      {score: 0.2},
	time.July:      {score: 0.25, hazards: []string{"peak season load"}},
	time.August:    {score: 0.25, hazards: []string{"peak season load"}},
	time.September: {score: 0.25},
	time.October:   {score: 0.35, hazards: []string{"autumn storms"}},
	time.November:  {score: 0.45, hazards: []string{"autumn storms"}},
	time.December:  {score: 0.6, hazards: []string{"winter closure"}},
}

// seasonalHazards returns the profile for a travel date.
func seasonalHazards(date time.Time) seasonProfile {
	profile, ok := seasonProfiles[date.Month()]
	if !ok {
		return seasonProfile{score: 0.3}
	}
	return profile
}
