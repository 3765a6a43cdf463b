package domain

// Podium payout multipliers by placement. First place takes three times
// the base purse, second twice, third once. Everyone else gets nothing.
const podiumPlaces = 3

// PodiumPayouts computes the race-coin award for each human finisher on
// the podium. Bots and DNF entries earn nothing, and placements beyond
// the podium pay zero, so those user IDs are absent from the map.
func PodiumPayouts(results []Result, basePurse int64) map[string]int64 {
	payouts := make(map[string]int64)
	if basePurse <= 0 {
		return payouts
	}
	for _, res := range results {
		if res.Bot || res.DNF {
			continue
		}
		if res.Placement < 1 || res.Placement > podiumPlaces {
			continue
		}
		multiplier := int64(podiumPlaces + 1 - res.Placement)
		payouts[res.UserID] = basePurse * multiplier
	}
	return payouts
}
