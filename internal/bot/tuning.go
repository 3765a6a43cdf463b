package bot

// Difficulty labels carried by bot identities.
const (
	DifficultyRookie = "rookie"
	DifficultyPro    = "pro"
	DifficultyLegend = "legend"
)

// offsetSteps maps a difficulty label to how many speed offset steps an
// agent gets on top of the shared base speed.
var offsetSteps = map[string]int{
	DifficultyRookie: 0,
	DifficultyPro:    1,
	DifficultyLegend: 2,
}

// SpeedOffset converts a difficulty label into a concrete speed bonus.
// Unknown labels race as rookies.
func SpeedOffset(difficulty string, step float64) float64 {
	return float64(offsetSteps[difficulty]) * step
}
