package app

// MinRacersToStart defines the minimum grid size required to start a race.
// Keep this centralized so tests or local runs can adjust the rule without touching multiple call sites.
const MinRacersToStart = 1
