package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// CheckpointConfig is one gate in a track file, in visiting order.
type CheckpointConfig struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// SpawnConfig is one grid slot in a track file.
type SpawnConfig struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// ObstacleConfig is one static collider in a track file.
type ObstacleConfig struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// TrackConfig is the raw description of one course. Geometry validation
// happens in the domain when the track is built, not here.
type TrackConfig struct {
	Name        string             `json:"name"`
	Checkpoints []CheckpointConfig `json:"checkpoints"`
	Spawns      []SpawnConfig      `json:"spawns"`
	Obstacles   []ObstacleConfig   `json:"obstacles"`
}

type trackCatalog struct {
	Tracks []TrackConfig `json:"tracks"`
}

var (
	catalog       *trackCatalog
	tracksOnce    sync.Once
	tracksLoadErr error
)

// LoadTracks loads the track catalog from the given path.
func LoadTracks(path string) error {
	tracksOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			tracksLoadErr = fmt.Errorf("failed to read track catalog: %w", err)
			return
		}

		var c trackCatalog
		if err := json.Unmarshal(data, &c); err != nil {
			tracksLoadErr = fmt.Errorf("failed to unmarshal track catalog: %w", err)
			return
		}
		catalog = &c
	})
	return tracksLoadErr
}

// GetTrack returns the named track, or false if the catalog has no such
// course.
func GetTrack(name string) (*TrackConfig, bool) {
	if catalog == nil {
		return nil, false
	}
	for i := range catalog.Tracks {
		if catalog.Tracks[i].Name == name {
			return &catalog.Tracks[i], true
		}
	}
	return nil, false
}

// GetTrackNames lists every course in the catalog, in file order.
func GetTrackNames() []string {
	if catalog == nil {
		return nil
	}
	names := make([]string, 0, len(catalog.Tracks))
	for _, t := range catalog.Tracks {
		names = append(names, t.Name)
	}
	return names
}
