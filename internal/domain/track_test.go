package domain

import (
	"errors"
	"testing"
)

func validCheckpoints(n int) []Checkpoint {
	cps := make([]Checkpoint, n)
	for i := range cps {
		cps[i] = Checkpoint{Index: i, Pos: Vec2{X: float64(200 * i)}, Radius: 40}
	}
	return cps
}

func validSpawns(n int) []Spawn {
	spawns := make([]Spawn, n)
	for i := range spawns {
		spawns[i] = Spawn{Pos: Vec2{X: float64(60 * i), Y: 500}}
	}
	return spawns
}

func TestNewTrackValidation(t *testing.T) {
	tests := []struct {
		name        string
		trackName   string
		checkpoints []Checkpoint
		spawns      []Spawn
		obstacles   []Obstacle
		wantErr     error
	}{
		{
			name:        "valid track",
			trackName:   "loop",
			checkpoints: validCheckpoints(3),
			spawns:      validSpawns(2),
			obstacles:   []Obstacle{{Pos: Vec2{X: 100, Y: 100}, Radius: 20}},
			wantErr:     nil,
		},
		{
			name:        "missing name",
			trackName:   "",
			checkpoints: validCheckpoints(3),
			spawns:      validSpawns(2),
			wantErr:     ErrTrackName,
		},
		{
			name:        "no checkpoints",
			trackName:   "loop",
			checkpoints: nil,
			spawns:      validSpawns(2),
			wantErr:     ErrNoCheckpoints,
		},
		{
			name:        "no spawns",
			trackName:   "loop",
			checkpoints: validCheckpoints(3),
			spawns:      nil,
			wantErr:     ErrNoSpawns,
		},
		{
			name:      "indices out of order",
			trackName: "loop",
			checkpoints: []Checkpoint{
				{Index: 1, Pos: Vec2{}, Radius: 40},
				{Index: 0, Pos: Vec2{X: 200}, Radius: 40},
			},
			spawns:  validSpawns(2),
			wantErr: ErrCheckpointOrder,
		},
		{
			name:      "non-positive checkpoint radius",
			trackName: "loop",
			checkpoints: []Checkpoint{
				{Index: 0, Pos: Vec2{}, Radius: 0},
			},
			spawns:  validSpawns(2),
			wantErr: ErrCheckpointRadius,
		},
		{
			name:        "non-positive obstacle radius",
			trackName:   "loop",
			checkpoints: validCheckpoints(3),
			spawns:      validSpawns(2),
			obstacles:   []Obstacle{{Pos: Vec2{X: 100}, Radius: -1}},
			wantErr:     ErrObstacleRadius,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, err := NewTrack(tt.trackName, tt.checkpoints, tt.spawns, tt.obstacles)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewTrack() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && track == nil {
				t.Fatal("NewTrack() returned nil track without error")
			}
		})
	}
}

func TestCheckpointsContaining(t *testing.T) {
	track, err := NewTrack("loop", validCheckpoints(3), validSpawns(2), nil)
	if err != nil {
		t.Fatalf("NewTrack() error = %v", err)
	}

	tests := []struct {
		name string
		pos  Vec2
		want []int
	}{
		{name: "center of first gate", pos: Vec2{X: 0}, want: []int{0}},
		{name: "just inside second gate", pos: Vec2{X: 200 + 39}, want: []int{1}},
		{name: "just outside second gate", pos: Vec2{X: 200 + 41}, want: nil},
		{name: "between gates", pos: Vec2{X: 100}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := track.CheckpointsContaining(tt.pos)
			if len(got) != len(tt.want) {
				t.Fatalf("CheckpointsContaining(%v) = %v, want %v", tt.pos, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("CheckpointsContaining(%v) = %v, want %v", tt.pos, got, tt.want)
				}
			}
		})
	}
}

func TestOverlappingGatesBothReported(t *testing.T) {
	cps := []Checkpoint{
		{Index: 0, Pos: Vec2{X: 0}, Radius: 60},
		{Index: 1, Pos: Vec2{X: 50}, Radius: 60},
	}
	track, err := NewTrack("tight", cps, validSpawns(1), nil)
	if err != nil {
		t.Fatalf("NewTrack() error = %v", err)
	}

	got := track.CheckpointsContaining(Vec2{X: 25})
	if len(got) != 2 {
		t.Fatalf("CheckpointsContaining() = %v, want both gates", got)
	}
	seen := map[int]bool{}
	for _, idx := range got {
		seen[idx] = true
	}
	if !seen[0] || !seen[1] {
		t.Errorf("CheckpointsContaining() = %v, want indices 0 and 1", got)
	}
}

func TestObstaclesNear(t *testing.T) {
	obstacles := []Obstacle{
		{Pos: Vec2{X: 100, Y: 0}, Radius: 30},
		{Pos: Vec2{X: 5000, Y: 5000}, Radius: 30},
	}
	track, err := NewTrack("walled", validCheckpoints(2), validSpawns(1), obstacles)
	if err != nil {
		t.Fatalf("NewTrack() error = %v", err)
	}

	near := track.ObstaclesNear(Vec2{X: 120, Y: 0}, RacerRadius)
	if len(near) != 1 {
		t.Fatalf("ObstaclesNear() returned %d obstacles, want 1", len(near))
	}
	if near[0].Pos.X != 100 {
		t.Errorf("ObstaclesNear() returned obstacle at %v, want the close one", near[0].Pos)
	}

	if far := track.ObstaclesNear(Vec2{X: -2000, Y: -2000}, RacerRadius); len(far) != 0 {
		t.Errorf("ObstaclesNear() far from everything = %v, want none", far)
	}
}
