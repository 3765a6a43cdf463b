package domain

import (
	"errors"

	"github.com/dhconnelly/rtreego"
)

var (
	// ErrTrackName indicates a track without a name.
	ErrTrackName = errors.New("track needs a name")
	// ErrNoCheckpoints indicates a track with an empty checkpoint list.
	ErrNoCheckpoints = errors.New("track has no checkpoints")
	// ErrCheckpointOrder indicates checkpoint indices that are not
	// contiguous from zero.
	ErrCheckpointOrder = errors.New("checkpoint indices must run 0..n-1 in order")
	// ErrCheckpointRadius indicates a checkpoint with a non-positive
	// trigger radius.
	ErrCheckpointRadius = errors.New("checkpoint radius must be positive")
	// ErrObstacleRadius indicates an obstacle with a non-positive radius.
	ErrObstacleRadius = errors.New("obstacle radius must be positive")
	// ErrNoSpawns indicates a track without spawn slots.
	ErrNoSpawns = errors.New("track has no spawn slots")
)

// Checkpoint is one ordered gate on a track. Index is its position in
// the required visiting order, starting at zero.
type Checkpoint struct {
	Index  int
	Pos    Vec2
	Radius float64
}

// Bounds implements rtreego.Spatial so checkpoints can live in the
// track's spatial index.
func (c *Checkpoint) Bounds() rtreego.Rect {
	return circleBounds(c.Pos, c.Radius)
}

// Contains reports whether a world position is inside the trigger
// region.
func (c *Checkpoint) Contains(pos Vec2) bool {
	return c.Pos.DistanceTo(pos) <= c.Radius
}

// Obstacle is a static circular collider on the track surface.
type Obstacle struct {
	Pos    Vec2
	Radius float64
}

// Bounds implements rtreego.Spatial for the obstacle index.
func (o *Obstacle) Bounds() rtreego.Rect {
	return circleBounds(o.Pos, o.Radius)
}

// Spawn is a grid slot where a racer starts, with its initial heading.
type Spawn struct {
	Pos     Vec2
	Heading float64
}

// Track is an immutable race course: an ordered checkpoint loop, a spawn
// grid, and static obstacles, with spatial indexes over both shapes.
type Track struct {
	Name        string
	Checkpoints []*Checkpoint
	Obstacles   []*Obstacle
	Spawns      []Spawn

	checkpointIndex *rtreego.Rtree
	obstacleIndex   *rtreego.Rtree
}

// NewTrack validates the course geometry and builds the spatial indexes.
func NewTrack(name string, checkpoints []Checkpoint, spawns []Spawn, obstacles []Obstacle) (*Track, error) {
	if name == "" {
		return nil, ErrTrackName
	}
	if len(checkpoints) == 0 {
		return nil, ErrNoCheckpoints
	}
	if len(spawns) == 0 {
		return nil, ErrNoSpawns
	}

	t := &Track{
		Name:            name,
		Checkpoints:     make([]*Checkpoint, 0, len(checkpoints)),
		Obstacles:       make([]*Obstacle, 0, len(obstacles)),
		Spawns:          append([]Spawn(nil), spawns...),
		checkpointIndex: rtreego.NewTree(2, 2, 8),
		obstacleIndex:   rtreego.NewTree(2, 2, 8),
	}

	for i := range checkpoints {
		cp := checkpoints[i]
		if cp.Index != i {
			return nil, ErrCheckpointOrder
		}
		if cp.Radius <= 0 {
			return nil, ErrCheckpointRadius
		}
		c := &Checkpoint{Index: cp.Index, Pos: cp.Pos, Radius: cp.Radius}
		t.Checkpoints = append(t.Checkpoints, c)
		t.checkpointIndex.Insert(c)
	}

	for i := range obstacles {
		ob := obstacles[i]
		if ob.Radius <= 0 {
			return nil, ErrObstacleRadius
		}
		o := &Obstacle{Pos: ob.Pos, Radius: ob.Radius}
		t.Obstacles = append(t.Obstacles, o)
		t.obstacleIndex.Insert(o)
	}

	return t, nil
}

// CheckpointCount returns the number of gates in the loop.
func (t *Track) CheckpointCount() int {
	return len(t.Checkpoints)
}

// CheckpointsContaining returns the indices of every checkpoint whose
// trigger region contains pos. The spatial index narrows candidates to
// the tiny box around pos before the exact circle test.
func (t *Track) CheckpointsContaining(pos Vec2) []int {
	var hits []int
	for _, sp := range t.checkpointIndex.SearchIntersect(pointBounds(pos)) {
		cp := sp.(*Checkpoint)
		if cp.Contains(pos) {
			hits = append(hits, cp.Index)
		}
	}
	return hits
}

// ObstaclesNear returns obstacles whose bounding boxes come within
// radius of pos, for collision broad-phase.
func (t *Track) ObstaclesNear(pos Vec2, radius float64) []*Obstacle {
	var near []*Obstacle
	for _, sp := range t.obstacleIndex.SearchIntersect(circleBounds(pos, radius)) {
		near = append(near, sp.(*Obstacle))
	}
	return near
}

// circleBounds is the axis-aligned box enclosing a circle.
func circleBounds(pos Vec2, radius float64) rtreego.Rect {
	rect, err := rtreego.NewRect(
		rtreego.Point{pos.X - radius, pos.Y - radius},
		[]float64{radius * 2, radius * 2},
	)
	if err != nil {
		panic(err)
	}
	return rect
}

// pointBounds is the near-degenerate box used for point queries against
// the index.
func pointBounds(pos Vec2) rtreego.Rect {
	const e = 0.005
	rect, err := rtreego.NewRect(
		rtreego.Point{pos.X - e, pos.Y - e},
		[]float64{e * 2, e * 2},
	)
	if err != nil {
		panic(err)
	}
	return rect
}
