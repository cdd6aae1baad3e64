package grid

// Tier is one of four concentric distance bands around the local tile.
type Tier int

const (
	Nearest Tier = iota
	Near
	Far
	Farthest
)

func (t Tier) String() string {
	switch t {
	case Nearest:
		return "nearest"
	case Near:
		return "near"
	case Far:
		return "far"
	case Farthest:
		return "farthest"
	}
	return "unknown"
}

// Level is the audio volume and tile color for one proximity tier.
type Level struct {
	Tier   Tier
	Volume float64
	Color  string
}

// Distance thresholds for each tier. A tile qualifies for a tier when both
// its row delta and its column delta are strictly below the threshold.
const (
	nearestBelow = 2
	nearBelow    = 4
	farBelow     = 6
)

var tierLevels = [...]Level{
	Nearest:  {Tier: Nearest, Volume: 1.0, Color: "#F9FAFB"},
	Near:     {Tier: Near, Volume: 0.5, Color: "#9CA3AF"},
	Far:      {Tier: Far, Volume: 0.1, Color: "#4B5563"},
	Farthest: {Tier: Farthest, Volume: 0.0, Color: "#1F2937"},
}

// TierFor classifies other relative to local.
func TierFor(local, other Coord) Tier {
	dr := abs(local.Row - other.Row)
	dc := abs(local.Col - other.Col)
	switch {
	case dr < nearestBelow && dc < nearestBelow:
		return Nearest
	case dr < nearBelow && dc < nearBelow:
		return Near
	case dr < farBelow && dc < farBelow:
		return Far
	}
	return Farthest
}

// LevelFor returns the volume/color level of other relative to local.
func LevelFor(local, other Coord) Level {
	return tierLevels[TierFor(local, other)]
}

// Assignment is the full recomputed proximity state for one local coordinate.
type Assignment struct {
	// Tiles holds a level for every in-bounds cell of the arena.
	Tiles map[Coord]Level

	// Participants holds the level of each participant's tile, keyed by
	// participant id. Out-of-bounds coordinates are skipped.
	Participants map[string]Level
}

// Present recomputes levels for the whole grid and every participant relative
// to the local coordinate. It is pure and deterministic; callers invoke it on
// every coordinate change rather than patching previous results.
func Present(local Coord, all map[string]Coord, shape Shape) Assignment {
	a := Assignment{
		Tiles:        make(map[Coord]Level, shape.Size()),
		Participants: make(map[string]Level, len(all)),
	}
	for row := 0; row < shape.Rows; row++ {
		for col := 0; col < shape.Cols; col++ {
			c := Coord{Row: row, Col: col}
			a.Tiles[c] = LevelFor(local, c)
		}
	}
	for id, c := range all {
		if !shape.Contains(c) {
			continue
		}
		a.Participants[id] = LevelFor(local, c)
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
