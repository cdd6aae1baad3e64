package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	shape := Shape{Rows: 2, Cols: 3}

	t.Run("empty_grid_yields_origin", func(t *testing.T) {
		c, ok := Allocate(map[Coord]bool{}, shape)
		require.True(t, ok)
		assert.Equal(t, Coord{Row: 0, Col: 0}, c)
	})

	t.Run("row_major_order", func(t *testing.T) {
		occupied := map[Coord]bool{}
		var got []Coord
		for i := 0; i < shape.Size(); i++ {
			c, ok := Allocate(occupied, shape)
			require.True(t, ok)
			occupied[c] = true
			got = append(got, c)
		}
		want := []Coord{
			{0, 0}, {0, 1}, {0, 2},
			{1, 0}, {1, 1}, {1, 2},
		}
		assert.Equal(t, want, got)
	})

	t.Run("full_grid_fails", func(t *testing.T) {
		occupied := map[Coord]bool{}
		for row := 0; row < shape.Rows; row++ {
			for col := 0; col < shape.Cols; col++ {
				occupied[Coord{Row: row, Col: col}] = true
			}
		}
		_, ok := Allocate(occupied, shape)
		assert.False(t, ok)
	})

	t.Run("released_tile_is_reused", func(t *testing.T) {
		occupied := map[Coord]bool{
			{0, 0}: true,
			{0, 1}: true,
			{0, 2}: true,
		}
		Release(Coord{Row: 0, Col: 1}, occupied)
		c, ok := Allocate(occupied, shape)
		require.True(t, ok)
		assert.Equal(t, Coord{Row: 0, Col: 1}, c)
	})
}

func TestShapeContains(t *testing.T) {
	shape := Shape{Rows: 7, Cols: 16}

	assert.True(t, shape.Contains(Coord{Row: 0, Col: 0}))
	assert.True(t, shape.Contains(Coord{Row: 6, Col: 15}))
	assert.False(t, shape.Contains(Coord{Row: -1, Col: 0}))
	assert.False(t, shape.Contains(Coord{Row: 0, Col: -1}))
	assert.False(t, shape.Contains(Coord{Row: 7, Col: 0}))
	assert.False(t, shape.Contains(Coord{Row: 0, Col: 16}))
}

func TestTierFor(t *testing.T) {
	local := Coord{Row: 3, Col: 8}

	tests := []struct {
		name  string
		other Coord
		want  Tier
	}{
		{"same_tile", Coord{3, 8}, Nearest},
		{"adjacent", Coord{4, 9}, Nearest},
		{"one_row_away", Coord{2, 8}, Nearest},
		{"two_cols_away", Coord{3, 10}, Near},
		{"diagonal_three", Coord{6, 11}, Near},
		{"row_delta_four", Coord{7, 8}, Far},
		{"col_delta_five", Coord{3, 13}, Far},
		{"col_delta_six", Coord{3, 14}, Farthest},
		{"mixed_deltas_take_worst", Coord{4, 14}, Farthest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(local, tt.other))
		})
	}
}

func TestLevelFor(t *testing.T) {
	local := Coord{Row: 0, Col: 0}

	tests := []struct {
		other      Coord
		wantVolume float64
		wantColor  string
	}{
		{Coord{0, 0}, 1.0, "#F9FAFB"},
		{Coord{1, 1}, 1.0, "#F9FAFB"},
		{Coord{2, 2}, 0.5, "#9CA3AF"},
		{Coord{3, 3}, 0.5, "#9CA3AF"},
		{Coord{4, 4}, 0.1, "#4B5563"},
		{Coord{5, 5}, 0.1, "#4B5563"},
		{Coord{6, 6}, 0.0, "#1F2937"},
	}
	for _, tt := range tests {
		level := LevelFor(local, tt.other)
		assert.Equal(t, tt.wantVolume, level.Volume, "other=%v", tt.other)
		assert.Equal(t, tt.wantColor, level.Color, "other=%v", tt.other)
	}
}

func TestPresent(t *testing.T) {
	shape := Shape{Rows: 6, Cols: 12}

	t.Run("neighbor_two_tiles_away_is_near", func(t *testing.T) {
		a := Present(Coord{Row: 0, Col: 0}, map[string]Coord{
			"USER0": {Row: 0, Col: 0},
			"USER1": {Row: 2, Col: 2},
		}, shape)

		require.Contains(t, a.Participants, "USER1")
		assert.Equal(t, Near, a.Participants["USER1"].Tier)
		assert.Equal(t, 0.5, a.Participants["USER1"].Volume)
	})

	t.Run("covers_every_cell", func(t *testing.T) {
		a := Present(Coord{Row: 2, Col: 5}, nil, shape)
		assert.Len(t, a.Tiles, shape.Size())
		assert.Equal(t, Nearest, a.Tiles[Coord{Row: 2, Col: 5}].Tier)
	})

	t.Run("out_of_bounds_participant_skipped", func(t *testing.T) {
		a := Present(Coord{Row: 0, Col: 0}, map[string]Coord{
			"USER1": {Row: 99, Col: 99},
		}, shape)
		assert.NotContains(t, a.Participants, "USER1")
	})

	t.Run("deterministic", func(t *testing.T) {
		all := map[string]Coord{"USER1": {Row: 1, Col: 4}, "USER2": {Row: 5, Col: 11}}
		a := Present(Coord{Row: 3, Col: 3}, all, shape)
		b := Present(Coord{Row: 3, Col: 3}, all, shape)
		assert.Equal(t, a, b)
	})
}
