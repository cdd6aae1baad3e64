package room

import (
	"crypto/rand"
	"log/slog"
	"math/big"
)

// Memorable fallback names offered when the user creates a room without
// picking one.
var roomWords = []string{
	"alligator", "beaver", "chipmunk", "dolphin", "elephant", "flamingo",
	"gorilla", "hippo", "iguana", "jellyfish", "kangaroo", "llama", "monkey",
	"narwhal", "octopus", "penguin", "quail", "rhino", "shark", "turkey",
	"unicorn", "vulture", "whale", "zebra",
}

// SuggestRoomName returns a random memorable room name. Collisions with an
// existing room surface as ErrRoomExists from Create, at which point the
// caller asks for another suggestion.
func SuggestRoomName() string {
	return roomWords[randomIndex(len(roomWords))]
}

// randomIndex returns a cryptographically secure random index for a slice of
// the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		slog.Error("generating random index", "err", err)
		return 0
	}
	return int(n.Int64())
}
