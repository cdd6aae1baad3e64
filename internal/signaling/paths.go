package signaling

import "fmt"

// DirectoryPath is the room-name directory document.
func DirectoryPath() string {
	return "rooms/roomIds"
}

// RoomPath is the room document for roomID.
func RoomPath(roomID string) string {
	return "rooms/" + roomID
}

// UserNamesPath is the display-name registry document for a room.
func UserNamesPath(roomID string) string {
	return RoomPath(roomID) + "/userSettings/userNames"
}

// CoordPath is the coordinate document for one participant.
func CoordPath(roomID, userID string) string {
	return fmt.Sprintf("%s/userSettings/%scoordinates", RoomPath(roomID), userID)
}

// SessionPath is the negotiation document for the directed pair in key.
func (k SessionKey) SessionPath() string {
	return fmt.Sprintf("%s/from%s/to%s", RoomPath(k.RoomID), k.From, k.To)
}

// CandidatesPath is the append-only candidate mailbox owned by userID within
// the session identified by key.
func (k SessionKey) CandidatesPath(userID string) string {
	return fmt.Sprintf("%s/%scandidates", k.SessionPath(), userID)
}
