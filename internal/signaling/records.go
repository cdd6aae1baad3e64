// Package signaling maps offer/answer/candidate exchange onto documents in
// the shared store. The store layout mirrors one Firestore-style tree:
//
//	rooms/roomIds                          directory: next room number, name -> id
//	rooms/ROOM0                            room: name, next user number, user ids
//	rooms/ROOM0/userSettings/userNames     display names by user id
//	rooms/ROOM0/userSettings/USER1coordinates   one coordinate doc per user
//	rooms/ROOM0/fromUSER1/toUSER0          offer/answer for the USER1->USER0 session
//	rooms/ROOM0/fromUSER1/toUSER0/USER1candidates   caller candidate mailbox
//	rooms/ROOM0/fromUSER1/toUSER0/USER0candidates   callee candidate mailbox
package signaling

// DirectoryRecord is the root registry of rooms.
type DirectoryRecord struct {
	NextRoomNum  int               `msgpack:"nextRoomNum"`
	RoomNameToID map[string]string `msgpack:"roomNameToId"`
}

// RoomRecord is one active room.
type RoomRecord struct {
	RoomName    string   `msgpack:"roomName"`
	NextUserNum int      `msgpack:"nextUserNum"`
	UserIDs     []string `msgpack:"userIds"`
}

// CoordRecord is a participant's current tile.
type CoordRecord struct {
	Row int `msgpack:"row"`
	Col int `msgpack:"col"`
}

// Description is one half of a session negotiation.
type Description struct {
	Kind string `msgpack:"type"`
	SDP  string `msgpack:"sdp"`
}

// Candidate is a single ICE candidate. Field shapes follow the standard
// RTCIceCandidateInit dictionary so they convert losslessly to and from the
// transport's representation.
type Candidate struct {
	Candidate        string  `msgpack:"candidate"`
	SDPMid           *string `msgpack:"sdpMid"`
	SDPMLineIndex    *uint16 `msgpack:"sdpMLineIndex"`
	UsernameFragment *string `msgpack:"usernameFragment"`
}

// SessionRecord is the shared negotiation document for one directed pair.
type SessionRecord struct {
	Offer  *Description `msgpack:"offer"`
	Answer *Description `msgpack:"answer,omitempty"`
}

// SessionKey identifies one directed signaling record. From is always the
// participant that initiated the offer.
type SessionKey struct {
	RoomID string
	From   string
	To     string
}
