package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomRecord struct {
	RoomName    string   `msgpack:"roomName"`
	NextUserNum int      `msgpack:"nextUserNum"`
	UserIDs     []string `msgpack:"userIds"`
}

func TestEncodeDecode(t *testing.T) {
	in := roomRecord{RoomName: "alpaca", NextUserNum: 2, UserIDs: []string{"USER0", "USER1"}}

	doc, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "alpaca", doc["roomName"])

	var out roomRecord
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, in, out)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	doc := Document{"roomName": "alpaca", "nextUserNum": int8(1), "stray": true}

	var out roomRecord
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, "alpaca", out.RoomName)
	assert.Equal(t, 1, out.NextUserNum)
}
