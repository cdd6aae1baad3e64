package store

import "github.com/vmihailenco/msgpack/v5"

// Encode converts a typed record into a Document via a msgpack round-trip.
func Encode(v any) (Document, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := msgpack.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts a Document back into the provided typed record.
func Decode(doc Document, v any) error {
	b, err := msgpack.Marshal(doc)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, v)
}
