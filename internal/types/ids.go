package types

import "github.com/google/uuid"

// propertyKeyNamespace scopes generated past-event property keys.
var propertyKeyNamespace = uuid.MustParse("3c5b8f0e-9d2a-4e61-8b7f-52a1c0d4e9a3")

// NewItemID generates a UUIDv7 item identifier for items decoded without
// one. Time-ordered IDs cluster sequential inserts in index pages.
func NewItemID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GeneratedPropertyKey derives the stable counter key for a past event
// condition from its canonical serialized form. Equal inputs yield equal keys.
func GeneratedPropertyKey(canonical []byte) string {
	return uuid.NewSHA1(propertyKeyNamespace, canonical).String()
}
