package storage

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Stats reports per-family record counts for one manuscript.
type Stats struct {
	Characters    int `json:"characters"`
	Cameos        int `json:"cameos"`
	WorldEntities int `json:"world_entities"`
	Foreshadowing int `json:"foreshadowing"`
	Chronicle     int `json:"chronicle"`
	Summaries     int `json:"summaries"`
}

// NormalizeName canonicalizes an entity name for use as a store key: trims
// surrounding whitespace and collapses internal runs of spaces. Case is
// preserved; most manuscripts are CJK where case folding is meaningless and
// Latin names are rare enough that authors expect exact forms.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	return strings.Join(fields, " ")
}
