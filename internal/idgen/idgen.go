package idgen

import "github.com/google/uuid"

// New returns a new globally unique identifier. Implemented as a thin
// wrapper so tests can stub it with predictable values.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }
