package parchive

import "errors"

var (
	ErrNotFound = errors.New("archive object not found")
)
