package repository

import "errors"

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
	ErrStaleGeneration = errors.New("cache generation moved on")
)
