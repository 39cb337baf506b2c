package db

import "errors"

var (
	ErrMigration       = errors.New("migration failed")
	ErrInvalidField    = errors.New("invalid update field")
	ErrNoFieldsToWrite = errors.New("no fields to update")
)
