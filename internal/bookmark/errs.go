package bookmark

import "errors"

var (
	ErrNotFound      = errors.New("bookmark not found")
	ErrIDNotProvided = errors.New("no bookmark id provided")
)
