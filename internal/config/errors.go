package config

import "errors"

var (
	// ErrInvalidConfig wraps any validation failure of a loaded config
	// file. Fatal at startup; the process exits non-zero.
	ErrInvalidConfig = errors.New("invalid configuration")
)
