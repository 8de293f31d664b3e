package deferredshading

import "errors"

var (
	ErrInvalidConfig = errors.New("deferredshading: invalid config")
	ErrNoRenderer    = errors.New("deferredshading: app has no renderer")
	ErrNoBackends    = errors.New("deferredshading: module requires gpu backends")
)
