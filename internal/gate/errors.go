package gate

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidAPIKey   = errors.New("invalid api key")
	ErrAppMismatch     = errors.New("api key does not belong to app")
	ErrCatalogNotReady = errors.New("rule catalog not loaded")
)
