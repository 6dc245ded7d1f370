package artifact

import "github.com/Laisky/errors/v2"

var (
	// ErrUnavailable is returned once every store attempt failed.
	ErrUnavailable = errors.New("artifact store unavailable")
	// ErrInvalidReference is returned for references a backend cannot parse.
	ErrInvalidReference = errors.New("invalid artifact reference")
)
