package util

import (
	"fmt"
	"net/url"
)

// ValidateUpstreamURL checks that raw is an absolute http(s) URL with a
// literal host. Credentials and fragments are rejected since neither
// would reach the upstream as configured. Errors wrap ErrInvalidInput.
func ValidateUpstreamURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidInput, u.Scheme)
	case u.Host == "":
		return fmt.Errorf("%w: missing host", ErrInvalidInput)
	case u.User != nil:
		return fmt.Errorf("%w: credentials are not allowed", ErrInvalidInput)
	case u.Fragment != "":
		return fmt.Errorf("%w: fragments are not sent upstream", ErrInvalidInput)
	}
	return nil
}

// ValidateRatio checks that v lies in [0, 1].
func ValidateRatio(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %v is outside [0, 1]", ErrInvalidInput, v)
	}
	return nil
}
