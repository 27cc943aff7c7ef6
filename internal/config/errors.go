package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoRootURL is returned when no root URL or site name is given.
	ErrNoRootURL = errors.New("no root URL specified: provide a URL or a site name from the config file")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWaitUntil is returned for an unknown wait-until policy.
	ErrInvalidWaitUntil = errors.New("invalid wait-until: must be one of load, domcontentloaded, networkidle")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Zero means no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidBatchSize is returned when the number of concurrent sites
	// is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownSite is returned when a site name is not in the config file.
	ErrUnknownSite = errors.New("site not found in config file")
)
