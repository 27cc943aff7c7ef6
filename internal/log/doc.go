// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// docmirror forwards user supplied headers and cookies to documentation
// hosts, and some documentation links carry signed query strings. This
// package keeps those values out of log output:
//   - Attributes whose key names a secret (Cookie, Authorization, token, ...)
//   - Values that look like credentials (JWT, Bearer, Basic, AWS keys)
//   - Sensitive query parameters and user info inside http(s) URLs
//   - Header maps logged as a single attribute
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request sent",
//	    "cookie", "session=abc123",                        // masked
//	    "url", "https://docs.example.com/a?token=abc123",  // token masked
//	)
//
//	slog.SetDefault(logger)
package log
