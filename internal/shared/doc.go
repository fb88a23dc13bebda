// Package shared holds utilities used across the pipeline that do not
// belong to any one domain package.
//
// The testutil subpackage carries test-only helpers, currently the
// capturing slog handler used to assert on log output.
package shared
