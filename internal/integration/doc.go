// Package integration provides cross-package integration tests for heavysql.
// These tests run the full pipeline (table load, standard generation, heavy
// analysis, persistence and validation) against a scripted model.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
