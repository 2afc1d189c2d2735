//go:build tools
// +build tools

// Package tools lists the development tools used by this repository.
// They are installed with `go install` and are not tracked in go.mod.
package tools

// mockgen regenerates internal/mocks from the repository interfaces in internal/core:
//   go install go.uber.org/mock/mockgen@v0.6.0
//   go generate ./internal/mocks/...
//
// golangci-lint runs the linters referenced by the nolint directives in the tree:
//   go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
