// Package logging configures log/slog for hoopla.
//
// Normal CLI runs log warnings to stderr only. With --debug, or when serving
// MCP over stdio, JSON logs are written to a size-rotated file under
// ~/.hoopla/logs/.
package logging
