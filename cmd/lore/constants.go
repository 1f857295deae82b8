package main

// Default limits for CLI commands.
const (
	DefaultSearchLimit  = 10
	DefaultSimilarLimit = 5
	DefaultHistoryLimit = 20
	DefaultRelatedDepth = 2
	DefaultChainDepth   = 3
	DefaultBeatEntities = 10
)

// Valid export formats.
var validFormats = []string{"json", "csv", "markdown"}

// Valid serve transports.
var validTransports = []string{"stdio", "http"}
