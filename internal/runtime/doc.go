// Package runtime provides the execution context for ghrest commands.
//
// It encapsulates shared dependencies and configuration needed by commands,
// such as the API client, logger, and the selected repository and branch.
package runtime
