//go:build windows

package mcp

import "os"

// shutdownSignals cancel a running command. Windows has no SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
