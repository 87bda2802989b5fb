package main

import (
	cmd "github.com/mwiater/minirag/internal/commands"
)

// Set by -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main hands control to the cobra root command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
