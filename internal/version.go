package internal

import (
	"fmt"
)

var (
	version    = "0.2.0"
	buildDate  = "2025-01-01"
	commitHash = ""
)

func Version() string {
	if commitHash == "" {
		return version
	}
	return fmt.Sprintf("%s+%s.%s", version, buildDate, commitHash)
}
