package store

import (
	"path/filepath"
)

// StimseqDir returns the project-local .stimseq directory for root.
func StimseqDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".stimseq")
}

// DBPath returns the schedule database path for root.
func DBPath(projectRoot string) string {
	return filepath.Join(StimseqDir(projectRoot), "stimseq.db")
}
