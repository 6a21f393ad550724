package cache

import (
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Admin is the settings-screen view of the store: read-only stats and a
// destructive clear. Confirming the clear is the caller's job.
type Admin struct {
	store  AudioStore
	logger *log.Logger
}

// NewAdmin wraps store.
func NewAdmin(store AudioStore, logger *log.Logger) *Admin {
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}
	return &Admin{store: store, logger: logger}
}

// Stats reports entry count and total bytes.
func (a *Admin) Stats() (Stats, error) {
	return a.store.Stats()
}

// ClearAll deletes every cached clip.
func (a *Admin) ClearAll() error {
	before, _ := a.store.Stats()
	if err := a.store.Clear(); err != nil {
		a.logger.Error("cache clear failed", "error", err)
		return err
	}
	a.logger.Info("cache cleared",
		"entries", before.EntryCount,
		"freed", humanize.IBytes(uint64(before.TotalSizeBytes)))
	return nil
}
