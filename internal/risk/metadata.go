package risk

import (
	"strings"

	"paperTrader/internal/domain"
)

// Defaults applied to signal metadata fields that arrive empty.
const (
	DefaultModelVersion = "unversioned"
	DefaultSource       = "unknown"
)

// NormalizeMetadata upgrades m to domain.CurrentMetadataVersion and fills explicit defaults.
// The returned bool reports whether anything was changed.
func NormalizeMetadata(m domain.SignalMetadata) (domain.SignalMetadata, bool) {
	updated := false

	// 0 -> 1: unversioned payloads are treated as version 1, unless they already
	// carry a horizon, which only exists from version 2 on.
	if m.Version < 1 {
		m.Version = 1
		if m.HorizonDays > 0 {
			m.Version = 2
		}
		updated = true
	}

	// 1 -> 2: HorizonDays introduced. Version 1 signals use the configured hold period.
	if m.Version < 2 {
		m.HorizonDays = 0
		m.Version = 2
		updated = true
	}

	if strings.TrimSpace(m.ModelVersion) == "" {
		m.ModelVersion = DefaultModelVersion
		updated = true
	}
	if strings.TrimSpace(m.Source) == "" {
		m.Source = DefaultSource
		updated = true
	}
	if m.HorizonDays < 0 {
		m.HorizonDays = 0
		updated = true
	}
	return m, updated
}
