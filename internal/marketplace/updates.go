package marketplace

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	"github.com/company/betterteams/internal/addon"
)

// Update describes an installed addon whose catalog version is newer.
type Update struct {
	Kind      addon.Kind
	ID        string
	Name      string
	Installed string
	Available string
}

// FindUpdates compares installed records against catalog records of the
// same kind. Versions that do not parse as semver are compared as strings
// and reported only when they differ.
func FindUpdates(installed, catalog []addon.Record) []Update {
	byID := lo.SliceToMap(catalog, func(r addon.Record) (string, addon.Record) {
		return r.ID, r
	})

	var updates []Update
	for _, rec := range installed {
		remote, ok := byID[rec.ID]
		if !ok || !newer(rec.Version, remote.Version) {
			continue
		}
		updates = append(updates, Update{
			Kind:      rec.Kind,
			ID:        rec.ID,
			Name:      rec.Name,
			Installed: rec.Version,
			Available: remote.Version,
		})
	}
	return updates
}

func newer(installed, available string) bool {
	iv, errI := semver.NewVersion(installed)
	av, errA := semver.NewVersion(available)
	if errI != nil || errA != nil {
		return installed != available
	}
	return av.GreaterThan(iv)
}
