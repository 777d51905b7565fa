package marketplace

import "github.com/company/betterteams/internal/addon"

// Listing is one entry of the catalog JSON array.
type Listing struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Repository  string `json:"repository"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Record converts a listing with the same defaults installed addons get.
func (l Listing) Record(kind addon.Kind) addon.Record {
	m := addon.Manifest{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Version:     l.Version,
		Author:      l.Author,
		Repository:  l.Repository,
	}
	return m.ToRecord(kind, l.ID)
}
