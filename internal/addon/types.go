// Package addon reads and maintains the on-disk addon layout:
//
//	<root>/plugins/<id>/{manifest.json,main.js}
//	<root>/themes/<id>/{manifest.json,main.js}
package addon

import (
	"fmt"
	"strings"
)

// Kind distinguishes plugins from themes.
type Kind string

const (
	Plugin Kind = "plugin"
	Theme  Kind = "theme"
)

// Kinds lists every addon kind in display order.
var Kinds = []Kind{Plugin, Theme}

const (
	ManifestFile   = "manifest.json"
	ScriptFile     = "main.js"
	MainScriptFile = "betterteams-main.js"
)

const (
	DefaultName    = "Unknown Addon"
	DefaultVersion = "1.0.0"
	DefaultAuthor  = "Unknown Author"
)

// Dir is the folder under the scripts root holding addons of this kind.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// Title is the capitalised singular, used in user-facing messages.
func (k Kind) Title() string {
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

func (k Kind) Valid() bool {
	return k == Plugin || k == Theme
}

// ParseKind accepts "plugin", "plugins", "theme" or "themes".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plugin", "plugins":
		return Plugin, nil
	case "theme", "themes":
		return Theme, nil
	}
	return "", fmt.Errorf("unknown addon kind: %q", s)
}

// Manifest is the on-disk manifest.json. Empty fields are treated as absent.
type Manifest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Repository  string `json:"repository,omitempty"`
}

// Record is the runtime view of an installed or catalog addon.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Repository  string `json:"repository"`
	IsActive    bool   `json:"isActive"`
	Kind        Kind   `json:"kind"`
	FolderName  string `json:"folderName,omitempty"`
}

// ToRecord fills defaults. The id must already be resolved; an empty id
// stays empty.
func (m Manifest) ToRecord(kind Kind, folder string) Record {
	return Record{
		ID:          m.ID,
		Name:        orDefault(m.Name, DefaultName),
		Description: m.Description,
		Version:     orDefault(m.Version, DefaultVersion),
		Author:      orDefault(m.Author, DefaultAuthor),
		Repository:  m.Repository,
		Kind:        kind,
		FolderName:  folder,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
