package addon

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// GenerateID derives the stable id for a manifest without one. The MD5 of
// "<name>-<folder>" is laid out in the mixed-endian GUID byte order used by
// earlier Windows releases so previously generated ids are reproduced.
func GenerateID(name, folder string) string {
	if name == "" {
		name = "unknown"
	}
	sum := md5.Sum([]byte(name + "-" + folder))

	var u uuid.UUID
	copy(u[:], sum[:])
	u[0], u[1], u[2], u[3] = sum[3], sum[2], sum[1], sum[0]
	u[4], u[5] = sum[5], sum[4]
	u[6], u[7] = sum[7], sum[6]
	return u.String()
}

// ReadManifest parses the manifest at path and returns it with the raw
// bytes, which BackfillID needs to preserve unknown keys.
func ReadManifest(path string) (Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, data, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, data, nil
}

// ParseManifest decodes manifest.json content.
func ParseManifest(data []byte) (Manifest, error) {
	if !gjson.ValidBytes(data) {
		return Manifest{}, fmt.Errorf("invalid JSON")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// SetManifestID sets the "id" key in raw, keeping every other key in place.
func SetManifestID(raw []byte, id string) ([]byte, error) {
	out, err := sjson.SetBytes(raw, "id", id)
	if err != nil {
		return nil, fmt.Errorf("setting manifest id: %w", err)
	}
	return pretty.PrettyOptions(out, &pretty.Options{Width: 80, Indent: "  "}), nil
}

// BackfillID writes id into the manifest at path.
func BackfillID(path string, raw []byte, id string) error {
	out, err := SetManifestID(raw, id)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, out)
}

func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
