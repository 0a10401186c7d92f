// Package configstore owns the persisted configuration document (proxy
// settings, profiles, default profile) and hands out copy-on-write
// snapshots to the request path while serializing mutations from the
// config API. Writes are atomic: temp file in the same directory, fsync,
// rename over the destination.
package configstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"thinkproxy/internal/profile"
)

// ProxySettings holds the listener port and optional client-facing key.
type ProxySettings struct {
	Port   int    `json:"port"`
	APIKey string `json:"api_key,omitempty"`
}

// document is the on-disk shape of proxy_config.json.
type document struct {
	Proxy          ProxySettings      `json:"proxy"`
	Profiles       []*profile.Profile `json:"profiles"`
	DefaultProfile string             `json:"default_profile,omitempty"`
	Version        int                `json:"version"`
}

const currentVersion = 1

func emptyDocument() *document {
	return &document{Proxy: ProxySettings{Port: 8080}, Version: currentVersion}
}

// load reads the document at path, returning a fresh empty document if the
// file does not exist yet (first-run bootstrap).
func load(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version == 0 {
		doc.Version = currentVersion
	}
	return &doc, nil
}

// save writes doc to path atomically: write to a sibling temp file in the
// same directory, fsync, then rename over the destination.
func save(path string, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "proxy_config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func nowISO() time.Time {
	return time.Now().UTC()
}
