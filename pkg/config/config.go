// Package config stores portalctl profiles.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Profile points portalctl at one insurance backend.
type Profile struct {
	Name    string `json:"name"`
	APIURL  string `json:"apiUrl"`
	Timeout string `json:"timeout,omitempty"`
}

type File struct {
	Active   string             `json:"active"`
	Profiles map[string]Profile `json:"profiles"`
	Version  int                `json:"version"`
}

// Keys lists the profile settings accepted by Set.
var Keys = []string{"apiUrl", "timeout"}

func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".portalctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func Load() (*File, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{Active: "default", Profiles: map[string]Profile{}, Version: 1}, nil
		}
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	if f.Active == "" {
		f.Active = "default"
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return &f, nil
}

func Save(f *File) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Set updates one setting of the named profile, creating the profile when it
// does not exist yet.
func (f *File) Set(profile, key, value string) error {
	p := f.Profiles[profile]
	p.Name = profile
	switch key {
	case "apiUrl":
		p.APIURL = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		p.Timeout = value
	default:
		return fmt.Errorf("unknown key %q (want one of %v)", key, Keys)
	}
	f.Profiles[profile] = p
	return nil
}
