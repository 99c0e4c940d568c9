package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Validate reports only the blocking problems of cfg.
func Validate(cfg Config) error {
	_, res := NormalizeAndValidate(cfg)
	return res.Err()
}

// SaveAtomic validates cfg and replaces path with it, keeping the previous
// file as path+".bak".
func SaveAtomic(path string, cfg Config) error {
	norm, res := NormalizeAndValidate(cfg)
	if err := res.Err(); err != nil {
		return err
	}

	b, err := yaml.Marshal(&norm)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
