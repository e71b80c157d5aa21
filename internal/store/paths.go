package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const pathsFileName = "paths.json"

// pathsFile is the on-disk shape of paths.json (spec §6.1).
type pathsFile struct {
	Paths  []string  `json:"paths"`
	MTimes []float64 `json:"mtimes"`
}

func readPathsFile(dir string) (pathsFile, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, pathsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return pathsFile{}, false, nil
		}
		return pathsFile{}, false, err
	}
	var pf pathsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return pathsFile{}, false, err
	}
	return pf, true, nil
}

func writePathsFile(dir string, pf pathsFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".paths-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, pathsFileName))
}
