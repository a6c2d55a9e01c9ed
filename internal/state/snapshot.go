package state

import (
	"os"
	"path/filepath"

	"tradesim/internal/schema"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// WriteSnapshot writes a portfolio snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot schema.PortfolioSnapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

// ReadSnapshot loads a portfolio snapshot from disk.
func ReadSnapshot(path string) (schema.PortfolioSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.PortfolioSnapshot{}, errors.Wrapf(err, "read %s", path)
	}
	var snap schema.PortfolioSnapshot
	if err := sonic.ConfigStd.Unmarshal(data, &snap); err != nil {
		return schema.PortfolioSnapshot{}, errors.Wrapf(err, "unmarshal %s", path)
	}
	if snap.Positions == nil {
		snap.Positions = map[string]schema.Position{}
	}
	return snap, nil
}
