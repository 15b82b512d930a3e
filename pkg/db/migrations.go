package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const migrationsLogPrefix = "db:migrations"

// Migration is one numbered schema change read from <version>_<name>.up.sql and an optional
// <version>_<name>.down.sql. A plain <version>_<name>.sql is an up-only migration.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// ID is the file stem shared by the up and down scripts.
func (m Migration) ID() string {
	return m.Version + "_" + m.Name
}

// LoadMigrations reads the .sql files in dir and pairs them into migrations ordered by version.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	byVersion := map[string]*Migration{}
	downs := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		version, name, down, err := parseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		if down {
			downs[version+"_"+name] = string(data)
			continue
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("%s - version %s used by %s and %s", migrationsLogPrefix, version, prev.ID(), e.Name())
		}
		byVersion[version] = &Migration{Version: version, Name: name, Up: string(data)}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if sql, ok := downs[m.ID()]; ok {
			m.Down = sql
			delete(downs, m.ID())
		}
		out = append(out, *m)
	}
	for id := range downs {
		return nil, fmt.Errorf("%s - %s.down.sql has no up migration", migrationsLogPrefix, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	slog.Info(fmt.Sprintf("%s - Loaded %d migrations from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

// parseMigrationName splits "001_resources.up.sql" into version, name and direction.
func parseMigrationName(file string) (version, name string, down bool, err error) {
	stem := strings.TrimSuffix(file, ".sql")
	switch {
	case strings.HasSuffix(stem, ".down"):
		stem, down = strings.TrimSuffix(stem, ".down"), true
	case strings.HasSuffix(stem, ".up"):
		stem = strings.TrimSuffix(stem, ".up")
	}
	version, name, ok := strings.Cut(stem, "_")
	if !ok || version == "" || name == "" || strings.Trim(version, "0123456789") != "" {
		return "", "", false, fmt.Errorf("%s - %s is not named <version>_<name>[.up|.down].sql", migrationsLogPrefix, file)
	}
	return version, name, down, nil
}

// pendingMigrations returns the migrations whose version is not in applied, in order.
func pendingMigrations(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// rollbackTarget finds the migration to revert for the latest applied version.
func rollbackTarget(all []Migration, version string) (Migration, error) {
	for _, m := range all {
		if m.Version != version {
			continue
		}
		if strings.TrimSpace(m.Down) == "" {
			return Migration{}, fmt.Errorf("%s - migration %s has no down script", migrationsLogPrefix, m.ID())
		}
		return m, nil
	}
	return Migration{}, fmt.Errorf("%s - applied version %s has no migration file", migrationsLogPrefix, version)
}
