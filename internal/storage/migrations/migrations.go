package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// versionTable records which migrations have been applied.
const versionTable = "schema_migrations"

// Tables the stores read and write, checked after migrating.
var (
	PostgresTables   = []string{"analysis_runs", "alert_events", "ingest_progress"}
	ClickhouseTables = []string{"ticks", "feature_rows"}
)

// Migration is one embedded SQL file. Version is the numeric file name prefix.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// load reads the .sql files of dir ordered by version.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var out []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, ok := strings.Cut(name, "_")
		if !ok || version == "" || strings.Trim(version, "0123456789") != "" {
			return nil, fmt.Errorf("migration %s: name must start with a numeric version and '_'", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %s", prev, name, version)
		}
		seen[version] = name

		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pending returns the migrations whose version is not in applied, in order.
func pending(all []Migration, applied []string) []Migration {
	done := toSet(applied)
	var out []Migration
	for _, m := range all {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// missingTables returns the required tables absent from present.
func missingTables(required, present []string) []string {
	have := toSet(present)
	var out []string
	for _, t := range required {
		if !have[t] {
			out = append(out, t)
		}
	}
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
