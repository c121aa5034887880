package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

const initialSchemaFile = "sql/001_initial_schema.sql"

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	content, err := schemaFS.ReadFile(initialSchemaFile)
	if err != nil {
		return "", fmt.Errorf("could not read schema file: %w", err)
	}
	return string(content), nil
}

// Files lists the embedded migration files in apply order
func Files() ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("could not list migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
