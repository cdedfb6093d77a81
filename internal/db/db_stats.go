package db

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// TableStats describes one table for the debug surface.
type TableStats struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// DatabaseStats summarises the database for the debug surface.
type DatabaseStats struct {
	TotalSizeMB float64      `json:"total_size_mb"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports the database file size and per-table row counts,
// largest tables first.
func (db *DB) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to query page_count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to query page_size: %w", err)
	}

	stats := &DatabaseStats{
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
	}

	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	for _, name := range names {
		var count int64
		// Table names come from sqlite_master, not user input.
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: name, RowCount: count})
	}

	sort.Slice(stats.Tables, func(i, j int) bool {
		if stats.Tables[i].RowCount != stats.Tables[j].RowCount {
			return stats.Tables[i].RowCount > stats.Tables[j].RowCount
		}
		return stats.Tables[i].Name < stats.Tables[j].Name
	})

	return stats, nil
}

// handleDBStats serves GetDatabaseStats as JSON.
func (db *DB) handleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := db.GetDatabaseStats()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to collect database stats: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode stats: %v", err), http.StatusInternalServerError)
	}
}
