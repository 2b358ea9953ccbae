// Package store persists composed flow graphs so a CLI run can look
// back at the previous build for the same workspace root. It is additive
// persistence only: it never re-runs matching or mutates a graph once
// stored.
package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/r-dutton/flowlens/internal/dump"
	"github.com/r-dutton/flowlens/internal/flowgraph"
)

// Snapshot is one persisted graph build for a workspace root.
type Snapshot struct {
	ID          uint           `gorm:"primaryKey"`
	WorkspaceRoot string       `gorm:"type:varchar(1024);index"`
	BuiltAt     string         `gorm:"type:varchar(40);index"` // RFC3339, supplied by caller
	NodeCount   int            `gorm:"not null"`
	EdgeCount   int            `gorm:"not null"`
	Nodes       datatypes.JSON `gorm:"type:jsonb"`
	Edges       datatypes.JSON `gorm:"type:jsonb"`
}

// Store wraps a *gorm.DB scoped to graph snapshots.
type Store struct {
	db *gorm.DB
}

// isURL detects the DSN shape: a libsql remote URL vs a local file
// path.
func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql")
}

// Open connects to dsn (a local sqlite file path, or a libsql:// /
// https:// remote DSN) and migrates the Snapshot table.
func Open(dsn string, debug bool) (*Store, error) {
	if !isURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create dir: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("FLOWLENS_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("store: libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{DriverName: "libsql", Conn: conn, DSN: dsn})
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists g as a snapshot for workspaceRoot at builtAt (an RFC3339
// timestamp supplied by the caller; this package never calls time.Now
// itself so callers fully control the recorded instant).
func (s *Store) Save(workspaceRoot, builtAt string, g *flowgraph.Graph) (*Snapshot, error) {
	nodesJSON, edgesJSON, err := marshalGraph(g)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		WorkspaceRoot: workspaceRoot,
		BuiltAt:       builtAt,
		NodeCount:     len(g.Nodes),
		EdgeCount:     len(g.Edges),
		Nodes:         nodesJSON,
		Edges:         edgesJSON,
	}
	if err := s.db.Create(snap).Error; err != nil {
		return nil, fmt.Errorf("store: save snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the most recently built snapshot for workspaceRoot
// before builtAt, or nil if none exists.
func (s *Store) Latest(workspaceRoot, beforeBuiltAt string) (*Snapshot, error) {
	var snap Snapshot
	q := s.db.Where("workspace_root = ?", workspaceRoot)
	if beforeBuiltAt != "" {
		q = q.Where("built_at < ?", beforeBuiltAt)
	}
	err := q.Order("built_at desc").First(&snap).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query snapshot: %w", err)
	}
	return &snap, nil
}

func marshalGraph(g *flowgraph.Graph) (datatypes.JSON, datatypes.JSON, error) {
	var buf strings.Builder
	if err := dump.Write(&buf, g); err != nil {
		return nil, nil, fmt.Errorf("store: marshal graph: %w", err)
	}
	var d dump.Dump
	if err := json.Unmarshal([]byte(buf.String()), &d); err != nil {
		return nil, nil, fmt.Errorf("store: decode graph for storage: %w", err)
	}
	nodesJSON, err := json.Marshal(d.Nodes)
	if err != nil {
		return nil, nil, err
	}
	edgesJSON, err := json.Marshal(d.Edges)
	if err != nil {
		return nil, nil, err
	}
	return datatypes.JSON(nodesJSON), datatypes.JSON(edgesJSON), nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
