// Package state records extraction runs in a SQLite database.
// Each run keeps a snapshot of the lineage graph it produced so that past
// results can be queried with plain SQL.
package state

import (
	"time"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one extraction over an input path.
type Run struct {
	ID             string     `json:"id"`
	Input          string     `json:"input"`
	DefaultCatalog string     `json:"default_catalog"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	FileCount      int        `json:"file_count"`
	Error          string     `json:"error,omitempty"`

	// Fact counts, filled from v_runs.
	NodeCount      int `json:"node_count"`
	LineageCount   int `json:"lineage_count"`
	JoinCount      int `json:"join_count"`
	UsageCount     int `json:"usage_count"`
	StatementCount int `json:"statement_count"`
}

// Store persists runs and the graphs they produced.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(input, defaultCatalog string) (*Run, error)
	SaveGraph(runID string, graph *lineage.Graph) error
	CompleteRun(id string, status RunStatus, fileCount int, errMsg string) error

	GetRun(id string) (*Run, error)
	GetLatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	LatestLineage() ([]lineage.LineageEdge, error)
}

var _ Store = (*SQLiteStore)(nil)
