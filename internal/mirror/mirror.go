// Package mirror is the off-chain record of tracked pools and their migration
// workflow. It is the synchronization point between concurrent sweeps.
package mirror

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for an untracked pool.
var ErrNotFound = errors.New("fund data not found")

// State is the persisted migration workflow state of a pool.
type State string

const (
	StateTrading            State = "TRADING"
	StateThresholdReached   State = "THRESHOLD_REACHED"
	StateMetadataCreated    State = "METADATA_CREATED"
	StateMigrated           State = "MIGRATED"
	StateSettled            State = "SETTLED"
	StateManualIntervention State = "NEEDS_MANUAL_INTERVENTION"
)

// FundData is one tracked pool. DammV2Pool and MigratedAt are written once, by
// SetMigrated, after the on-chain migration flag was observed.
type FundData struct {
	BondingCurvePool   string     `json:"bondingCurvePool" bson:"bondingCurvePool"`
	BaseMint           string     `json:"baseMint" bson:"baseMint"`
	DammV2Pool         string     `json:"dammV2Pool,omitempty" bson:"dammV2Pool,omitempty"`
	MigratedAt         *time.Time `json:"migratedAt,omitempty" bson:"migratedAt,omitempty"`
	State              State      `json:"state" bson:"state"`
	Attempts           int        `json:"attempts" bson:"attempts"`
	LastError          string     `json:"lastError,omitempty" bson:"lastError,omitempty"`
	LastStep           string     `json:"lastStep,omitempty" bson:"lastStep,omitempty"`
	NextAttemptAt      *time.Time `json:"nextAttemptAt,omitempty" bson:"nextAttemptAt,omitempty"`
	MetadataSignature  string     `json:"metadataSignature,omitempty" bson:"metadataSignature,omitempty"`
	MigrationSignature string     `json:"migrationSignature,omitempty" bson:"migrationSignature,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Settled reports whether the migrated pool has been recorded.
func (f *FundData) Settled() bool {
	return f.DammV2Pool != ""
}

// Progress is a workflow update written after each pipeline step.
type Progress struct {
	State              State
	Attempts           int
	LastError          string
	LastStep           string
	NextAttemptAt      *time.Time
	MetadataSignature  string
	MigrationSignature string
}

// Apply copies p onto f. Empty signatures keep the stored ones.
func (p Progress) Apply(f *FundData) {
	f.State = p.State
	f.Attempts = p.Attempts
	f.LastError = p.LastError
	f.LastStep = p.LastStep
	f.NextAttemptAt = p.NextAttemptAt
	if p.MetadataSignature != "" {
		f.MetadataSignature = p.MetadataSignature
	}
	if p.MigrationSignature != "" {
		f.MigrationSignature = p.MigrationSignature
	}
}

// Store persists FundData.
type Store interface {
	// ListPools returns every tracked pool.
	ListPools(ctx context.Context) ([]FundData, error)
	Get(ctx context.Context, pool string) (*FundData, error)
	// Upsert starts tracking a pool. An existing record only has its base mint
	// refreshed.
	Upsert(ctx context.Context, data FundData) error
	// SaveProgress records workflow progress; settled pools are left untouched.
	SaveProgress(ctx context.Context, pool string, p Progress) error
	// SetMigrated sets DammV2Pool and MigratedAt and marks the pool settled, only
	// if DammV2Pool is still empty. It reports whether the record changed.
	SetMigrated(ctx context.Context, pool, dammV2Pool string, at time.Time) (bool, error)
	Close(ctx context.Context) error
}
