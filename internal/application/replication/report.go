package replication

import (
	"errors"
	"time"

	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// Stage is a point in the per-target replication state machine.
type Stage string

const (
	StageReceived           Stage = "RECEIVED"
	StageMirrorResolved     Stage = "MIRROR_RESOLVED"
	StageProductPatched     Stage = "PRODUCT_PATCHED"
	StageOptionsSynced      Stage = "OPTIONS_SYNCED"
	StageVariantsReconciled Stage = "VARIANTS_RECONCILED"
	StageImagesSynced       Stage = "IMAGES_SYNCED"
	StageInventorySynced    Stage = "INVENTORY_SYNCED"
	StageSnapshotPersisted  Stage = "SNAPSHOT_PERSISTED"
	StageFailed             Stage = "FAILED"
)

var stageOrder = map[Stage]int{
	StageReceived:           0,
	StageMirrorResolved:     1,
	StageProductPatched:     2,
	StageOptionsSynced:      3,
	StageVariantsReconciled: 4,
	StageImagesSynced:       5,
	StageInventorySynced:    6,
	StageSnapshotPersisted:  7,
}

// Paths
const (
	PathCreate = "create"
	PathUpdate = "update"
)

// Variant actions
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionDelete    = "delete"
	ActionBootstrap = "bootstrap"
	ActionIdentity  = "identity"
	ActionTracked   = "tracked"
	ActionQuantity  = "quantity"
)

// StepResult is the outcome of one best-effort step.
type StepResult struct {
	Step string
	Err  error
}

// VariantResult is the outcome of one action on one variant.
type VariantResult struct {
	Key       string
	Action    string
	TargetGID string
	Err       error
}

// Report aggregates the outcomes of one replication attempt. Failures are
// collected here instead of aborting sibling work.
type Report struct {
	Path         string
	TargetDomain string
	ProductID    int64
	Stage        Stage
	Skipped      bool
	SkipReason   string
	Steps        []StepResult
	Variants     []VariantResult
	StartedAt    time.Time
}

func newReport(path string, task Task) *Report {
	return &Report{
		Path:      path,
		ProductID: task.ProductID,
		Stage:     StageReceived,
		StartedAt: time.Now(),
	}
}

// advance moves to next. Stages never move backwards and FAILED is final.
func (r *Report) advance(next Stage) {
	if r.Stage == StageFailed {
		return
	}
	if stageOrder[next] > stageOrder[r.Stage] {
		r.Stage = next
	}
}

func (r *Report) fail() {
	r.Stage = StageFailed
}

func (r *Report) skip(reason string) {
	r.Skipped = true
	r.SkipReason = reason
}

func (r *Report) step(name string, err error) {
	r.Steps = append(r.Steps, StepResult{Step: name, Err: err})
}

func (r *Report) variant(key, action, gid string, err error) {
	r.Variants = append(r.Variants, VariantResult{Key: key, Action: action, TargetGID: gid, Err: err})
}

// Failures counts failed steps and variant actions.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	for _, v := range r.Variants {
		if v.Err != nil {
			n++
		}
	}
	return n
}

// Retryable returns the first failure that is not a user error. A user error
// cannot be fixed by retrying; a transport failure can.
func (r *Report) Retryable() error {
	for _, s := range r.Steps {
		if s.Err != nil && !platform.IsUserError(s.Err) {
			return s.Err
		}
	}
	for _, v := range r.Variants {
		if v.Err != nil && !platform.IsUserError(v.Err) {
			return v.Err
		}
	}
	return nil
}

// StepFailed reports whether the named step recorded a failure.
func (r *Report) StepFailed(name string) bool {
	for _, s := range r.Steps {
		if s.Step == name && s.Err != nil {
			return true
		}
	}
	return false
}

// Outcome summarizes the report for metrics.
func (r *Report) Outcome() string {
	switch {
	case r.Stage == StageFailed:
		return "failed"
	case r.Skipped:
		return "skipped"
	case r.Failures() > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Log writes the report at a level matching its outcome.
func (r *Report) Log(log *zap.Logger) {
	fields := []zap.Field{
		zap.String("path", r.Path),
		zap.String("target_shop", r.TargetDomain),
		zap.Int64("source_product_id", r.ProductID),
		zap.String("stage", string(r.Stage)),
		zap.Int("failures", r.Failures()),
		zap.Duration("duration", time.Since(r.StartedAt)),
	}
	if r.Skipped {
		fields = append(fields, zap.String("skip_reason", r.SkipReason))
	}
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	for _, v := range r.Variants {
		if v.Err != nil {
			errs = append(errs, v.Err)
		}
	}
	if len(errs) > 0 {
		fields = append(fields, zap.Error(errors.Join(errs...)))
	}

	switch r.Outcome() {
	case "failed":
		log.Error("replication failed", fields...)
	case "partial", "skipped":
		log.Warn("replication finished with issues", fields...)
	default:
		log.Info("replication finished", fields...)
	}
}
