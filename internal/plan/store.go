// Package plan owns the on-disk order plans: one JSON document per
// (broker, risk tier) pair, read-modify-written by the validator, plus
// adjacent rejection and placement report documents.
//
// The store performs no locking; callers must guarantee at most one
// concurrent sweep per broker account.
package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/version"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

const (
	planFileName       = "plan.json"
	rejectionsFileName = "rejections.json"
	placementsFileName = "placements.json"
)

// Store reads and writes plan documents under a root directory, laid out as
// <root>/<broker>/<tier>/plan.json.
type Store struct {
	root string
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) dir(broker, tier string) string {
	return filepath.Join(s.root, broker, tier)
}

// PlanPath returns the plan document path for a (broker, tier) pair.
func (s *Store) PlanPath(broker, tier string) string {
	return filepath.Join(s.dir(broker, tier), planFileName)
}

// Load reads the plan document for a (broker, tier) pair. A missing file is
// an empty plan, not an error; a malformed or schema-incompatible document
// is a config error and the caller skips the document.
func (s *Store) Load(broker, tier string) (*types.PlanDocument, error) {
	path := s.PlanPath(broker, tier)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.PlanDocument{
				SchemaVersion: version.SchemaVersion,
				Broker:        broker,
				Tier:          tier,
				UpdatedAt:     time.Time{},
				Entries:       nil,
				Summary:       types.PlanSummary{},
			}, nil
		}

		return nil, errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to read plan document %s", path)
	}

	var doc types.PlanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "malformed plan document %s", path)
	}

	if err := version.CheckSchemaCompatibility(doc.SchemaVersion); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSchemaVersionMismatch, err, "plan document %s is not readable by this engine", path)
	}

	doc.Broker = broker
	doc.Tier = tier

	return &doc, nil
}

// Save rewrites the plan document atomically (temp file + rename) with a
// refreshed summary and timestamp.
func (s *Store) Save(doc *types.PlanDocument) error {
	doc.SchemaVersion = version.SchemaVersion
	doc.UpdatedAt = time.Now().UTC()
	doc.Summarize()

	dir := s.dir(doc.Broker, doc.Tier)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to create plan directory %s", dir)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodePlanDocumentInvalid, "failed to encode plan document", err)
	}

	path := s.PlanPath(doc.Broker, doc.Tier)

	tmp, err := os.CreateTemp(dir, planFileName+".tmp-*")
	if err != nil {
		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to stage plan document %s", path)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to write plan document %s", path)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to close plan document %s", path)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to replace plan document %s", path)
	}

	return nil
}

// AppendRejections appends rejection records to the report document adjacent
// to the plan.
func (s *Store) AppendRejections(broker, tier string, records []types.RejectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	return appendRecords(filepath.Join(s.dir(broker, tier), rejectionsFileName), records)
}

// AppendPlacements appends placement records to the report document adjacent
// to the plan.
func (s *Store) AppendPlacements(broker, tier string, records []types.PlacementRecord) error {
	if len(records) == 0 {
		return nil
	}

	return appendRecords(filepath.Join(s.dir(broker, tier), placementsFileName), records)
}

// appendRecords reads a JSON array document, appends, and rewrites it.
func appendRecords[T any](path string, records []T) error {
	var existing []T

	data, err := os.ReadFile(path)

	switch {
	case err == nil:
		if err := json.Unmarshal(data, &existing); err != nil {
			return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "malformed report document %s", path)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to create report directory for %s", path)
		}
	default:
		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to read report document %s", path)
	}

	existing = append(existing, records...)

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodePlanDocumentInvalid, "failed to encode report document", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodePlanDocumentInvalid, err, "failed to write report document %s", path)
	}

	return nil
}
