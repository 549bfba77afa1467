package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the plan document schema this engine reads and writes.
const SchemaVersion = "1.0.0"

// CheckSchemaCompatibility checks if a plan document's schema version can be
// consumed by this engine. Returns nil if compatible, error with details if
// not.
//
// Compatibility Rules:
//   - An empty document version is treated as pre-versioning and accepted
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.0.0 reads 1.0.3 documents)
func CheckSchemaCompatibility(documentVersion string) error {
	// Pre-versioning documents carry no schema_version field.
	if documentVersion == "" {
		return nil
	}

	documentVersion = strings.TrimPrefix(documentVersion, "v")

	docSemver, err := semver.NewVersion(documentVersion)
	if err != nil {
		return fmt.Errorf("invalid plan schema version '%s': %w", documentVersion, err)
	}

	engineSemver, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid engine schema version '%s': %w", SchemaVersion, err)
	}

	if docSemver.Major() != engineSemver.Major() {
		return fmt.Errorf("major schema mismatch: engine reads %d.x.x but document is %d.x.x",
			engineSemver.Major(), docSemver.Major())
	}

	if docSemver.Minor() != engineSemver.Minor() {
		return fmt.Errorf("minor schema mismatch: engine reads %d.%d.x but document is %d.%d.x",
			engineSemver.Major(), engineSemver.Minor(),
			docSemver.Major(), docSemver.Minor())
	}

	// Patch versions can differ, so we're compatible
	return nil
}
