package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstants_AreDistinct(t *testing.T) {
	fields := []string{
		FieldComponent, FieldSession, FieldPhase, FieldFromPhase, FieldFile,
		FieldImportType, FieldDateFormat, FieldConfidence, FieldRow, FieldMerchant,
		FieldCategory, FieldStrategy, FieldReason, FieldCount, FieldChunk, FieldDuration,
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		assert.NotEmpty(t, f)
		assert.False(t, seen[f], "duplicate field name %q", f)
		seen[f] = true
	}
}
