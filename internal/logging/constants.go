package logging

// Standardized field names for structured logging.
const (
	FieldComponent  = "component"
	FieldSession    = "session_id"
	FieldPhase      = "phase"
	FieldFromPhase  = "from_phase"
	FieldFile       = "file"
	FieldImportType = "import_type"
	FieldDateFormat = "date_format"
	FieldConfidence = "confidence"
	FieldRow        = "row"
	FieldMerchant   = "merchant"
	FieldCategory   = "category"
	FieldStrategy   = "strategy"
	FieldReason     = "reason"
	FieldCount      = "count"
	FieldChunk      = "chunk"
	FieldDuration   = "duration_ms"
)
