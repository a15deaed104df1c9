package models

// CategoryUncategorized is never accepted as a classification result.
const CategoryUncategorized = "Uncategorized"

// File permissions
const (
	PermissionConfigFile = 0600
	PermissionDirectory  = 0750
)
