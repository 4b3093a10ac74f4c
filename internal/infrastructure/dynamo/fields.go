package dynamo

// Attribute names shared by filter and update expressions.
const (
	fieldEnable    = "enable"
	fieldActive    = "active"
	fieldUpdatedAt = "updated_at"
)
