package domain

var (
	ErrNotFound       = errString("not found")
	ErrNoIdentifier   = errString("email or linkedin url required")
	ErrTenantRequired = errString("tenant id required")

	ErrEnrichmentUnavailable = errString("no enrichment data available")
)

type errString string

func (e errString) Error() string { return string(e) }
