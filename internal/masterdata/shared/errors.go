package shared

import "github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"

// Masterdata packages reuse the platform sentinels so handlers can map
// errors to responses without per-package translation.
var (
	ErrNotFound      = httpx.ErrNotFound
	ErrDuplicate     = httpx.ErrDuplicate
	ErrValidation    = httpx.ErrValidation
	ErrInvalidID     = httpx.ErrValidation
	ErrRequiredField = httpx.ErrValidation
)
