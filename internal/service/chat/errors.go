package chat

import "errors"

// User-facing outcome taxonomy. Each maps to a distinct response so the
// presentation layer can offer an upsell or an edit prompt instead of a
// generic failure. Generation failures never appear here: the reply service
// absorbs them with a fallback line.
var (
	ErrEmptyMessage     = errors.New("message content is required")
	ErrMessageTooLong   = errors.New("message content exceeds the allowed length")
	ErrQuotaExceeded    = errors.New("daily message limit reached")
	ErrContentRejected  = errors.New("message content is not allowed")
	ErrCompanionMissing = errors.New("companion not found")
)
