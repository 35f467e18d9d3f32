package autoapply

import "github.com/cockroachdb/errors"

var ErrRunInProgress = errors.New("a manual run is already in progress")

const (
	ErrorCodeMissingCredential = "MISSING_CREDENTIAL"
	ErrorCodeSessionExpired    = "SESSION_EXPIRED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeRunInProgress     = "RUN_IN_PROGRESS"
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)
