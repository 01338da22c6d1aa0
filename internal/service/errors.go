package service

import (
	"errors"

	"github.com/prn-tf/alexander-auth/internal/domain"
)

// Operation names used for metrics and logs.
const (
	opRequestChallenge = "request_otp"
	opVerifyChallenge  = "verify_otp"
	opRegister         = "register"
	opAuthenticate     = "authenticate"
	opValidateToken    = "validate_token"
)

// errInternal marks failures that are neither domain errors nor store errors.
var errInternal = errors.New("internal error")

// ErrSweepLockLost reports that another instance took over the sweep lock
// in the middle of a run.
var ErrSweepLockLost = errors.New("sweep lock lost")

// txError classifies an error returned by a transaction. Errors produced by
// the transaction machinery itself (begin, lock, commit) carry no domain
// sentinel and are reported as store failures.
func txError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindInternal || errors.Is(err, errInternal) {
		return err
	}
	return domain.StoreError(op, err)
}

// outcome returns the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return domain.KindOf(err).String()
}
