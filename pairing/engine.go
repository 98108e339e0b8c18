package pairing

import (
	uuid "github.com/satori/go.uuid"

	"go.haplib.dev/hap/common/log"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/srp"
	"go.haplib.dev/hap/session"
)

var logger = log.New("pairing")

// Path is which of the three pairing characteristics/URLs a request
// targeted.
type Path byte

const (
	PathSetup Path = iota
	PathVerify
	PathPairings
)

// maxAuthAttempts is the process-wide SRP authentication attempt
// ceiling past which SetupM1 returns MaxTries.
const maxAuthAttempts = 100

// Engine holds the process-wide pairing state machine: the accessory's
// Config (long-term identity, SRP verifier, Pairings table) and the
// single in-flight SRP Host, gated so only one pairing attempt can be
// open at a time.
type Engine struct {
	Config *config.Config

	host    *srp.Host
	hostSID uint64
	attempts int
}

// New builds an Engine bound to cfg.
func New(cfg *config.Config) *Engine {
	return &Engine{Config: cfg}
}

// checkPolicy enforces the Path×session permission table before a
// handler ever runs.
func (e *Engine) checkPolicy(path Path, method Method, sess *session.Session) error {
	switch path {
	case PathSetup:
		if sess.IsSecured() {
			return errPolicyViolation
		}
		if method != MethodPairSetup && method != MethodPairSetupWithAuth {
			return errPolicyViolation
		}
	case PathVerify:
		if method != MethodPairVerify && method != MethodResume {
			return errPolicyViolation
		}
	case PathPairings:
		if !sess.IsSecured() {
			return errPolicyViolation
		}
		if sess.Controller == nil || sess.Controller.Perm != config.PermAdmin {
			return errPolicyViolation
		}
		switch method {
		case MethodAddPairing, MethodRemovePairing, MethodListPairing:
		default:
			return errPolicyViolation
		}
	}
	return nil
}

var errPolicyViolation = policyError{}

type policyError struct{}

func (policyError) Error() string { return "pairing: request violates path/method policy" }

// Dispatch routes a decoded request to the matching handler after
// checking the policy table. On a policy violation it returns the
// InsufficientAuthentication-equivalent pairing error rather than
// invoking any handler.
func (e *Engine) Dispatch(path Path, method Method, state State, sess *session.Session, body []byte) []byte {
	corrID := dispatchCorrelationID()
	logger.Debug("pairing: dispatch", corrID, "session", sess.ID, "path", path, "method", method, "state", state)

	if err := e.checkPolicy(path, method, sess); err != nil {
		logger.Notice("pairing: policy violation", corrID, "session", sess.ID, "path", path, "method", method)
		return errorTLV(state, ErrAuthentication)
	}

	switch path {
	case PathSetup:
		switch state {
		case StateM1:
			return e.SetupM1(sess)
		case StateM3:
			return e.SetupM3(sess, body)
		case StateM5:
			return e.SetupM5(sess, body)
		}
	case PathVerify:
		switch method {
		case MethodResume:
			if state == StateM1 {
				return e.ResumeM1(sess, body)
			}
		default:
			switch state {
			case StateM1:
				return e.VerifyM1(sess, body)
			case StateM3:
				return e.VerifyM3(sess, body)
			}
		}
	case PathPairings:
		switch method {
		case MethodAddPairing:
			return e.AddM1(sess, body)
		case MethodRemovePairing:
			return e.RemoveM1(sess, body)
		case MethodListPairing:
			return e.ListM1(sess)
		}
	}
	logger.Error("pairing: no handler for", corrID, "path", path, "method", method, "state", state)
	return errorTLV(state, ErrUnknown)
}

// dispatchCorrelationID mints a short random identifier for one
// Dispatch call's log lines, so a single pairing exchange's several
// state transitions can be grepped out of the log as a unit. Falls
// back to the nil UUID on the vanishingly unlikely event NewV4 fails
// to read enough entropy; a missing correlation id is a logging
// nicety, not a reason to fail the request.
func dispatchCorrelationID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "corr-unavailable"
	}
	return id.String()
}
