// Package pairing implements the HAP pairing state machine: a single
// dispatcher over (Path, Method, State), and the Pair-Setup/Pair-
// Verify/Pair-Resume/Add-Remove-List handlers built on SRP, Curve25519
// and Ed25519.
package pairing

import "go.haplib.dev/hap/buf"

// TLV8 type tags, per the HAP pairing sub-protocol.
const (
	TypeMethod        = 0x00
	TypeIdentifier    = 0x01
	TypeSalt          = 0x02
	TypePublicKey     = 0x03
	TypeProof         = 0x04
	TypeEncryptedData = 0x05
	TypeState         = 0x06
	TypeError         = 0x07
	TypeRetryDelay    = 0x08
	TypeCertificate   = 0x09
	TypeSignature     = 0x0A
	TypePermissions   = 0x0B
	TypeFragmentData  = 0x0C
	TypeFragmentLast  = 0x0D
	TypeSessionID     = 0x0E
	TypeSeparator     = buf.Separator
)

// Method identifies which pairing operation a request is for.
type Method byte

const (
	MethodPairSetup Method = iota
	MethodPairSetupWithAuth
	MethodPairVerify
	MethodAddPairing
	MethodRemovePairing
	MethodListPairing
	MethodResume
	MethodUnknown = 0xFF
)

// State is the M1..M6 step of whichever exchange is in progress.
type State byte

const (
	StateM1 State = iota + 1
	StateM2
	StateM3
	StateM4
	StateM5
	StateM6
)

// ErrorKind is the pairing-TLV error space, distinct from the HAP
// status codes the transports use for non-pairing requests.
type ErrorKind byte

const (
	ErrUnknown ErrorKind = iota + 1
	ErrAuthentication
	ErrBackoff
	ErrMaxPeers
	ErrMaxTries
	ErrUnavailable
	ErrBusy
)

// errorTLV builds the `State=Mn || Error=<kind>` response every failed
// handler returns.
func errorTLV(state State, kind ErrorKind) []byte {
	return buf.Encode([]buf.Item{
		{Type: TypeState, Value: []byte{byte(state)}},
		{Type: TypeError, Value: []byte{byte(kind)}},
	})
}

func stateTLV(state State, extra ...buf.Item) []byte {
	items := append([]buf.Item{{Type: TypeState, Value: []byte{byte(state)}}}, extra...)
	return buf.Encode(items)
}
