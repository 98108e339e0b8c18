// Package ble implements the HAP BLE transport: a PDU fragmenter/
// assembler built on top of the accessory Db and pairing Session
// types, a Procedure (one per in-flight request) with a 10s expiry,
// and the GATT wiring and advertisement builder that present it over
// github.com/paypal/gatt.
package ble

import "fmt"

// Opcode identifies which BLE operation a request PDU carries.
type Opcode byte

const (
	OpCharSignatureRead Opcode = 0x01
	OpCharWrite         Opcode = 0x02
	OpCharRead          Opcode = 0x03
	OpCharTimedWrite    Opcode = 0x04
	OpCharExecuteWrite  Opcode = 0x05
	OpSvcSignatureRead  Opcode = 0x06
	OpCharConfiguration Opcode = 0x07
	OpProtoConfiguration Opcode = 0x08
)

// Status is the one-byte result code every response PDU carries.
type Status byte

const (
	StatusSuccess                  Status = 0x00
	StatusUnsupportedPDU           Status = 0x01
	StatusInvalidRequest           Status = 0x04
	StatusInsufficientAuthorization Status = 0x05
	StatusInvalidLength            Status = 0x0B
)

// controlContinuation marks a fragment PDU as a continuation of an
// already-started request/response.
const controlContinuation = 0x80

// reqHeader is a decoded request PDU's fixed 7-byte header: control,
// opcode, TID, little-endian IID, little-endian body length.
type reqHeader struct {
	control    byte
	opcode     Opcode
	tid        byte
	iid        uint16
	bodyLength uint16
}

// reqHeaderLen is the fixed size of a first-fragment request header:
// control + opcode + tid + iid(2) + bodyLength(2).
const reqHeaderLen = 7

// decodeReqHeader parses the fixed portion of a (possibly first-
// fragment) request PDU, returning the header and whatever body bytes
// arrived in the same PDU.
func decodeReqHeader(pdu []byte) (reqHeader, []byte, error) {
	if len(pdu) < reqHeaderLen {
		return reqHeader{}, nil, fmt.Errorf("ble: truncated pdu header")
	}
	control := pdu[0]
	if control&controlContinuation != 0 {
		return reqHeader{}, nil, fmt.Errorf("ble: decodeReqHeader called on a continuation PDU")
	}
	h := reqHeader{
		control:    control,
		opcode:     Opcode(pdu[1]),
		tid:        pdu[2],
		iid:        uint16(pdu[3]) | uint16(pdu[4])<<8,
		bodyLength: uint16(pdu[5]) | uint16(pdu[6])<<8,
	}
	return h, pdu[reqHeaderLen:], nil
}

// EncodeResponse renders a complete response PDU: control=0, TID,
// status, little-endian body length, body. It does not fragment
// across multiple GATT transactions; this always returns the logical
// whole.
func EncodeResponse(tid byte, status Status, body []byte) []byte {
	out := make([]byte, 0, 5+len(body))
	out = append(out, 0x00, tid, byte(status), byte(len(body)), byte(len(body)>>8))
	out = append(out, body...)
	return out
}

// FragmentContinuation wraps a body fragment as a continuation PDU:
// {control|0x80, TID, fragment}, carrying no length/opcode/iid header.
func FragmentContinuation(tid byte, fragment []byte) []byte {
	out := make([]byte, 0, 2+len(fragment))
	out = append(out, controlContinuation, tid)
	return append(out, fragment...)
}
