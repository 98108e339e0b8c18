package ble

import (
	"crypto/rand"
	"errors"
	"time"

	"go.haplib.dev/hap/accessory"
	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/hkdf512"
	"go.haplib.dev/hap/session"
)

// procedureTTL is how long a Procedure may sit incomplete before a
// fresh write on the same characteristic starts over.
const procedureTTL = 10 * time.Second

// Procedure is the BLE-specific per-request state a single write
// sequence accumulates: the declared header, the body fragments seen
// so far, and the deadline past which it is abandoned.
type Procedure struct {
	Header  reqHeader
	Char    *accessory.Characteristic
	body    []byte
	started time.Time
}

// ErrProcedureExpired is returned by Append once 10s have passed since
// the Procedure's first byte.
var ErrProcedureExpired = errors.New("ble: procedure expired")

// NewProcedure starts a Procedure from a request's first (possibly
// only) PDU.
func NewProcedure(pdu []byte, char *accessory.Characteristic) (*Procedure, []byte, error) {
	h, body, err := decodeReqHeader(pdu)
	if err != nil {
		return nil, nil, err
	}
	p := &Procedure{Header: h, Char: char, started: time.Now()}
	p.body = append(p.body, body...)
	return p, body, nil
}

// Append feeds a continuation PDU's fragment into the Procedure.
func (p *Procedure) Append(fragment []byte) error {
	if p.Expired() {
		return ErrProcedureExpired
	}
	p.body = append(p.body, fragment...)
	return nil
}

// Expired reports whether 10s have passed since the first byte.
func (p *Procedure) Expired() bool {
	return time.Since(p.started) > procedureTTL
}

// IsComplete reports whether the accumulated body has reached the
// header's declared length.
func (p *Procedure) IsComplete() bool {
	return len(p.body) >= int(p.Header.bodyLength)
}

// Body returns the accumulated body once complete.
func (p *Procedure) Body() []byte { return p.body }

// permissionOK enforces the opcode/permission table: pr/pw require a
// secured session; rd/wr-only characteristics do not.
// requireSecure=false skips the check entirely; Dispatch always
// passes true.
func permissionOK(op Opcode, perm accessory.Permission, sess *session.Session, requireSecure bool) bool {
	if !requireSecure {
		return true
	}
	switch op {
	case OpCharRead, OpCharSignatureRead, OpSvcSignatureRead:
		if perm&accessory.PermPairedRead == 0 {
			return true // rd-only characteristics don't require a secured session
		}
		return sess.IsSecured()
	case OpCharWrite, OpCharTimedWrite, OpCharExecuteWrite:
		if perm&accessory.PermPairedWrite == 0 {
			return true
		}
		return sess.IsSecured()
	default:
		return sess.IsSecured()
	}
}

// Dispatch runs a completed Procedure's opcode against its
// Characteristic and renders the response PDU. sess is the BLE
// connection's Session (for Op.SessionID and the permission check);
// cfg is consulted only by ProtoConfiguration, which reports the
// current GSN/ConfigNum alongside the freshly derived BEK.
func Dispatch(p *Procedure, sess *session.Session, cfg *config.Config) []byte {
	if p.Char == nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}
	if !permissionOK(p.Header.opcode, p.Char.Perm(), sess, true) {
		return EncodeResponse(p.Header.tid, StatusInsufficientAuthorization, nil)
	}

	op := accessory.Op{SessionID: sess.ID}

	switch p.Header.opcode {
	case OpCharRead:
		rsp, err := p.Char.Read(op, p.Body(), nil)
		if err != nil {
			return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
		}
		return EncodeResponse(p.Header.tid, StatusSuccess, formatCharValue(rsp))

	case OpCharWrite:
		value, ok := extractCharValue(p.Body())
		if !ok {
			return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
		}
		if err := p.Char.Write(op, value); err != nil {
			return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
		}
		return EncodeResponse(p.Header.tid, StatusSuccess, nil)

	case OpCharTimedWrite:
		value, ok := extractCharValue(p.Body())
		if !ok {
			return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
		}
		p.Char.StashTimedWrite(value, procedureTTL)
		return EncodeResponse(p.Header.tid, StatusSuccess, nil)

	case OpCharExecuteWrite:
		if err := p.Char.ExecuteTimedWrite(op); err != nil {
			return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
		}
		return EncodeResponse(p.Header.tid, StatusSuccess, nil)

	case OpCharSignatureRead:
		return EncodeResponse(p.Header.tid, StatusSuccess, charSignature(p.Char))

	case OpSvcSignatureRead:
		return dispatchSvcSignatureRead(p)

	case OpCharConfiguration:
		return dispatchCharConfiguration(p)

	case OpProtoConfiguration:
		return dispatchProtoConfiguration(p, sess, cfg)

	default:
		return EncodeResponse(p.Header.tid, StatusUnsupportedPDU, nil)
	}
}

// formatCharValue wraps a raw value as a single type-Value TLV body,
// letting buf.FormatValue handle >255-byte chunking.
func formatCharValue(value []byte) []byte {
	const typeValue = 0x01
	return buf.FormatValue(typeValue, value)
}

// extractCharValue decodes a request body's single type-Value TLV(s),
// concatenating fragmented runs per the HAP TLV8 convention.
func extractCharValue(body []byte) ([]byte, bool) {
	const typeValue = 0x01
	items, err := buf.Decode(body)
	if err != nil {
		return nil, false
	}
	return buf.Find(items, typeValue)
}

// charSignature renders a minimal CharSignatureRead response: the
// characteristic's UUID and permission bitmask, enough for a
// controller to discover the wire shape without the full accessory
// object model.
func charSignature(c *accessory.Characteristic) []byte {
	const (
		typeCharType = 0x04
		typeGattPerm = 0x0F
	)
	perm := c.Perm()
	items := []buf.Item{
		{Type: typeCharType, Value: []byte(c.Uuid())},
		{Type: typeGattPerm, Value: []byte{byte(perm), byte(perm >> 8)}},
	}
	return buf.Encode(items)
}

// dispatchSvcSignatureRead renders a service's Properties and (if any)
// Linked-Services TLVs. A service is exposed over BLE as its
// characteristics plus one signature characteristic carrying this
// read; p.Char must be that signature characteristic.
func dispatchSvcSignatureRead(p *Procedure) []byte {
	const (
		typeSvcProperties = 0x0A
		typeLinkedServices = 0x0E
	)
	svc := p.Char.OwningService()
	if svc == nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}

	items := []buf.Item{
		{Type: typeSvcProperties, Value: []byte{byte(svc.SvcProp()), byte(svc.SvcProp() >> 8)}},
	}
	for _, iid := range svc.Linked() {
		items = append(items, buf.Item{Type: typeLinkedServices, Value: []byte{byte(iid), byte(iid >> 8)}})
	}
	return EncodeResponse(p.Header.tid, StatusSuccess, buf.Encode(items))
}

// dispatchCharConfiguration toggles connected-events/broadcast per the
// Characteristic-Configuration procedure.
func dispatchCharConfiguration(p *Procedure) []byte {
	const (
		typeProperties        = 0x0A
		typeBroadcastInterval = 0x0B
	)
	items, err := buf.Decode(p.Body())
	if err != nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}
	if propsBytes, ok := buf.Find(items, typeProperties); ok && len(propsBytes) >= 2 {
		props := uint16(propsBytes[0]) | uint16(propsBytes[1])<<8
		// bit 0 is the connected-events enable flag.
		p.Char.BroadcastEvent(props&0x02 != 0, p.Char.BroadcastInterval())
	}
	if intervalBytes, ok := buf.Find(items, typeBroadcastInterval); ok && len(intervalBytes) >= 2 {
		ms := uint16(intervalBytes[0]) | uint16(intervalBytes[1])<<8
		p.Char.BroadcastEvent(p.Char.BroadcastEnabled(), time.Duration(ms)*time.Millisecond)
	}
	return EncodeResponse(p.Header.tid, StatusSuccess, nil)
}

// dispatchProtoConfiguration generates a fresh Broadcast Encryption Key
// from the session's raw Pair-Verify shared secret (IKM) and the
// paired controller's long-term public key (salt), assigns a random
// Accessory Advertising Identifier, and returns the
// {GSN, ConfigNum, AAI, BEK} tuple the advertisement builder needs to
// start emitting Notif adverts.
func dispatchProtoConfiguration(p *Procedure, sess *session.Session, cfg *config.Config) []byte {
	const (
		typeGSN       = 0x01
		typeConfigNum = 0x02
		typeAAI       = 0x03
		typeBEK       = 0x04
	)

	var aai [6]byte
	if _, err := rand.Read(aai[:]); err != nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}

	if sess.Controller == nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}
	bek, err := hkdf512.Derive(sess.SharedSecret[:], string(sess.Controller.LTPK[:]), "Broadcast-Encryption-Key", 32)
	if err != nil {
		return EncodeResponse(p.Header.tid, StatusInvalidRequest, nil)
	}
	sess.BroadcastAAI = aai
	sess.BroadcastBEK = append([]byte{}, bek...)

	items := []buf.Item{
		{Type: typeGSN, Value: []byte{byte(cfg.GSN), byte(cfg.GSN >> 8)}},
		{Type: typeConfigNum, Value: []byte{byte(cfg.ConfigNum)}},
		{Type: typeAAI, Value: aai[:]},
		{Type: typeBEK, Value: bek},
	}
	return EncodeResponse(p.Header.tid, StatusSuccess, buf.Encode(items))
}
