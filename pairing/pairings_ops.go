package pairing

import (
	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/session"
)

// AddM1 enrolls or updates a controller in the Pairings table.
// checkPolicy has already confirmed the calling session is an Admin
// before this runs.
func (e *Engine) AddM1(sess *session.Session, body []byte) []byte {
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	id, ok := buf.Find(items, TypeIdentifier)
	if !ok {
		return errorTLV(StateM2, ErrUnknown)
	}
	ltpk, ok := buf.Find(items, TypePublicKey)
	if !ok || len(ltpk) != 32 {
		return errorTLV(StateM2, ErrUnknown)
	}
	permBytes, ok := buf.Find(items, TypePermissions)
	if !ok || len(permBytes) != 1 {
		return errorTLV(StateM2, ErrUnknown)
	}

	perm := config.Permission(permBytes[0])
	if err := e.Config.Pairings.AddOrUpdate(id, ltpk, perm); err != nil {
		if err == config.ErrMaxPeers {
			return errorTLV(StateM2, ErrMaxPeers)
		}
		return errorTLV(StateM2, ErrUnknown)
	}

	if err := e.Config.Update(false); err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	return stateTLV(StateM2)
}

// RemoveM1 evicts a controller from the Pairings table. If the caller
// removed their own controller, the removed Controller is stashed on
// the session so the transport can drop every connection belonging to
// it once this response has been flushed.
func (e *Engine) RemoveM1(sess *session.Session, body []byte) []byte {
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	id, ok := buf.Find(items, TypeIdentifier)
	if !ok {
		return errorTLV(StateM2, ErrUnknown)
	}

	removed := e.Config.Pairings.Find(id)
	if removed == nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	if sess.Controller != nil && sess.Controller.ID() == removed.ID() {
		cp := *removed
		sess.RemovedController = &cp
	}

	if !e.Config.Pairings.Remove(id) {
		return errorTLV(StateM2, ErrUnknown)
	}
	if err := e.Config.Update(false); err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	return stateTLV(StateM2)
}

// maxListBody is the largest List-Pairings response this Engine will
// emit before giving up and reporting Error=Unknown instead, matching
// transport/ip's largest single-frame body (1024 bytes). BLE's
// Procedure reassembly has no ceiling of its own beyond the 16-bit
// declared body length.
const maxListBody = 1024

// ListM1 enumerates every paired controller as Identifier/PublicKey/
// Permissions triples, Separator-delimited between (not after) each.
// A Pairings table large enough to exceed maxListBody is reported as
// Error=Unknown rather than silently truncated.
func (e *Engine) ListM1(sess *session.Session) []byte {
	items := []buf.Item{{Type: TypeState, Value: []byte{byte(StateM2)}}}

	first := true
	overflowed := false
	e.Config.Pairings.Each(func(c *config.Controller) bool {
		entry := []buf.Item{
			{Type: TypeIdentifier, Value: []byte(c.ID())},
			{Type: TypePublicKey, Value: append([]byte{}, c.LTPK[:]...)},
			{Type: TypePermissions, Value: []byte{byte(c.Perm)}},
		}
		if !first {
			entry = append([]buf.Item{{Type: TypeSeparator}}, entry...)
		}

		if listBodyLen(items)+listBodyLen(entry) > maxListBody {
			overflowed = true
			return false
		}
		items = append(items, entry...)
		first = false
		return true
	})
	if overflowed {
		return errorTLV(StateM2, ErrUnknown)
	}

	return buf.Encode(items)
}

// listBodyLen sums an Item slice's encoded TLV8 size (2-byte
// type+length header per 255-byte chunk, plus the value itself),
// enough to estimate a candidate response's size before committing it.
func listBodyLen(items []buf.Item) int {
	n := 0
	for _, it := range items {
		if len(it.Value) == 0 {
			n += 2
			continue
		}
		for remaining := len(it.Value); remaining > 0; {
			chunk := remaining
			if chunk > 255 {
				chunk = 255
			}
			n += 2 + chunk
			remaining -= chunk
		}
	}
	return n
}
