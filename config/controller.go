// Package config owns the accessory's persistent process-wide state:
// identity strings, the device ID/category/status-number counters,
// the SRP setup code material, the long-term Ed25519 key pair, and the
// Pairings table of paired controllers, modelled on the Persister
// interface the daemon's persistance package uses for its own save/
// load/delete lifecycle.
package config

import "fmt"

// Permission is a paired controller's authorization level.
type Permission byte

const (
	PermNone Permission = iota
	PermRegular
	PermAdmin
)

// Controller is a paired peer. perm == PermNone iff the slot is empty.
type Controller struct {
	Identifier   [36]byte // UTF-8, NUL-padded; IdentifierLen gives the real length
	IdentifierLen int
	LTPK         [32]byte
	Perm         Permission

	HasResumeState bool
	ResumeSessionID [8]byte
	ResumeShared     [32]byte
}

// ID returns the controller's identifier as a string.
func (c *Controller) ID() string { return string(c.Identifier[:c.IdentifierLen]) }

func (c *Controller) setID(id []byte) error {
	if len(id) > len(c.Identifier) {
		return fmt.Errorf("config: controller identifier too long (%d bytes)", len(id))
	}
	c.Identifier = [36]byte{}
	copy(c.Identifier[:], id)
	c.IdentifierLen = len(id)
	return nil
}

// Pairings is a fixed-size table of Controllers, guarded by a single
// writer (the caller is expected to serialize mutation, e.g. through
// the pairing dispatcher's single-threaded execution context).
const NumPairingSlots = 16

type Pairings struct {
	slots [NumPairingSlots]Controller
}

// NewPairings constructs an empty table.
func NewPairings() *Pairings { return &Pairings{} }

// ErrMaxPeers is returned when Add/Insert finds no free slot.
var ErrMaxPeers = fmt.Errorf("config: pairings table is full")

// ErrIdentifierMismatch is returned when AddOrUpdate finds an existing
// controller with the same ID but a different long-term public key, and
// by Insert whenever the ID is already present.
var ErrIdentifierMismatch = fmt.Errorf("config: controller id exists with a different public key")

// Find looks up a controller by identifier, returning nil if absent or
// the slot is empty.
func (p *Pairings) Find(id []byte) *Controller {
	for i := range p.slots {
		c := &p.slots[i]
		if c.Perm != PermNone && c.ID() == string(id) {
			return c
		}
	}
	return nil
}

// Count returns the number of occupied slots.
func (p *Pairings) Count() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].Perm != PermNone {
			n++
		}
	}
	return n
}

// Insert adds a new controller (Pair-Setup's M5 inserts the first one
// with Admin permission) into the first free slot.
func (p *Pairings) Insert(id, ltpk []byte, perm Permission) error {
	if p.Find(id) != nil {
		return ErrIdentifierMismatch
	}
	for i := range p.slots {
		if p.slots[i].Perm == PermNone {
			slot := &p.slots[i]
			if err := slot.setID(id); err != nil {
				return err
			}
			copy(slot.LTPK[:], ltpk)
			slot.Perm = perm
			return nil
		}
	}
	return ErrMaxPeers
}

// AddOrUpdate implements AddM1: insert a new controller, or if one
// with the same ID exists, require key equality and update its
// permission.
func (p *Pairings) AddOrUpdate(id, ltpk []byte, perm Permission) error {
	if existing := p.Find(id); existing != nil {
		if existing.LTPK != toLTPK(ltpk) {
			return ErrIdentifierMismatch
		}
		existing.Perm = perm
		return nil
	}
	return p.Insert(id, ltpk, perm)
}

func toLTPK(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

// Remove clears a controller's slot (RemoveM1), reporting whether a
// matching slot was found.
func (p *Pairings) Remove(id []byte) bool {
	c := p.Find(id)
	if c == nil {
		return false
	}
	*c = Controller{}
	return true
}

// Each iterates over occupied slots in table order, stopping early if
// f returns false. Used by ListM1.
func (p *Pairings) Each(f func(*Controller) bool) {
	for i := range p.slots {
		if p.slots[i].Perm == PermNone {
			continue
		}
		if !f(&p.slots[i]) {
			return
		}
	}
}

// FindByResumeSessionID looks up the controller holding a given
// resumable session ID (Pair-Resume's lookup step).
func (p *Pairings) FindByResumeSessionID(sessID [8]byte) *Controller {
	for i := range p.slots {
		c := &p.slots[i]
		if c.Perm != PermNone && c.HasResumeState && c.ResumeSessionID == sessID {
			return c
		}
	}
	return nil
}
