package accessory

import (
	"errors"
	"time"
)

// ErrLengthMismatch is returned when a write's payload length does not
// match a characteristic's declared Value length.
var ErrLengthMismatch = errors.New("accessory: value length mismatch")

// Permission is the bitmask HAP attaches to every Characteristic.
type Permission uint16

const (
	PermPairedRead        Permission = 1 << iota // pr
	PermPairedWrite                              // pw
	PermRead                                     // rd (unauthenticated)
	PermWrite                                     // wr (unauthenticated)
	PermConnectedEvent                           // ev
	PermDisconnectedEvent                        // de
	PermBroadcastNotify                          // bn
	PermAdditionalAuth                           // aa
	PermTimedWrite                               // tw
	PermHidden                                    // hd
)

// Op carries per-request context into a Read/Write handler: which
// Session issued the call (so handlers can key per-controller state)
// and whether this invocation came from a Timed-Write replay.
type Op struct {
	SessionID uint64
	IsReplay  bool
}

// ReadFunc and WriteFunc are the custom handler hooks a Characteristic
// may install to override the default copy-in/copy-out behaviour.
type ReadFunc func(op Op, req, rsp []byte) ([]byte, error)
type WriteFunc func(op Op, req []byte) error

// pendingWrite holds a stashed Timed-Write body until ExecuteTimedWrite
// replays it or the expiry passes.
type pendingWrite struct {
	body    []byte
	expires time.Time
}

// Characteristic is a named, UUID-identified group of Properties.
type Characteristic struct {
	iid   uint16
	uuid  string
	name  string
	perm  Permission
	props []*Property
	value *Property // the mandatory Value property, nil for pure-signature characteristics
	owner *Service  // set by Service.SetSignature when this is a service-signature characteristic

	onRead  ReadFunc
	onWrite WriteFunc

	connectedEvent   map[uint64]bool // per-session enable flag
	eventPending     map[uint64]bool // per-session pending-delivery flag, set by NotifyChange
	broadcastEnabled bool
	broadcastPeriod  time.Duration

	// onIndicate is installed by the transport layer wiring this
	// characteristic onto BLE/IP (see transport/ble.Server.BuildServices)
	// to apply the GSN/broadcast-advert side of a value change. Left nil
	// for characteristics no transport has wired yet.
	onIndicate func(*Characteristic)

	pending *pendingWrite
}

// NewCharacteristic constructs a Characteristic holding its type UUID,
// IID and permissions as plain fields; no Property is created, and the
// Value and any other properties are attached with Add.
func NewCharacteristic(iid uint16, name, uuid string, perm Permission) *Characteristic {
	return &Characteristic{
		iid:            iid,
		uuid:           uuid,
		name:           name,
		perm:           perm,
		connectedEvent: make(map[uint64]bool),
	}
}

// Add attaches a Property to this Characteristic, tracking the
// mandatory Value property specially.
func (c *Characteristic) Add(p *Property) {
	p.owner = c
	c.props = append(c.props, p)
	if p.Type == PropValue {
		c.value = p
	}
}

func (c *Characteristic) Iid() uint16         { return c.iid }

// OwningService returns the Service this characteristic's signature
// describes, or nil for an ordinary (non-signature) characteristic.
func (c *Characteristic) OwningService() *Service { return c.owner }
func (c *Characteristic) Uuid() string        { return c.uuid }
func (c *Characteristic) Perm() Permission    { return c.perm }
func (c *Characteristic) Name() string        { return c.name }
func (c *Characteristic) Format() FormatType {
	if c.value == nil {
		return FormatNull
	}
	return c.value.Format
}

// Property returns the first attached Property of the given type, or
// nil.
func (c *Characteristic) Property(typ PropertyType) *Property {
	for _, p := range c.props {
		if p.Type == typ {
			return p
		}
	}
	return nil
}

// Read copies the Value property into rsp, or calls the installed
// onRead override.
func (c *Characteristic) Read(op Op, req, rsp []byte) ([]byte, error) {
	if c.onRead != nil {
		return c.onRead(op, req, rsp)
	}
	if c.value == nil {
		return nil, errors.New("accessory: characteristic has no Value property")
	}
	return append(rsp, c.value.Value()...), nil
}

// Write validates the payload length against the Value property and
// stores it, or calls the installed onWrite override. Either way, a
// successful write indicates the change (NotifyChange plus the
// platform indication hook, if one is installed).
func (c *Characteristic) Write(op Op, req []byte) error {
	if c.onWrite != nil {
		if err := c.onWrite(op, req); err != nil {
			return err
		}
		c.Indicate()
		return nil
	}
	if c.value == nil {
		return errors.New("accessory: characteristic has no Value property")
	}
	if len(req) != len(c.value.Value()) {
		return ErrLengthMismatch
	}
	if err := c.value.SetValue(req); err != nil {
		return err
	}
	c.Indicate()
	return nil
}

// SetReadFunc/SetWriteFunc install custom handlers overriding the
// default copy-through behaviour.
func (c *Characteristic) SetReadFunc(f ReadFunc)   { c.onRead = f }
func (c *Characteristic) SetWriteFunc(f WriteFunc) { c.onWrite = f }

// ConnectedEvent toggles per-session connected indications (the `ev`
// permission's runtime state).
func (c *Characteristic) ConnectedEvent(sessionID uint64, enable bool) {
	if enable {
		c.connectedEvent[sessionID] = true
	} else {
		delete(c.connectedEvent, sessionID)
	}
}

// ConnectedEventEnabled reports whether a given session has subscribed.
func (c *Characteristic) ConnectedEventEnabled(sessionID uint64) bool {
	return c.connectedEvent[sessionID]
}

// NotifyChange marks a pending event delivery for every session
// currently subscribed via ConnectedEvent (the IP transport's Poll
// and the BLE GSN policy both drain this).
func (c *Characteristic) NotifyChange() {
	for sid, enabled := range c.connectedEvent {
		if enabled {
			if c.eventPending == nil {
				c.eventPending = make(map[uint64]bool)
			}
			c.eventPending[sid] = true
		}
	}
}

// TakePendingEvent reports and clears whether sessionID has a pending
// event on this characteristic.
func (c *Characteristic) TakePendingEvent(sessionID uint64) bool {
	if !c.eventPending[sessionID] {
		return false
	}
	delete(c.eventPending, sessionID)
	return true
}

// SetIndicateHook installs the platform-specific callback Indicate
// runs after NotifyChange. The transport layer uses this to bump
// Config's GSN and, when disconnected with broadcast notify enabled,
// arm a Notif advert.
func (c *Characteristic) SetIndicateHook(f func(*Characteristic)) { c.onIndicate = f }

// Indicate is called by application code after this characteristic's
// value has changed: it marks every connected-event subscriber pending
// for delivery, then runs the installed platform indication hook, if
// any, to apply the GSN/broadcast-advert side of the change.
func (c *Characteristic) Indicate() {
	c.NotifyChange()
	if c.onIndicate != nil {
		c.onIndicate(c)
	}
}

// BroadcastEvent toggles broadcast notifications and their interval
// (the `bn` permission's runtime state, BLE-only).
func (c *Characteristic) BroadcastEvent(enable bool, interval time.Duration) {
	c.broadcastEnabled = enable
	c.broadcastPeriod = interval
}

func (c *Characteristic) BroadcastEnabled() bool             { return c.broadcastEnabled }
func (c *Characteristic) BroadcastInterval() time.Duration   { return c.broadcastPeriod }

// StashTimedWrite records a Timed-Write body for a later
// CharExecuteWrite (BLE's two-phase write), expiring after ttl.
func (c *Characteristic) StashTimedWrite(body []byte, ttl time.Duration) {
	c.pending = &pendingWrite{body: append([]byte{}, body...), expires: time.Now().Add(ttl)}
}

// ExecuteTimedWrite replays the stashed body as an ordinary Write, or
// fails if none is pending or it has expired.
func (c *Characteristic) ExecuteTimedWrite(op Op) error {
	if c.pending == nil {
		return errors.New("accessory: no pending timed write")
	}
	if time.Now().After(c.pending.expires) {
		c.pending = nil
		return errors.New("accessory: timed write expired")
	}
	body := c.pending.body
	c.pending = nil
	op.IsReplay = true
	return c.Write(op, body)
}
