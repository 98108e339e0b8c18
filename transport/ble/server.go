package ble

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/paypal/gatt"

	"go.haplib.dev/hap/accessory"
	"go.haplib.dev/hap/common/log"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/session"
)

var logger = log.New("ble")

// hapBaseUUIDSuffix is the fixed 96-bit tail every standard HAP
// service/characteristic UUID shares; only the leading 4 hex digits
// vary per assigned number, matching the Bluetooth-SIG 16-bit-alias
// convention.
const hapBaseUUIDSuffix = "-0000-1000-8000-0026bb765291"

// shortUUID extracts the 16-bit assigned number from a standard HAP
// UUID string, or reports false for a fully custom 128-bit UUID (this
// port does not attempt 128-bit gatt.UUID construction: the uuid.go
// file that would ground that constructor was not present in the
// example this module learned its GATT wiring from, so full vendor
// UUIDs are left unwired rather than guessed at).
func shortUUID(uuid string) (uint16, bool) {
	lower := strings.ToLower(uuid)
	if !strings.HasSuffix(lower, hapBaseUUIDSuffix) {
		return 0, false
	}
	prefix := lower[:len(lower)-len(hapBaseUUIDSuffix)]
	prefix = strings.TrimPrefix(prefix, "0000")
	n, err := strconv.ParseUint(prefix, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// Server wires an accessory.Db onto a gatt.Server: each Service
// becomes a gatt.Service, each Characteristic a gatt.Characteristic
// whose Read/Write/Notify handlers run the Procedure state machine.
type Server struct {
	Db       *accessory.Db
	Config   *config.Config
	Adv      *Advertiser
	GATT     *gatt.Server

	mu       sync.Mutex
	sessions map[string]*session.Session // keyed by gatt.Conn.RemoteAddr
	procs    *lru.Cache                  // keyed by "<remoteAddr>:<iid>", value *Procedure

	// broadcastAAI/broadcastBEK cache the most recent Broadcast
	// Encryption Key a ProtoConfiguration exchange derived, so a Notif
	// advert can still be built after the connection that requested it
	// has gone away.
	broadcastAAI [6]byte
	broadcastBEK []byte
}

// maxPendingProcedures bounds how many in-flight (not yet complete)
// fragmented BLE writes this server tracks at once: a peer that opens
// many partial writes across many characteristics without finishing
// any of them evicts its oldest entry rather than growing the map
// without bound.
const maxPendingProcedures = 128

// NewServer builds a Server bound to db/cfg, wrapping gs (a configured
// but not-yet-serving gatt.Server).
func NewServer(gs *gatt.Server, db *accessory.Db, cfg *config.Config) *Server {
	procs, err := lru.New(maxPendingProcedures)
	if err != nil {
		panic(err) // only fails for a non-positive size, a programmer error
	}
	s := &Server{
		Db:       db,
		Config:   cfg,
		Adv:      NewAdvertiser(cfg),
		GATT:     gs,
		sessions: make(map[string]*session.Session),
		procs:    procs,
	}
	gs.Connect = s.onConnect
	gs.Disconnect = s.onDisconnect
	return s
}

func (s *Server) onConnect(c gatt.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := session.New()
	s.sessions[c.RemoteAddr().String()] = sess
	logger.Debug("ble: connect from", c.RemoteAddr())
}

func (s *Server) onDisconnect(c gatt.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := c.RemoteAddr().String()
	delete(s.sessions, addr)
	for _, key := range s.procs.Keys() {
		if strings.HasPrefix(key.(string), addr+":") {
			s.procs.Remove(key)
		}
	}
	logger.Debug("ble: disconnect from", addr)
}

// cacheBroadcastCredential snapshots sess's most recent ProtoConfiguration
// credential onto the Server, where it survives the session that derived
// it. A no-op when sess never ran ProtoConfiguration.
func (s *Server) cacheBroadcastCredential(sess *session.Session) {
	if len(sess.BroadcastBEK) == 0 {
		return
	}
	s.mu.Lock()
	s.broadcastAAI = sess.BroadcastAAI
	s.broadcastBEK = append([]byte{}, sess.BroadcastBEK...)
	s.mu.Unlock()
}

// onIndicate applies the GSN/broadcast-advert policy to a changed
// characteristic: any value change on an ev/de/bn characteristic bumps
// the GSN once. While a controller is connected, that's all that's
// needed here, since NotifyChange (run by Characteristic.Indicate
// before this hook) already marked the subscribed session pending and
// the per-session notify loop delivers the indication. While
// disconnected, a bn-enabled characteristic also arms a Notif advert
// carrying its new value, using the last ProtoConfiguration-derived
// credential; a characteristic with only de set bumps the GSN and
// nothing more.
func (s *Server) onIndicate(ch *accessory.Characteristic) {
	perm := ch.Perm()
	if perm&(accessory.PermConnectedEvent|accessory.PermDisconnectedEvent|accessory.PermBroadcastNotify) == 0 {
		return
	}

	s.mu.Lock()
	connected := len(s.sessions) > 0
	aai, bek := s.broadcastAAI, s.broadcastBEK
	s.mu.Unlock()

	if err := s.Config.BumpGSN(); err != nil {
		logger.Error("ble: persisting gsn bump:", err)
	}

	if connected || perm&accessory.PermBroadcastNotify == 0 || len(bek) == 0 {
		return
	}
	valueProp := ch.Property(accessory.PropValue)
	if valueProp == nil {
		return
	}
	s.Adv.QueueNotif(aai, bek, ch.Iid(), valueProp.Value())
}

func (s *Server) sessionFor(c gatt.Conn) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.RemoteAddr().String()]
	if !ok {
		sess = session.New()
		s.sessions[c.RemoteAddr().String()] = sess
	}
	return sess
}

// BuildServices registers every accessory/service/characteristic in
// Db onto the underlying gatt.Server, skipping any whose UUID this
// port cannot yet translate (see shortUUID).
func (s *Server) BuildServices() error {
	for _, a := range s.Db.Accessories() {
		for _, svc := range a.Services() {
			svcShort, ok := shortUUID(svc.Uuid())
			if !ok {
				logger.Notice("ble: skipping service with unmappable uuid", svc.Uuid())
				continue
			}
			gsvc := s.GATT.AddService(gatt.UUID16(svcShort))
			if gsvc == nil {
				return fmt.Errorf("ble: server already serving, cannot add service %s", svc.Uuid())
			}
			for _, c := range svc.Characteristics() {
				charShort, ok := shortUUID(c.Uuid())
				if !ok {
					logger.Notice("ble: skipping characteristic with unmappable uuid", c.Uuid())
					continue
				}
				s.wireCharacteristic(gsvc, charShort, c)
			}
		}
	}
	return nil
}

func (s *Server) wireCharacteristic(gsvc *gatt.Service, shortID uint16, char *accessory.Characteristic) {
	gchar := gsvc.AddCharacteristic(gatt.UUID16(shortID))
	char.SetIndicateHook(s.onIndicate)

	gchar.HandleReadFunc(func(resp gatt.ReadResponseWriter, req *gatt.ReadRequest) {
		sess := s.sessionFor(req.Conn)
		tid := byte(0)
		header := make([]byte, 0, 7)
		header = append(header, 0x00, byte(OpCharRead), tid, byte(char.Iid()), byte(char.Iid()>>8), 0, 0)
		p, _, err := NewProcedure(header, char)
		if err != nil {
			resp.SetStatus(gatt.StatusUnexpectedError)
			return
		}
		out := Dispatch(p, sess, s.Config)
		const responseHeaderLen = 5 // control, tid, status, bodyLength(2)
		if len(out) > responseHeaderLen {
			resp.Write(out[responseHeaderLen:])
		}
	})

	gchar.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		sess := s.sessionFor(r.Conn)
		key := fmt.Sprintf("%s:%d", r.Conn.RemoteAddr(), char.Iid())

		var p *Procedure
		var continuing bool
		if v, ok := s.procs.Get(key); ok {
			p, continuing = v.(*Procedure), true
		}

		var err error
		if len(data) > 0 && data[0]&controlContinuation != 0 && continuing {
			err = p.Append(data[2:])
		} else {
			p, _, err = NewProcedure(data, char)
		}
		if err != nil {
			s.procs.Remove(key)
			return gatt.StatusUnexpectedError
		}

		if !p.IsComplete() {
			s.procs.Add(key, p)
			return gatt.StatusSuccess
		}

		s.procs.Remove(key)
		Dispatch(p, sess, s.Config)
		s.cacheBroadcastCredential(sess)
		return gatt.StatusSuccess
	})

	gchar.HandleNotifyFunc(func(r gatt.Request, n gatt.Notifier) {
		sessionID := s.sessionFor(r.Conn).ID
		char.ConnectedEvent(sessionID, true)
		defer char.ConnectedEvent(sessionID, false)

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if n.Done() {
				return
			}
			if !char.TakePendingEvent(sessionID) {
				continue
			}
			valueProp := char.Property(accessory.PropValue)
			if valueProp == nil {
				continue
			}
			if _, err := n.Write(valueProp.Value()); err != nil {
				logger.Error("ble: indicating", char.Uuid(), ":", err)
				return
			}
		}
	})
}
