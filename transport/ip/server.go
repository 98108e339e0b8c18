package ip

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"go.haplib.dev/hap/accessory"
	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/common/log"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/pairing"
	"go.haplib.dev/hap/session"
)

var logger = log.New("ip")

// Server accepts TCP connections and serves the HAP IP transport over
// each: plaintext HTTP for pairing, framed-and-encrypted HTTP once
// Pair-Verify succeeds.
type Server struct {
	Db     *accessory.Db
	Config *config.Config
	Engine *pairing.Engine
}

// NewServer builds a Server bound to db/cfg, with its own pairing.Engine.
func NewServer(db *accessory.Db, cfg *config.Config) *Server {
	return &Server{Db: db, Config: cfg, Engine: pairing.New(cfg)}
}

// ListenAndServe accepts connections on addr until it fails to Accept,
// handling each on its own goroutine: transport I/O is one worker per
// connection, and the pairing/data-model mutations it triggers
// serialise through Config and the Db's own locking.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn serves a single TCP connection until the peer closes it
// or a protocol error occurs, processing one HTTP/1.1 request at a
// time over the connection's (possibly secured) SecureConn.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	sess := session.New()
	sc := NewSecureConn(conn, sess)
	reader := bufio.NewReader(sc)

	var writeMu sync.Mutex
	stopPoll := make(chan struct{})
	defer close(stopPoll)
	go s.pollLoop(sc, sess, &writeMu, stopPoll)

	for {
		sess.Touch()
		req, err := http.ReadRequest(reader)
		if err != nil {
			if err != io.EOF {
				logger.Debug("ip: read request:", err)
			}
			return
		}

		resp := s.route(sess, req)
		req.Body.Close()

		// The M4 Pair-Verify response itself must go out in the clear;
		// only requests/responses after it are framed, so the session
		// is only committed secure once this write has gone through.
		writeMu.Lock()
		err = resp.Result().Write(sc)
		writeMu.Unlock()
		if err != nil {
			logger.Debug("ip: write response:", err)
			return
		}
		if sess.Flags&session.FlagPendingSecure != 0 {
			sess.CommitSecure()
		}

		if sess.RemovedController != nil && sess.Controller != nil &&
			sess.RemovedController.ID() == sess.Controller.ID() {
			return
		}
	}
}

// pollLoop periodically checks for characteristics with a pending
// event for sess and pushes an EVENT/1.0 pseudo-response, serialising
// with the request/response writer via writeMu so the two never
// interleave on the wire.
func (s *Server) pollLoop(sc *SecureConn, sess *session.Session, writeMu *sync.Mutex, stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !sess.IsSecured() {
				continue
			}
			body, ok, err := pendingEvents(s.Db, sess.ID)
			if err != nil || !ok {
				continue
			}
			writeMu.Lock()
			_, err = sc.Write(eventResponse(body))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// route dispatches one already-read HTTP request to its handler,
// building the response in a recorder so the framing layer sees one
// complete byte stream per request.
func (s *Server) route(sess *session.Session, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()

	switch {
	case req.Method == http.MethodPost && req.URL.Path == "/pair-setup":
		s.handlePairing(rec, req, sess, pairing.PathSetup)
	case req.Method == http.MethodPost && req.URL.Path == "/pair-verify":
		s.handlePairVerify(rec, req, sess)
	case req.Method == http.MethodPost && req.URL.Path == "/pairings":
		s.handlePairing(rec, req, sess, pairing.PathPairings)
	case req.Method == http.MethodPost && req.URL.Path == "/identify":
		s.handleIdentify(rec)
	case req.Method == http.MethodGet && req.URL.Path == "/accessories":
		s.handleGetAccessories(rec)
	case req.Method == http.MethodGet && req.URL.Path == "/characteristics":
		s.handleGetCharacteristics(rec, req, sess)
	case req.Method == http.MethodPut && req.URL.Path == "/characteristics":
		s.handlePutCharacteristics(rec, req, sess)
	default:
		rec.WriteHeader(http.StatusNotFound)
	}
	return rec
}

// handlePairVerify runs Pair-Verify/Pair-Resume, first tearing down an
// already-secured channel. It does not commit the directional keys
// itself: handleConn does that after flushing the M4 response.
func (s *Server) handlePairVerify(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.IsSecured() {
		sess.Unsecure()
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	method, state, ok := peekMethodState(body)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	out := s.Engine.Dispatch(pairing.PathVerify, method, state, sess, body)
	writeTLV(w, out)
}

// handlePairing runs Pair-Setup or the Pairings add/remove/list
// operations against the pairing engine.
func (s *Server) handlePairing(w http.ResponseWriter, r *http.Request, sess *session.Session, path pairing.Path) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	method, state, ok := peekMethodState(body)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	out := s.Engine.Dispatch(path, method, state, sess, body)
	writeTLV(w, out)
}

func (s *Server) handleIdentify(w http.ResponseWriter) {
	if s.Config.Pairings.Count() > 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAccessories(w http.ResponseWriter) {
	body, err := renderAccessories(s.Db)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/hap+json")
	w.Write(body)
}

func (s *Server) handleGetCharacteristics(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	queries, err := parseCharQuery(r.URL.RawQuery)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := renderCharacteristics(s.Db, queries, sess.ID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/hap+json")
	w.Write(body)
}

func (s *Server) handlePutCharacteristics(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := applyCharacteristicsWrite(s.Db, sess.ID, body); err != nil {
		logger.Notice("ip: characteristics write rejected:", err)
		w.WriteHeader(http.StatusMultiStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// peekMethodState decodes just enough of a pairing TLV8 body to route
// it: the Method (defaulting to PairVerify's implicit method when
// absent, as Pair-Verify's M1/M3 bodies carry no Method TLV) and State.
func peekMethodState(body []byte) (pairing.Method, pairing.State, bool) {
	items, err := buf.Decode(body)
	if err != nil {
		return 0, 0, false
	}
	stateBytes, ok := buf.Find(items, pairing.TypeState)
	if !ok || len(stateBytes) != 1 {
		return 0, 0, false
	}
	state := pairing.State(stateBytes[0])

	method := pairing.MethodPairVerify
	if methodBytes, ok := buf.Find(items, pairing.TypeMethod); ok && len(methodBytes) == 1 {
		method = pairing.Method(methodBytes[0])
	}
	return method, state, true
}

func writeTLV(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/pairing+tlv8")
	w.Write(body)
}
