package ip

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.haplib.dev/hap/accessory"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/session"
)

func testDb(t *testing.T) *accessory.Db {
	t.Helper()
	db := accessory.NewDb()
	a := accessory.NewAccessory(1)

	info := accessory.NewService(0, "Info", accessory.AccessoryInformationUUID, 0)
	a.Add(info)

	lamp := accessory.NewService(0, "Lamp", "00000043-0000-1000-8000-0026BB765291", 0)
	onChar := accessory.NewCharacteristic(0, "On", "00000025-0000-1000-8000-0026BB765291",
		accessory.PermPairedRead|accessory.PermPairedWrite|accessory.PermConnectedEvent)
	v := accessory.NewProperty(accessory.PropValue, accessory.FormatBool, 1)
	onChar.Add(v)
	if err := v.SetValue([]byte{0x00}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	lamp.Add(onChar)
	a.Add(lamp)

	db.Add(a)
	if _, err := db.SetId(); err != nil {
		t.Fatalf("SetId: %v", err)
	}
	return db
}

func TestRenderAccessories(t *testing.T) {
	db := testDb(t)
	body, err := renderAccessories(db)
	if err != nil {
		t.Fatalf("renderAccessories: %v", err)
	}
	var decoded struct {
		Accessories []accessoryJSON `json:"accessories"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Accessories) != 1 || len(decoded.Accessories[0].Services) != 2 {
		t.Fatalf("unexpected shape: %+v", decoded)
	}
}

func TestRenderCharacteristicsMissingGetsNotFound(t *testing.T) {
	db := testDb(t)
	queries, err := parseCharQuery("id=1.99")
	if err != nil {
		t.Fatalf("parseCharQuery: %v", err)
	}
	body, err := renderCharacteristics(db, queries, 0)
	if err != nil {
		t.Fatalf("renderCharacteristics: %v", err)
	}
	var decoded struct {
		Characteristics []characteristicJSON `json:"characteristics"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Characteristics) != 1 || decoded.Characteristics[0].Status == nil || *decoded.Characteristics[0].Status != 404 {
		t.Fatalf("expected a single 404 element, got %+v", decoded.Characteristics)
	}
}

func TestApplyCharacteristicsWriteRejectsUnwritable(t *testing.T) {
	db := accessory.NewDb()
	a := accessory.NewAccessory(1)
	info := accessory.NewService(0, "Info", accessory.AccessoryInformationUUID, 0)
	ro := accessory.NewCharacteristic(0, "Name", "00000023-0000-1000-8000-0026BB765291", accessory.PermPairedRead)
	v := accessory.NewProperty(accessory.PropValue, accessory.FormatString, 16)
	ro.Add(v)
	info.Add(ro)
	a.Add(info)
	db.Add(a)
	if _, err := db.SetId(); err != nil {
		t.Fatalf("SetId: %v", err)
	}

	body := []byte(`{"characteristics":[{"aid":1,"iid":2,"value":"nope"}]}`)
	if err := applyCharacteristicsWrite(db, 1, body); err == nil {
		t.Fatal("expected write to a non-paired-write characteristic to be rejected")
	}
}

func TestApplyCharacteristicsWriteAppliesBoolValue(t *testing.T) {
	db := testDb(t)
	body := []byte(`{"characteristics":[{"aid":1,"iid":3,"value":true}]}`)
	if err := applyCharacteristicsWrite(db, 1, body); err != nil {
		t.Fatalf("applyCharacteristicsWrite: %v", err)
	}
	c := db.Characteristic(1, 3)
	if c == nil {
		t.Fatal("expected characteristic 1.3 to exist")
	}
	raw, err := c.Read(accessory.Op{}, nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(raw) != 1 || raw[0] != 1 {
		t.Fatalf("On value = %v, want [1]", raw)
	}
}

func TestSecureConnRoundTrip(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	clientSess := session.New()
	srvSess := session.New()

	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	clientSess.MarkPendingSecure(key, key)
	clientSess.CommitSecure()
	srvSess.MarkPendingSecure(key, key)
	srvSess.CommitSecure()

	clientConn := NewSecureConn(client, clientSess)
	srvConn := NewSecureConn(srv, srvSess)

	msg := []byte("GET /accessories HTTP/1.1\r\n\r\n")
	done := make(chan error, 1)
	go func() {
		_, err := clientConn.Write(msg)
		done <- err
	}()

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(srvConn, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %q, want %q", got, msg)
	}
}

func TestParseCharQuery(t *testing.T) {
	queries, err := parseCharQuery("id=1.2,1.3&meta=1&perms=1")
	if err != nil {
		t.Fatalf("parseCharQuery: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("len(queries) = %d, want 2", len(queries))
	}
	if !queries[0].meta || !queries[0].perms || queries[0].ev {
		t.Fatalf("unexpected flags: %+v", queries[0])
	}
	if queries[1].aid != 1 || queries[1].iid != 3 {
		t.Fatalf("unexpected pair: %+v", queries[1])
	}
}

func TestHandleIdentifyRejectsWhenPaired(t *testing.T) {
	dir := t.TempDir()
	store, err := config.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cfg, err := config.Init(store, config.Identity{Name: "Test", Category: 5})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := cfg.Pairings.Insert([]byte("ctrl"), make([]byte, 32), config.PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	s := NewServer(accessory.NewDb(), cfg)
	if s.Config.Pairings.Count() != 1 {
		t.Fatal("expected one pairing")
	}
	rec := httptest.NewRecorder()
	s.handleIdentify(rec)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("identify status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
