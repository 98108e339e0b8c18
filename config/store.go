package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.haplib.dev/hap/crypto/srp"
)

// Store is the persistence backend Config loads from and saves to,
// mirroring the daemon's Persister interface (Save/Load/Delete) but
// keyed by short flat strings rather than a single JSON blob, since
// HAP settings stores are conventionally flat key-value backends on
// the accessory's own storage.
type Store interface {
	Save(c *Config) error
	Load(c *Config) error
	Delete() error
}

// kv key names.
const (
	keyName         = "nm"
	keyModel        = "md"
	keyManufacturer = "mf"
	keySerial       = "sn"
	keyFirmware     = "fw"
	keyHardware     = "hw"
	keySetupCode    = "sc"
	keyVerifier     = "sv"
	keySalt         = "ss"
	keyDeviceID     = "id"
	keyCategory     = "ci"
	keyStatusFlags  = "sf"
	keyConfigNum    = "cn"
	keyGSN          = "gs"
	keyPort         = "pn"
	keyPrivateKey   = "sk"
	keyPublicKey    = "pk"
)

func pairingKey(slot int) string { return fmt.Sprintf("p%X", slot) }

// FileStore is a Store backed by one file per key under a base
// directory, matching the ~/.hap layout the daemon's own
// common/socket helpers build for their own state directory.
type FileStore struct {
	dir string
}

// NewFileStore builds a FileStore rooted at dir, creating it (mode
// 0700) if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(key string) string { return filepath.Join(fs.dir, key) }

func (fs *FileStore) writeString(key, v string) error {
	return os.WriteFile(fs.path(key), []byte(v), 0600)
}

func (fs *FileStore) readString(key string) (string, error) {
	b, err := os.ReadFile(fs.path(key))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (fs *FileStore) writeBytes(key string, v []byte) error {
	return os.WriteFile(fs.path(key), v, 0600)
}

func (fs *FileStore) readBytes(key string) ([]byte, error) {
	return os.ReadFile(fs.path(key))
}

// Save writes every Config field to its own key file.
func (fs *FileStore) Save(c *Config) error {
	strs := map[string]string{
		keyName:         c.Name,
		keyModel:        c.Model,
		keyManufacturer: c.Manufacturer,
		keySerial:       c.Serial,
		keyFirmware:     c.Firmware,
		keyHardware:     c.Hardware,
		keySetupCode:    c.SetupCode,
	}
	for k, v := range strs {
		if err := fs.writeString(k, v); err != nil {
			return fmt.Errorf("config: saving %s: %w", k, err)
		}
	}

	if c.Verifier != nil {
		if err := fs.writeBytes(keyVerifier, c.Verifier.V); err != nil {
			return err
		}
		if err := fs.writeBytes(keySalt, c.Verifier.Salt[:]); err != nil {
			return err
		}
	}

	if err := fs.writeBytes(keyDeviceID, c.DeviceID[:]); err != nil {
		return err
	}
	if err := fs.writeBytes(keyCategory, []byte{c.Category}); err != nil {
		return err
	}
	if err := fs.writeBytes(keyStatusFlags, []byte{byte(c.Status)}); err != nil {
		return err
	}

	var cn [4]byte
	binary.LittleEndian.PutUint32(cn[:], c.ConfigNum)
	if err := fs.writeBytes(keyConfigNum, cn[:]); err != nil {
		return err
	}

	var gsn [2]byte
	binary.LittleEndian.PutUint16(gsn[:], c.GSN)
	if err := fs.writeBytes(keyGSN, gsn[:]); err != nil {
		return err
	}

	var port [2]byte
	binary.LittleEndian.PutUint16(port[:], c.Port)
	if err := fs.writeBytes(keyPort, port[:]); err != nil {
		return err
	}

	if err := fs.writeBytes(keyPrivateKey, c.LongTermPrivate[:]); err != nil {
		return err
	}
	if err := fs.writeBytes(keyPublicKey, c.LongTermPublic[:]); err != nil {
		return err
	}

	for i := 0; i < NumPairingSlots; i++ {
		slot := c.Pairings.slots[i]
		if err := fs.writeBytes(pairingKey(i), marshalController(&slot)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every key file back into Config, failing if any
// mandatory key is missing (the caller then falls back to a
// manufacturing Reset).
func (fs *FileStore) Load(c *Config) error {
	var err error
	if c.Name, err = fs.readString(keyName); err != nil {
		return err
	}
	if c.Model, err = fs.readString(keyModel); err != nil {
		return err
	}
	if c.Manufacturer, err = fs.readString(keyManufacturer); err != nil {
		return err
	}
	if c.Serial, err = fs.readString(keySerial); err != nil {
		return err
	}
	if c.Firmware, err = fs.readString(keyFirmware); err != nil {
		return err
	}
	if c.Hardware, err = fs.readString(keyHardware); err != nil {
		return err
	}
	if c.SetupCode, err = fs.readString(keySetupCode); err != nil {
		return err
	}

	v, err := fs.readBytes(keyVerifier)
	if err != nil {
		return err
	}
	salt, err := fs.readBytes(keySalt)
	if err != nil {
		return err
	}
	if len(salt) != 16 {
		return fmt.Errorf("config: corrupt salt")
	}
	var saltArr [16]byte
	copy(saltArr[:], salt)
	c.Verifier = &srp.Verifier{Identity: []byte("Pair-Setup"), Salt: saltArr, V: v}

	id, err := fs.readBytes(keyDeviceID)
	if err != nil {
		return err
	}
	copy(c.DeviceID[:], id)

	ci, err := fs.readBytes(keyCategory)
	if err != nil {
		return err
	}
	c.Category = ci[0]

	sf, err := fs.readBytes(keyStatusFlags)
	if err != nil {
		return err
	}
	c.Status = StatusFlag(sf[0])

	cn, err := fs.readBytes(keyConfigNum)
	if err != nil {
		return err
	}
	c.ConfigNum = binary.LittleEndian.Uint32(cn)

	gs, err := fs.readBytes(keyGSN)
	if err != nil {
		return err
	}
	c.GSN = binary.LittleEndian.Uint16(gs)

	pn, err := fs.readBytes(keyPort)
	if err != nil {
		return err
	}
	c.Port = binary.LittleEndian.Uint16(pn)

	sk, err := fs.readBytes(keyPrivateKey)
	if err != nil {
		return err
	}
	copy(c.LongTermPrivate[:], sk)

	pk, err := fs.readBytes(keyPublicKey)
	if err != nil {
		return err
	}
	copy(c.LongTermPublic[:], pk)

	c.Pairings = NewPairings()
	for i := 0; i < NumPairingSlots; i++ {
		raw, err := fs.readBytes(pairingKey(i))
		if err != nil {
			continue // a missing slot file just means an empty slot
		}
		unmarshalController(raw, &c.Pairings.slots[i])
	}

	return nil
}

// Delete removes every key file, used by a full factory reset.
func (fs *FileStore) Delete() error {
	return os.RemoveAll(fs.dir)
}

// marshalController/unmarshalController give each Controller slot a
// fixed-width binary encoding for its own key file.
func marshalController(c *Controller) []byte {
	out := make([]byte, 1+1+36+32+1+8+32)
	out[0] = byte(c.Perm)
	out[1] = byte(c.IdentifierLen)
	copy(out[2:38], c.Identifier[:])
	copy(out[38:70], c.LTPK[:])
	if c.HasResumeState {
		out[70] = 1
	}
	copy(out[71:79], c.ResumeSessionID[:])
	copy(out[79:111], c.ResumeShared[:])
	return out
}

func unmarshalController(raw []byte, c *Controller) {
	if len(raw) < 111 {
		return
	}
	c.Perm = Permission(raw[0])
	c.IdentifierLen = int(raw[1])
	copy(c.Identifier[:], raw[2:38])
	copy(c.LTPK[:], raw[38:70])
	c.HasResumeState = raw[70] == 1
	copy(c.ResumeSessionID[:], raw[71:79])
	copy(c.ResumeShared[:], raw[79:111])
}
