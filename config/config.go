package config

import (
	"crypto/rand"
	"fmt"

	"go.haplib.dev/hap/crypto/ed25519"
	"go.haplib.dev/hap/crypto/srp"
)

// StatusFlag is the Accessory-Information status-flags bitmask.
type StatusFlag byte

const (
	StatusNotPaired StatusFlag = 1 << iota
	StatusNotConfiguredForWiFi
	StatusProblemDetected
)

// Config is the process-wide state initialised at boot and persisted
// across reboots.
type Config struct {
	Name         string
	Model        string
	Manufacturer string
	Serial       string
	Firmware     string
	Hardware     string

	DeviceID [6]byte
	Category uint8
	Status   StatusFlag

	ConfigNum uint32
	GSN       uint16
	Port      uint16

	SetupCode string // "XXX-XX-XXX", used only to (re)derive the verifier
	Verifier  *srp.Verifier

	LongTermPublic  ed25519.PublicKey
	LongTermPrivate ed25519.PrivateKey

	Pairings *Pairings

	store Store
}

// Init loads Config from the backend, falling back to a manufacturing
// Reset if nothing is stored yet.
func Init(store Store, identity Identity) (*Config, error) {
	c := &Config{store: store, Pairings: NewPairings()}
	if err := store.Load(c); err == nil {
		return c, nil
	}
	if err := c.Reset(true, identity); err != nil {
		return nil, err
	}
	return c, nil
}

// Identity is the caller-supplied fixed identity strings a fresh
// Reset needs (name/model/manufacturer/serial/firmware/hardware):
// these come from the application, not from persisted state.
type Identity struct {
	Name, Model, Manufacturer, Serial, Firmware, Hardware string
	Category                                              uint8
}

// Reset generates a fresh device ID and SRP verifier, bumps the
// configuration number, clears pairings, and resets GSN to 1. A
// manufacturing reset also regenerates the long-term Ed25519 identity
// and setup code; a non-manufacturing reset (used after a structural
// Db change) keeps the existing identity and setup code.
func (c *Config) Reset(manufacturing bool, identity Identity) error {
	c.Name = identity.Name
	c.Model = identity.Model
	c.Manufacturer = identity.Manufacturer
	c.Serial = identity.Serial
	c.Firmware = identity.Firmware
	c.Hardware = identity.Hardware
	c.Category = identity.Category

	if _, err := rand.Read(c.DeviceID[:]); err != nil {
		return fmt.Errorf("config: generating device id: %w", err)
	}

	if manufacturing {
		setupCode, err := randomSetupCode()
		if err != nil {
			return err
		}
		c.SetupCode = setupCode

		var seed [ed25519.SeedSize]byte
		if _, err := rand.Read(seed[:]); err != nil {
			return fmt.Errorf("config: generating long-term key: %w", err)
		}
		priv, pub := ed25519.NewKeyPairFromSeed(seed)
		c.LongTermPrivate = priv
		c.LongTermPublic = pub

		c.Pairings = NewPairings()
	}

	v, err := srp.NewVerifier([]byte("Pair-Setup"), []byte(c.SetupCode))
	if err != nil {
		return fmt.Errorf("config: deriving srp verifier: %w", err)
	}
	c.Verifier = v

	c.ConfigNum++
	c.GSN = 1
	c.Status = StatusNotPaired

	if c.store != nil {
		return c.store.Save(c)
	}
	return nil
}

// Update is called on any change controllers must observe (pairing
// added/removed): it persists state and bumps ConfigNum when the
// Db's structure changed (the caller indicates this explicitly, since
// Config has no visibility into the Db itself).
func (c *Config) Update(dbStructureChanged bool) error {
	if c.Pairings.Count() > 0 {
		c.Status &^= StatusNotPaired
	} else {
		c.Status |= StatusNotPaired
	}
	if dbStructureChanged {
		c.ConfigNum++
	}
	if c.store != nil {
		return c.store.Save(c)
	}
	return nil
}

// BumpGSN increments the Global State Number, wrapping per HAP's
// 16-bit field (0 is skipped on wrap: GSN never reuses 0 after the
// first assignment), and persists the change.
func (c *Config) BumpGSN() error {
	c.GSN++
	if c.GSN == 0 {
		c.GSN = 1
	}
	if c.store != nil {
		return c.store.Save(c)
	}
	return nil
}

func randomSetupCode() (string, error) {
	var digits [8]byte
	if _, err := rand.Read(digits[:]); err != nil {
		return "", err
	}
	n := 0
	for _, d := range digits {
		n = (n*10 + int(d)%10) % 100000000
	}
	return fmt.Sprintf("%03d-%02d-%03d", n/100000, (n/1000)%100, n%1000), nil
}
