// Command hapd is the accessory runtime daemon: it loads (or
// manufactures) the device Config, builds the accessory database, and
// serves both the BLE and IP transports until signalled to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/op/go-logging"
	"github.com/paypal/gatt"

	"go.haplib.dev/hap/accessory"
	log2 "go.haplib.dev/hap/common/log"
	"go.haplib.dev/hap/common/version"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/transport/ble"
	"go.haplib.dev/hap/transport/ip"
)

func useSyslog() bool {
	env := os.Getenv("HAP_LOG_SYSLOG")
	if env != "" {
		return env == "true"
	}
	return true
}

var log = log2.SetupLogging("hapd", logging.INFO, useSyslog())

func homeDir() string {
	if dir := os.Getenv("HAP_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hap"
	}
	return home + "/.hap"
}

func buildDb() *accessory.Db {
	db := accessory.NewDb()
	acc := accessory.NewAccessory(1)

	info := accessory.NewService(0, "AccessoryInformation", accessory.AccessoryInformationUUID, 0)
	nameChar := accessory.NewCharacteristic(0, "Name", "00000023-0000-1000-8000-0026BB765291", accessory.PermPairedRead)
	nameValue := accessory.NewProperty(accessory.PropValue, accessory.FormatString, 64)
	nameValue.SetValue([]byte("hap accessory"))
	nameChar.Add(nameValue)
	info.Add(nameChar)
	acc.Add(info)

	proto := accessory.NewService(0, "ProtocolInformation", "000000A2-0000-1000-8000-0026BB765291", 0)
	versionChar := accessory.NewCharacteristic(0, "Version", "00000037-0000-1000-8000-0026BB765291", accessory.PermPairedRead)
	versionValue := accessory.NewProperty(accessory.PropValue, accessory.FormatString, 16)
	versionValue.SetValue([]byte(version.HAPProtocolVersion))
	versionChar.Add(versionValue)
	proto.Add(versionChar)
	acc.Add(proto)
	db.Add(acc)
	return db
}

func main() {
	defer func() {
		if x := recover(); x != nil {
			log.Error(fmt.Sprintf("run time panic: %v", x))
			log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	dir := homeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.Fatal(err)
	}
	store, err := config.NewFileStore(dir)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Init(store, config.Identity{
		Name:         "hap accessory",
		Model:        "HAP1,1",
		Manufacturer: "go.haplib.dev",
		Serial:       "000000000001",
		Firmware:     version.CURRENT_VERSION.String(),
		Hardware:     "1.0",
		Category:     5, // Lightbulb
	})
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Port == 0 {
		cfg.Port = 51826
	}

	db := buildDb()
	if _, err := db.SetId(); err != nil {
		log.Fatal(err)
	}

	log.Notice("setup code:", cfg.SetupCode)

	ipServer := ip.NewServer(db, cfg)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := ipServer.ListenAndServe(addr); err != nil {
			log.Error("ip transport stopped:", err)
		}
	}()

	gs := &gatt.Server{Name: cfg.Name}
	bleServer := ble.NewServer(gs, db, cfg)
	if err := bleServer.BuildServices(); err != nil {
		log.Fatal(err)
	}
	go func() {
		if err := gs.AdvertiseAndServe(); err != nil {
			log.Error("ble transport stopped:", err)
		}
	}()

	log.Notice("hapd launched, serving on port", cfg.Port)

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, os.Kill, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	sig, ok := <-stopSignal
	gs.Close()
	if ok {
		log.Notice("stopping with signal", sig)
	}
}
