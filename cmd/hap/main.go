// Command hap is the operator shell for the accessory runtime: it
// inspects and resets the on-disk Config without needing the daemon
// to be running.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"go.haplib.dev/hap/common/color"
	"go.haplib.dev/hap/common/version"
	"go.haplib.dev/hap/config"
)

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

// loadConfig opens the daemon's FileStore and loads Config from it,
// failing rather than manufacturing a fresh one: the CLI only ever
// inspects or resets state the daemon already created.
func loadConfig() (*config.Config, error) {
	store, err := config.NewFileStore(homeDir())
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{Pairings: config.NewPairings()}
	if err := store.Load(cfg); err != nil {
		return nil, fmt.Errorf("hap: no configuration at %s, is hapd running?", homeDir())
	}
	return cfg, nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", color.Cyan("name:"), cfg.Name)
	fmt.Printf("%s  %s\n", color.Cyan("model:"), cfg.Model)
	fmt.Printf("%s  %s\n", color.Cyan("manufacturer:"), cfg.Manufacturer)
	fmt.Printf("%s  %s\n", color.Cyan("serial:"), cfg.Serial)
	fmt.Printf("%s  %s\n", color.Cyan("firmware:"), cfg.Firmware)
	fmt.Printf("%s  %s\n", color.Cyan("hardware:"), cfg.Hardware)
	fmt.Printf("%s  %d\n", color.Cyan("category:"), cfg.Category)
	fmt.Printf("%s  %d\n", color.Cyan("config number:"), cfg.ConfigNum)
	fmt.Printf("%s  %d\n", color.Cyan("gsn:"), cfg.GSN)
	fmt.Printf("%s  %d\n", color.Cyan("port:"), cfg.Port)
	if c.Bool("json") {
		fmt.Println(color.Yellow("(--json dump omitted: wire this to encoding/json once a debug Profile shape is needed)"))
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n := cfg.Pairings.Count()
	if n == 0 {
		fmt.Println(color.Red("not paired"))
	} else {
		fmt.Println(color.Green(fmt.Sprintf("paired with %d controller(s)", n)))
		cfg.Pairings.Each(func(ctrl *config.Controller) bool {
			perm := "regular"
			if ctrl.Perm == config.PermAdmin {
				perm = "admin"
			}
			fmt.Printf("  %s  (%s)\n", ctrl.ID(), perm)
			return true
		})
	}
	fmt.Printf("%s  %d\n", color.Cyan("gsn:"), cfg.GSN)
	return nil
}

func resetCommand(c *cli.Context) error {
	store, err := config.NewFileStore(homeDir())
	if err != nil {
		return err
	}
	cfg := &config.Config{Pairings: config.NewPairings()}
	manufacturing := c.Bool("m")
	if err := store.Load(cfg); err != nil {
		manufacturing = true
	}
	identity := config.Identity{
		Name: cfg.Name, Model: cfg.Model, Manufacturer: cfg.Manufacturer,
		Serial: cfg.Serial, Firmware: cfg.Firmware, Hardware: cfg.Hardware,
		Category: cfg.Category,
	}
	if err := cfg.Reset(manufacturing, identity); err != nil {
		return err
	}
	if err := store.Save(cfg); err != nil {
		return err
	}
	fmt.Println(color.Green("configuration reset"))
	if manufacturing {
		fmt.Printf("%s  %s\n", color.Cyan("new setup code:"), cfg.SetupCode)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "hap"
	app.Usage = "inspect and manage a hapd accessory runtime"
	app.Version = version.CURRENT_VERSION.String()
	app.Commands = []cli.Command{
		cli.Command{
			Name:   "config",
			Usage:  "Print the current accessory configuration",
			Action: configCommand,
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "json",
					Usage: "Accepted, but no JSON dump is produced; a notice is printed instead",
				},
			},
		},
		cli.Command{
			Name:   "status",
			Usage:  "Print pairing and GSN status",
			Action: statusCommand,
		},
		cli.Command{
			Name:  "reset",
			Usage: "Reset the accessory configuration",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "m",
					Usage: "Perform a manufacturing reset (regenerates identity and setup code)",
				},
			},
			Action: resetCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.Red(err.Error()))
		os.Exit(1)
	}
}
