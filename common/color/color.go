// Package color wraps fatih/color with the named helpers cmd/hap uses
// for status and config output.
package color

import "github.com/fatih/color"

func Cyan(s string) string { return sprint(color.FgHiCyan, s) }

func Green(s string) string { return sprint(color.FgHiGreen, s) }

func Yellow(s string) string { return sprint(color.FgHiYellow, s) }

func Red(s string) string { return sprint(color.FgHiRed, s) }

func sprint(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.SprintFunc()(s)
}
