// Package version tracks the runtime's own release version and the
// HAP protocol version it implements.
package version

import "github.com/blang/semver"

// CURRENT_VERSION is the library release version, bumped on tagged
// releases.
var CURRENT_VERSION = semver.MustParse("1.0.0")

// HAPProtocolVersion is the literal string reported by the
// Protocol-Information service's Version characteristic.
const HAPProtocolVersion = "2.2.0"
