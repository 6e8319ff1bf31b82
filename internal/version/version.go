// ABOUTME: Version and product identification
// ABOUTME: Reported by the remote control handshake and the TUI header
package version

import "strings"

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name
	Product = "eTabla Player"

	// Manufacturer identifies who builds the software
	Manufacturer = "eTabla"
)

// UserAgent identifies asset downloads
func UserAgent() string {
	return strings.ReplaceAll(Product, " ", "-") + "/" + Version
}
