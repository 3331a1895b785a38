package scancode

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the physical input a scan arrived on.
type Channel string

const (
	ChannelCamera   Channel = "camera"
	ChannelPhysical Channel = "physical"
)

// ParseChannel accepts the channel names used by the HTTP and CLI surfaces.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camera", "camara":
		return ChannelCamera, nil
	case "physical", "fisico":
		return ChannelPhysical, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Format is the decoder's hint about the symbology it read.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatQR      Format = "qr"
	FormatBarcode Format = "barcode"
)

// ParseFormat maps decoder format names onto Format. Any named linear
// symbology counts as a barcode.
func ParseFormat(s string) Format {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case name == "":
		return FormatUnknown
	case name == "QR" || name == "QR_CODE":
		return FormatQR
	case name == "UNKNOWN":
		return FormatUnknown
	default:
		return FormatBarcode
	}
}

// Event is one logical "code observed" occurrence. It is never persisted.
type Event struct {
	RawText    string
	Channel    Channel
	Format     Format
	ObservedAt time.Time
}
