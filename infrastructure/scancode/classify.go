package scancode

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MELPrefix and MELLength describe the primary package-code convention.
const (
	MELPrefix = "4"
	MELLength = 11

	minPlausibleLength = 10
	maxPlausibleLength = 14
	minNameLength      = 6
)

// Kind separates operator-name scans from package codes.
type Kind int

const (
	KindPackageCode Kind = iota
	KindNameToken
)

func (k Kind) String() string {
	if k == KindNameToken {
		return "name_token"
	}
	return "package_code"
}

// Tier is the confidence assigned to a package code.
type Tier int

const (
	TierHigh Tier = iota
	TierNonConventional
	TierOutOfRange
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierNonConventional:
		return "non_conventional"
	default:
		return "out_of_range"
	}
}

// Classification is the classifier verdict for one canonical code. Title and
// Message are only set when NeedsConfirmation is true.
type Classification struct {
	Code              string
	Kind              Kind
	Tier              Tier
	NeedsConfirmation bool
	Title             string
	Message           string
}

// IsMELCode reports whether code follows the primary package-code convention.
func IsMELCode(code string) bool {
	return len(code) == MELLength && strings.HasPrefix(code, MELPrefix)
}

// IsNameToken reports whether code reads like an operator name rather than a
// package code.
func IsNameToken(code string) bool {
	trimmed := strings.TrimSpace(code)
	if utf8.RuneCountInString(trimmed) < minNameLength {
		return false
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return false
	}
	return strings.Contains(trimmed, " ")
}

// Classify decides how a canonical code enters the pipeline. Codes read by a
// camera from a QR symbol never auto-accept, since 2D payloads carry no
// length guarantee.
func Classify(code string, ch Channel, format Format) Classification {
	c := Classification{Code: code, Kind: KindPackageCode}
	if IsNameToken(code) {
		c.Kind = KindNameToken
		return c
	}

	fixedLength := ch == ChannelPhysical || format != FormatQR
	if IsMELCode(code) && fixedLength {
		c.Tier = TierHigh
		return c
	}

	c.NeedsConfirmation = true
	if !fixedLength || len(code) < minPlausibleLength || len(code) > maxPlausibleLength {
		c.Tier = TierOutOfRange
		c.Title = "Confirm code"
		c.Message = "The following code was detected. Add it to the list?"
		return c
	}
	c.Tier = TierNonConventional
	c.Title = "Warning"
	c.Message = "This is not a MEL code. Add it anyway?"
	return c
}
