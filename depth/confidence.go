package depth

import "image/color"

// ConfidenceClass is the reliability tier of a depth sample.
type ConfidenceClass uint8

const (
	// Low covers every raw value other than 1 and 2.
	Low ConfidenceClass = iota
	Medium
	High
)

// ConfidenceFromByte maps a raw sensor confidence byte to its class.
func ConfidenceFromByte(raw uint8) ConfidenceClass {
	switch raw {
	case 2:
		return High
	case 1:
		return Medium
	default:
		return Low
	}
}

func (c ConfidenceClass) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Color is the marker color for the class: green, yellow or red.
func (c ConfidenceClass) Color() color.RGBA {
	switch c {
	case High:
		return color.RGBA{G: 255, A: 255}
	case Medium:
		return color.RGBA{R: 255, G: 255, A: 255}
	default:
		return color.RGBA{R: 255, A: 255}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ConfidenceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
