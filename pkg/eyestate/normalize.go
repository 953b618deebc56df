package eyestate

import (
	"fmt"
	"strings"
)

// Normalization is the per-channel rescaling applied to 8-bit RGB values
// before inference. It must match what the classifier was trained with.
type Normalization string

const (
	// Passthrough keeps raw 0-255 values. Keras EfficientNet preprocess_input
	// is an identity function because the network rescales internally.
	Passthrough Normalization = "passthrough"

	// Unit maps 0-255 to 0-1.
	Unit Normalization = "unit"

	// Symmetric maps 0-255 to -1..1 via (v/255 - 0.5) / 0.5.
	Symmetric Normalization = "symmetric"
)

// DefaultNormalization matches the shipped EfficientNet model.
const DefaultNormalization = Passthrough

// Normalizations lists the accepted names.
func Normalizations() []Normalization {
	return []Normalization{Passthrough, Unit, Symmetric}
}

// ParseNormalization validates a normalization name. Empty means default.
func ParseNormalization(s string) (Normalization, error) {
	if s == "" {
		return DefaultNormalization, nil
	}
	n := Normalization(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Normalizations() {
		if n == known {
			return n, nil
		}
	}
	return "", &ConfigError{
		Field:   "normalization",
		Message: fmt.Sprintf("unknown normalization %q (want passthrough, unit or symmetric)", s),
	}
}

// Apply rescales one channel value.
func (n Normalization) Apply(v uint8) float32 {
	switch n {
	case Unit:
		return float32(v) / 255
	case Symmetric:
		return (float32(v)/255 - 0.5) / 0.5
	default:
		return float32(v)
	}
}

// Table precomputes Apply for every byte value.
func (n Normalization) Table() *[256]float32 {
	var t [256]float32
	for i := range t {
		t[i] = n.Apply(uint8(i))
	}
	return &t
}
