package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Color represents an RGB color
type Color struct {
	R byte // Red (0-255)
	G byte // Green (0-255)
	B byte // Blue (0-255)
}

// Hex returns the color as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Packed returns the color as 0xRRGGBB
func (c Color) Packed() int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// basicColors is the first row of the CAD color index (1-9)
var basicColors = [...]Color{
	1: {255, 0, 0},
	2: {255, 255, 0},
	3: {0, 255, 0},
	4: {0, 255, 255},
	5: {0, 0, 255},
	6: {255, 0, 255},
	7: {255, 255, 255},
	8: {128, 128, 128},
	9: {192, 192, 192},
}

var namedColors = map[string]int{
	"red":       1,
	"yellow":    2,
	"green":     3,
	"cyan":      4,
	"blue":      5,
	"magenta":   6,
	"white":     7,
	"gray":      8,
	"grey":      8,
	"lightgray": 9,
	"lightgrey": 9,
}

// ColorFromIndex converts an integer color value. 1..9 are the basic CAD
// palette entries, any other value in 0..0xFFFFFF is packed RGB.
func ColorFromIndex(n int64) (Color, error) {
	if n >= 1 && n <= 9 {
		return basicColors[n], nil
	}
	if n < 0 || n > 0xFFFFFF {
		return Color{}, fmt.Errorf("color value %d out of range", n)
	}
	return Color{R: byte(n >> 16), G: byte(n >> 8), B: byte(n)}, nil
}

// ParseColor parses "#rrggbb", "r,g,b", a basic color name or an integer
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, fmt.Errorf("empty color")
	}
	if idx, ok := namedColors[strings.ToLower(s)]; ok {
		return basicColors[idx], nil
	}
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return Color{}, fmt.Errorf("invalid hex color %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		// hex is always RGB, never a palette index
		return Color{R: byte(v >> 16), G: byte(v >> 8), B: byte(v)}, nil
	}
	if parts := strings.Split(s, ","); len(parts) == 3 {
		var rgb [3]byte
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid color component %q: %w", p, err)
			}
			rgb[i] = byte(v)
		}
		return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Color{}, fmt.Errorf("unrecognized color %q", s)
	}
	return ColorFromIndex(n)
}
