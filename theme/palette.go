package theme

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

//go:embed palettes/*.gpl
var palettes embed.FS

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette returns the built-in plasma palette
func DefaultPalette() *Palette {
	f, err := palettes.Open("palettes/plasma.gpl")
	if err != nil {
		panic(fmt.Sprintf("embedded palette: %v", err))
	}
	defer f.Close()
	p, err := ParseGPL(f)
	if err != nil {
		panic(fmt.Sprintf("embedded palette: %v", err))
	}
	return p
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseGPL reads GIMP palette text. Colour lines are "R G B [name]";
// a malformed colour line is an error rather than a silently dropped step
// colour.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "GIMP"), strings.HasPrefix(line, "Columns:"):
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(line[len("Name:"):])
		default:
			c, err := parseRGB(strings.Fields(line))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("palette has no colors")
	}
	return p, nil
}

func parseRGB(fields []string) (RGB, error) {
	var c RGB
	if len(fields) < 3 {
		return c, fmt.Errorf("want R G B, got %q", strings.Join(fields, " "))
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, fmt.Errorf("bad component %q", fields[i])
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// Lookup maps a CV level onto the palette, blending neighbouring colors
func (p *Palette) Lookup(level float64) RGB {
	last := len(p.Colors) - 1
	pos := math.Max(0, math.Min(1, level)) * float64(last)
	i := int(pos)
	if i >= last {
		return p.Colors[last]
	}

	a, b := p.Colors[i], p.Colors[i+1]
	t := pos - float64(i)
	var out RGB
	for k := range out {
		out[k] = uint8(math.Round(float64(a[k]) + (float64(b[k])-float64(a[k]))*t))
	}
	return out
}
