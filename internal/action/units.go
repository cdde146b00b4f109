package action

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type dimension int

const (
	volume dimension = iota + 1
	mass
	length
)

// unit is a measurement unit expressed as a multiple of its dimension's base
// unit (ml, g, cm).
type unit struct {
	name   string
	dim    dimension
	toBase decimal.Decimal
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var units = map[string]unit{
	"ml": {"ml", volume, dec("1")},
	"cl": {"cl", volume, dec("10")},
	"dl": {"dl", volume, dec("100")},
	"l":  {"l", volume, dec("1000")},
	"oz": {"oz", volume, dec("29.5735")},
	"mg": {"mg", mass, dec("0.001")},
	"g":  {"g", mass, dec("1")},
	"kg": {"kg", mass, dec("1000")},
	"lb": {"lb", mass, dec("453.59237")},
	"mm": {"mm", length, dec("0.1")},
	"cm": {"cm", length, dec("1")},
	"m":  {"m", length, dec("100")},
	"in": {"in", length, dec("2.54")},
}

var unitAliases = map[string]string{
	"floz":   "oz",
	"ounce":  "oz",
	"ounces": "oz",
	"liter":  "l",
	"litre":  "l",
	"lbs":    "lb",
	"gr":     "g",
	"inch":   "in",
	"inches": "in",
}

// lookupUnit accepts common spellings: case, spaces and dots are ignored
// ("Fl. Oz" is oz).
func lookupUnit(s string) (unit, bool) {
	k := strings.ToLower(s)
	k = strings.NewReplacer(" ", "", ".", "").Replace(k)
	if a, ok := unitAliases[k]; ok {
		k = a
	}
	u, ok := units[k]
	return u, ok
}

// snapTolerance is the relative distance within which a converted value is
// pulled to a standard size.
var snapTolerance = dec("0.03")

// preset is a named conversion with the standard retail sizes of the target
// unit. Converted values close to a standard size snap to it, so 3.4 oz
// reads as 100 ml rather than 100.55.
type preset struct {
	from, to string
	snaps    []decimal.Decimal
}

func sizes(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

var presets = map[string]preset{
	"oz-ml": {from: "oz", to: "ml", snaps: sizes(
		"5", "7.5", "10", "15", "20", "25", "30", "35", "40", "45", "50", "60", "65", "70", "75", "80",
		"90", "100", "110", "115", "120", "125", "150", "160", "175", "180", "200", "240", "250",
		"300", "350", "400", "450", "500", "1000")},
	"ml-oz": {from: "ml", to: "oz", snaps: sizes(
		"0.17", "0.25", "0.33", "0.5", "0.67", "1", "1.3", "1.5", "1.7", "2", "2.5", "2.7", "3",
		"3.3", "3.4", "4", "4.2", "5", "6", "6.7", "8", "8.4", "10", "13.5", "16.9", "33.8")},
	"l-ml":  {from: "l", to: "ml"},
	"ml-l":  {from: "ml", to: "l"},
	"g-oz":  {from: "g", to: "oz"},
	"lb-kg": {from: "lb", to: "kg"},
	"kg-lb": {from: "kg", to: "lb"},
	"in-cm": {from: "in", to: "cm"},
	"cm-in": {from: "cm", to: "in"},
}

// PresetNames lists the available conversion presets.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for n := range presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// presetFor returns the preset converting from → to, if one exists.
func presetFor(from, to string) (preset, bool) {
	for _, p := range presets {
		if p.from == from && p.to == to {
			return p, true
		}
	}
	return preset{}, false
}

// snap returns the standard size nearest to v when it lies within
// snapTolerance of it, and v otherwise.
func snap(v decimal.Decimal, snaps []decimal.Decimal) decimal.Decimal {
	best := v
	var bestDist decimal.Decimal
	found := false
	for _, s := range snaps {
		dist := v.Sub(s).Abs()
		if dist.GreaterThan(s.Mul(snapTolerance)) {
			continue
		}
		if !found || dist.LessThan(bestDist) {
			best, bestDist, found = s, dist, true
		}
	}
	return best
}

// unitFactor is the multiplier converting a value in from into to.
func unitFactor(from, to unit) decimal.Decimal {
	return from.toBase.Div(to.toBase)
}
