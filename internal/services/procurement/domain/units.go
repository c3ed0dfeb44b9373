package domain

import (
	"fmt"
	"strings"
)

// Unit is the measure an RFQ item quantity is expressed in.
type Unit string

var units = map[Unit]struct{}{
	"units": {}, "sets": {}, "pieces": {}, "kg": {}, "g": {}, "tonnes": {},
	"liters": {}, "ml": {}, "barrels": {}, "meters": {}, "cm": {}, "mm": {},
	"feet": {}, "inches": {}, "packs": {}, "boxes": {}, "rolls": {}, "cans": {},
	"bottles": {},
}

// ParseUnit validates an optional unit. An empty value is allowed.
func ParseUnit(value string) (Unit, error) {
	unit := Unit(strings.ToLower(strings.TrimSpace(value)))
	if unit == "" {
		return "", nil
	}
	if _, ok := units[unit]; !ok {
		return "", fmt.Errorf("unknown unit %q", value)
	}
	return unit, nil
}
