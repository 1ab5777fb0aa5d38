package command

import (
	"fmt"
	"strconv"
)

// Display scales for physical parameters.
const (
	// UnitsPerMM converts raw coordinates and speeds to millimeters.
	UnitsPerMM = 1000.0
	// PowerFullScale is the raw value of 100% laser power.
	PowerFullScale = 0x3FFF
)

// Param is one named display parameter.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

func (p Param) String() string {
	if p.Unit == "" {
		return p.Name + "=" + p.Value
	}
	return p.Name + "=" + p.Value + p.Unit
}

func physical(name string, raw float64, scale float64, digits int, unit string) Param {
	return Param{Name: name, Value: strconv.FormatFloat(raw*scale, 'f', digits, 64), Unit: unit}
}

func millimeters(name string, raw int64) Param {
	return physical(name, float64(raw), 1/UnitsPerMM, 3, "mm")
}

func percent(name string, raw uint64) Param {
	return physical(name, float64(raw), 100.0/PowerFullScale, 2, "%")
}

func speed(name string, raw uint64) Param {
	return physical(name, float64(raw), 1/UnitsPerMM, 3, "mm/s")
}

func integer(name string, v int) Param {
	return Param{Name: name, Value: strconv.Itoa(v)}
}

func hexByte(name string, v uint8) Param {
	return Param{Name: name, Value: fmt.Sprintf("0x%02x", v)}
}

func boolean(name string, v bool) Param {
	return Param{Name: name, Value: strconv.FormatBool(v)}
}
