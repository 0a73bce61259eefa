package delegate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DeviceType is the bus an Edge TPU is attached to.
type DeviceType string

const (
	// AnyType matches every bus.
	AnyType DeviceType = ""
	USB     DeviceType = "usb"
	PCI     DeviceType = "pci"
)

// Device is one enumerated Edge TPU.
type Device struct {
	Type DeviceType
	Path string
}

func (d Device) String() string {
	return string(d.Type) + ":" + d.Path
}

var (
	// ErrSelector reports a device token that is not a valid selector.
	ErrSelector = errors.New("invalid Edge TPU device selector")
	// ErrNoDevice reports that no enumerated device matches a selector.
	ErrNoDevice = errors.New("no matching Edge TPU device")
)

// Selector picks one device out of the enumerated ones. The token grammar
// follows libedgetpu: "", ":N", "usb", "pci", "usb:N", "pci:N", "usb:<path>"
// and "pci:<path>".
type Selector struct {
	Type DeviceType
	// Index counts devices of Type in enumeration order, -1 when unset.
	Index int
	// Path matches a device path exactly when non-empty.
	Path string
}

// ParseSelector parses a device token.
func ParseSelector(token string) (Selector, error) {
	sel := Selector{Type: AnyType, Index: -1}
	if token == "" {
		return sel, nil
	}

	kind, rest, hasColon := strings.Cut(token, ":")
	switch DeviceType(kind) {
	case AnyType:
		// ":N"
	case USB, PCI:
		sel.Type = DeviceType(kind)
	default:
		return Selector{}, fmt.Errorf("%w: %q", ErrSelector, token)
	}

	if !hasColon {
		return sel, nil
	}
	if rest == "" {
		return Selector{}, fmt.Errorf("%w: %q", ErrSelector, token)
	}

	if n, err := strconv.Atoi(rest); err == nil {
		if n < 0 {
			return Selector{}, fmt.Errorf("%w: %q", ErrSelector, token)
		}
		sel.Index = n
		return sel, nil
	}
	if sel.Type == AnyType {
		return Selector{}, fmt.Errorf("%w: %q", ErrSelector, token)
	}
	sel.Path = rest
	return sel, nil
}

// Select returns the device sel refers to.
func (sel Selector) Select(devices []Device) (Device, error) {
	n := 0
	for _, d := range devices {
		if sel.Type != AnyType && d.Type != sel.Type {
			continue
		}
		switch {
		case sel.Path != "":
			if d.Path == sel.Path {
				return d, nil
			}
		case sel.Index < 0 || sel.Index == n:
			return d, nil
		}
		n++
	}
	return Device{}, fmt.Errorf("%w: %s (%d enumerated)", ErrNoDevice, sel, len(devices))
}

func (sel Selector) String() string {
	switch {
	case sel.Path != "":
		return string(sel.Type) + ":" + sel.Path
	case sel.Index >= 0:
		return string(sel.Type) + ":" + strconv.Itoa(sel.Index)
	case sel.Type == AnyType:
		return "default"
	default:
		return string(sel.Type)
	}
}
