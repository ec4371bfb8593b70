package emucore

import (
	"fmt"
	"strings"
)

// KeyState is a button bitmask in hardware KEYINPUT bit order.
// A set bit means the button is pressed.
type KeyState uint16

// Button bit positions.
const (
	ButtonA      = 0
	ButtonB      = 1
	ButtonSelect = 2
	ButtonStart  = 3
	ButtonRight  = 4
	ButtonLeft   = 5
	ButtonUp     = 6
	ButtonDown   = 7
	ButtonR      = 8
	ButtonL      = 9
)

// KeyMask covers every defined button bit.
const KeyMask KeyState = 0x03FF

// Button describes a system-specific button with its display name
// and bit position in the input bitmask.
type Button struct {
	Name string
	ID   int // Bit position in the KeyState bitmask
}

// Buttons lists every button in bit order.
var Buttons = []Button{
	{Name: "A", ID: ButtonA},
	{Name: "B", ID: ButtonB},
	{Name: "Select", ID: ButtonSelect},
	{Name: "Start", ID: ButtonStart},
	{Name: "Right", ID: ButtonRight},
	{Name: "Left", ID: ButtonLeft},
	{Name: "Up", ID: ButtonUp},
	{Name: "Down", ID: ButtonDown},
	{Name: "R", ID: ButtonR},
	{Name: "L", ID: ButtonL},
}

// Pressed reports whether the button with the given bit is down.
func (k KeyState) Pressed(id int) bool {
	return k&(1<<uint(id)) != 0
}

// String returns the pressed buttons joined with "+", or "none".
func (k KeyState) String() string {
	var names []string
	for _, b := range Buttons {
		if k.Pressed(b.ID) {
			names = append(names, b.Name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// ParseKeys parses a "+" or "," separated list of button names
// (case-insensitive). "none" and the empty string yield no buttons.
func ParseKeys(s string) (KeyState, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
	var k KeyState
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		name := strings.TrimSpace(part)
		found := false
		for _, b := range Buttons {
			if strings.EqualFold(b.Name, name) {
				k |= 1 << uint(b.ID)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown button %q", name)
		}
	}
	return k, nil
}

// SystemInfo describes an emulator system for frontend configuration.
type SystemInfo struct {
	Name          string
	ConsoleName   string
	Extensions    []string
	BIOSSize      int
	ScreenWidth   int
	ScreenHeight  int
	FPS           float64
	CyclesPerSec  int
	Buttons       []Button
	DataDirName   string
	CoreName      string
	CoreVersion   string
	SerializeSize int // 0 when the size depends on the loaded ROM
}

// FramebufferSize returns the number of pixels in one frame.
func (s SystemInfo) FramebufferSize() int {
	return s.ScreenWidth * s.ScreenHeight
}

// CoreFactory creates emulator instances and provides system metadata.
type CoreFactory interface {
	// SystemInfo returns system metadata.
	SystemInfo() SystemInfo

	// CreateEmulator creates a new emulator from BIOS and ROM images.
	CreateEmulator(bios, rom []byte) (Emulator, error)
}
