package emucore

import "testing"

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected KeyState
	}{
		{name: "empty", input: "", expected: 0},
		{name: "none", input: "None", expected: 0},
		{name: "single", input: "A", expected: 1 << ButtonA},
		{name: "combo plus", input: "A+Start", expected: 1<<ButtonA | 1<<ButtonStart},
		{name: "combo comma", input: "left, up", expected: 1<<ButtonLeft | 1<<ButtonUp},
		{name: "shoulders", input: "L+R", expected: 1<<ButtonL | 1<<ButtonR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeys(tt.input)
			if err != nil {
				t.Fatalf("ParseKeys(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseKeys(%q) = 0x%03X, want 0x%03X", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseKeysUnknown(t *testing.T) {
	if _, err := ParseKeys("A+Turbo"); err == nil {
		t.Fatal("expected error for unknown button")
	}
}

func TestKeyStateString(t *testing.T) {
	if s := KeyState(0).String(); s != "none" {
		t.Errorf("empty state = %q, want none", s)
	}
	k := KeyState(1<<ButtonB | 1<<ButtonDown)
	if s := k.String(); s != "B+Down" {
		t.Errorf("String() = %q, want B+Down", s)
	}
	back, err := ParseKeys(k.String())
	if err != nil || back != k {
		t.Errorf("ParseKeys(String()) = 0x%X, %v; want 0x%X", back, err, k)
	}
}

func TestButtonsCoverMask(t *testing.T) {
	var all KeyState
	for _, b := range Buttons {
		all |= 1 << uint(b.ID)
	}
	if all != KeyMask {
		t.Errorf("buttons cover 0x%03X, want 0x%03X", all, KeyMask)
	}
}

func TestFramebufferSize(t *testing.T) {
	info := SystemInfo{ScreenWidth: 240, ScreenHeight: 160}
	if info.FramebufferSize() != 38400 {
		t.Errorf("FramebufferSize() = %d, want 38400", info.FramebufferSize())
	}
}
