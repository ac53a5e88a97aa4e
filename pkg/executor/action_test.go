package executor

import "testing"

func TestNewReport(t *testing.T) {
	good := Outcome{OK: true}
	bad := Outcome{OK: false}

	if r := NewReport([]Outcome{good, good}, 2); !r.OK {
		t.Error("full sequence of ok outcomes must aggregate to OK")
	}
	if r := NewReport([]Outcome{good, bad}, 2); r.OK {
		t.Error("a failed outcome must clear OK")
	}
	// An emergency stop leaves only ok outcomes but fewer of them than
	// the sequence requested.
	if r := NewReport([]Outcome{good}, 3); r.OK {
		t.Error("a truncated sequence must not aggregate to OK")
	}
}

func TestActionOpcode(t *testing.T) {
	tests := []struct {
		code string
		want uint32
		ok   bool
	}{
		{"0x21010202", 0x21010202, true},
		{"21010202", 0x21010202, true},
		{"0X21020C0E", 0x21020C0E, true},
		{" 0x21010507 ", 0x21010507, true},
		{"", 0, false},
		{"0x", 0, false},
		{"zzz", 0, false},
		{"0x1FFFFFFFF", 0, false}, // overflows 32 bits
	}
	for _, tt := range tests {
		got, err := Action{Code: tt.code}.Opcode()
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("Opcode(%q) = %#x, %v; want %#x", tt.code, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("Opcode(%q) succeeded, want error", tt.code)
		}
	}
}
