package units

import (
	"math"
	"strconv"
	"testing"
)

func TestFormatHeight(t *testing.T) {
	tests := []struct {
		value string
		unit  Unit
		want  string
	}{
		{"165", Centimeters, `5'5" (165 cm)`},
		{"165.4", Centimeters, `5'5" (165 cm)`},
		{"65", Inches, `5'5" (165 cm)`},
		{"72", Inches, `6'0" (183 cm)`},
		{"", Centimeters, ""},
		{"tall", Centimeters, ""},
		{"-3", Centimeters, ""},
	}
	for _, tt := range tests {
		if got := Format(tt.value, tt.unit); got != tt.want {
			t.Errorf("Format(%q, %s) = %q, want %q", tt.value, tt.unit, got, tt.want)
		}
	}
}

func TestFormatWeight(t *testing.T) {
	if got := Format("60", Kilograms); got != "60 kg (132.28 lb)" {
		t.Errorf("Format(60 kg) = %q", got)
	}
	if got := Format("132.28", Pounds); got != "60 kg (132.28 lb)" {
		t.Errorf("Format(132.28 lb) = %q", got)
	}
	if got := Format("abc", Pounds); got != "" {
		t.Errorf("Format(abc) = %q, want empty", got)
	}
}

func TestToCanonicalRejectsUnknownUnit(t *testing.T) {
	if _, ok := ToCanonical("10", Unit("stone")); ok {
		t.Fatal("expected unknown unit to be unparseable")
	}
}

func TestRoundTripThroughFormat(t *testing.T) {
	for _, u := range []Unit{Centimeters, Inches, Kilograms, Pounds} {
		for v := 20.0; v <= 250; v += 0.7 {
			raw := strconv.FormatFloat(v, 'f', 1, 64)
			want, ok := ToCanonical(raw, u)
			if !ok {
				t.Fatalf("ToCanonical(%q, %s) not ok", raw, u)
			}
			got, ok := ToCanonical(Format(raw, u), u)
			if !ok {
				t.Fatalf("ToCanonical(Format(%q, %s)) not ok", raw, u)
			}
			if got != want {
				t.Fatalf("round trip %q %s: got %v, want %v", raw, u, got, want)
			}
		}
	}
}

func TestConversionDriftIsBounded(t *testing.T) {
	for cm := 50.0; cm <= 230; cm++ {
		once := InToCm(CmToIn(cm))
		twice := InToCm(CmToIn(once))
		if math.Abs(once-cm) > 1 || math.Abs(twice-once) > 1 {
			t.Fatalf("cm drift too large: %v -> %v -> %v", cm, once, twice)
		}
	}
	for kg := 30.0; kg <= 200; kg += 0.5 {
		once := LbToKg(KgToLb(kg))
		twice := LbToKg(KgToLb(once))
		if math.Abs(once-kg) > 0.1 || math.Abs(twice-once) > 0.1 {
			t.Fatalf("kg drift too large: %v -> %v -> %v", kg, once, twice)
		}
	}
}

func TestParseHeight(t *testing.T) {
	tests := []struct {
		in       string
		wantVal  string
		wantUnit Unit
		wantOK   bool
	}{
		{`5'5" (165 cm)`, "165", Centimeters, true},
		{`5'5"`, "65", Inches, true},
		{"6 ft", "72", Inches, true},
		{"170", "170", Centimeters, true},
		{"", "", Centimeters, false},
		{"unknown", "", Centimeters, false},
	}
	for _, tt := range tests {
		v, u, ok := ParseHeight(tt.in)
		if v != tt.wantVal || u != tt.wantUnit || ok != tt.wantOK {
			t.Errorf("ParseHeight(%q) = (%q, %s, %v), want (%q, %s, %v)", tt.in, v, u, ok, tt.wantVal, tt.wantUnit, tt.wantOK)
		}
	}
}

func TestParseWeight(t *testing.T) {
	v, u, ok := ParseWeight("60 kg (132.28 lb)")
	if !ok || v != "60" || u != Kilograms {
		t.Errorf("ParseWeight kg = (%q, %s, %v)", v, u, ok)
	}
	v, u, ok = ParseWeight("150 lbs")
	if !ok || v != "150" || u != Pounds {
		t.Errorf("ParseWeight lb = (%q, %s, %v)", v, u, ok)
	}
	if _, _, ok := ParseWeight("heavy"); ok {
		t.Error("expected unparseable weight")
	}
}
