package language

import "testing"

func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	d := NewDetector(0)

	tests := []struct {
		name   string
		sample string
		want   string
	}{
		{
			name:   "english prose",
			sample: "The quick brown fox jumps over the lazy dog while the farmer watches from the porch of the old house.",
			want:   "en",
		},
		{
			name:   "french prose",
			sample: "Le renard brun rapide saute par-dessus le chien paresseux pendant que le fermier regarde depuis le porche de la vieille maison.",
			want:   "fr",
		},
		{
			name:   "short sample defaults to english",
			sample: "Hola",
			want:   "en",
		},
		{
			name:   "empty sample defaults to english",
			sample: "",
			want:   "en",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := d.Detect(tt.sample); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"en", "en", true},
		{"en-GB", "en", true},
		{"fr-CA", "fr", true},
		{"", "", false},
		{"!!", "", false},
	}
	for _, tt := range tests {
		got, ok := BaseOf(tt.tag)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("BaseOf(%q) = (%q, %v), want (%q, %v)", tt.tag, got, ok, tt.want, tt.wantOK)
		}
	}
}

type fixedOracle string

func (f fixedOracle) Detect(string) string { return string(f) }

func TestIsEnglish(t *testing.T) {
	t.Parallel()

	if !IsEnglish(fixedOracle("fr"), "en-US", "") {
		t.Error("declared english tag should win over oracle")
	}
	if IsEnglish(fixedOracle("en"), "de", "") {
		t.Error("declared german tag should win over oracle")
	}
	if IsEnglish(fixedOracle("es"), "", "texto") {
		t.Error("oracle answer ignored without a tag")
	}
	if !IsEnglish(fixedOracle("en"), "", "text") {
		t.Error("oracle english answer ignored")
	}
}
