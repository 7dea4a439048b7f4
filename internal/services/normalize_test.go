package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMarketName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Raipur", "Raipur"},
		{"parenthetical suffix", "Raigarh(Chhattisgarh)", "Raigarh"},
		{"noise token", "Durg APMC", "Durg"},
		{"suffix and tokens", "  Bilaspur Veg APMC (F&V) ", "Bilaspur"},
		{"case preserved", "bhopal", "bhopal"},
		{"inner whitespace collapsed", "Navi   Mumbai\tAPMC", "Navi Mumbai"},
		{"token inside a word kept", "Vegetable Market", "Vegetable Market"},
		{"only noise", "APMC (x)", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMarketName(tt.in))
		})
	}
}

func TestNormalizeMarketName_Idempotent(t *testing.T) {
	inputs := []string{
		"Raipur (Veg) APMC",
		"APMC APMC Veg",
		"Jaipur (F&V) (Grain)",
		"  Kota   Veg ",
		"Indore((",
		"Rohtak APMCVeg",
		"",
	}

	for _, in := range inputs {
		once := NormalizeMarketName(in)
		assert.Equal(t, once, NormalizeMarketName(once), "input %q", in)
	}
}

func TestMarketNormalizer_CustomTokens(t *testing.T) {
	n := NewMarketNormalizer([]string{"Mandi", " ", "Yard"})

	assert.Equal(t, "Karnal APMC", n.Normalize("Karnal Mandi APMC"))
	assert.Equal(t, "Sirsa", n.Normalize("Sirsa Yard"))
}
