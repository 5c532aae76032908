package tokencount_test

import (
	"testing"

	"github.com/tenlib/tenlib/tokencount"
)

func TestSimple_Estimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single word", text: "hola", want: 1},
		{name: "ten words", text: "uno dos tres cuatro cinco seis siete ocho nueve diez", want: 13},
	}

	var e tokencount.Simple
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTiktoken_EstimateMonotonic(t *testing.T) {
	tk, err := tokencount.NewTiktoken()
	if err != nil {
		t.Fatalf("NewTiktoken() error = %v", err)
	}

	short := tk.Estimate("Hola mundo.")
	long := tk.Estimate(
		"Hola mundo, este es un fragmento considerablemente mas largo que el anterior para la prueba.",
	)
	if short == 0 || long == 0 {
		t.Fatalf("expected non-zero estimates, got short=%d long=%d", short, long)
	}
	if long <= short {
		t.Errorf("expected longer text to estimate more tokens: short=%d long=%d", short, long)
	}
}
