package review

import (
	"math"
	"testing"
)

func TestNextLevel(t *testing.T) {
	tests := []struct {
		name  string
		level int
		days  float64
		want  int
	}{
		{"new card reaches level 1", 0, math.Inf(1), 1},
		{"failed card reaches level 1", 0, 0, 1},
		{"negative level is treated as new", -3, 5, 1},
		{"due card doubles", 2, 2, 4},
		{"late card doubles", 2, 9, 4},
		{"early pass holds the level", 4, 1.5, 4},
		{"never reviewed doubles", 8, math.Inf(1), 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextLevel(tt.level, tt.days); got != tt.want {
				t.Errorf("NextLevel(%d, %v) = %d, want %d", tt.level, tt.days, got, tt.want)
			}
		})
	}
}
