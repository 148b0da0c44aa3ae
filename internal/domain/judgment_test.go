package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlacement(t *testing.T) {
	tests := []struct {
		name       string
		aPlace     int
		wantShownA string
		wantShownB string
		remapA     string
		remapB     string
	}{
		{"answer A shown first", 0, "first", "second", LabelA, LabelB},
		{"answers swapped", 1, "second", "first", LabelB, LabelA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Placement{APlace: tt.aPlace}

			shownA, shownB := p.Display("first", "second")

			assert.Equal(t, tt.wantShownA, shownA)
			assert.Equal(t, tt.wantShownB, shownB)
			assert.Equal(t, tt.remapA, p.Remap(LabelA))
			assert.Equal(t, tt.remapB, p.Remap(LabelB))
		})
	}
}

func TestPlacement_RemapRoundTrip(t *testing.T) {
	// A judge that always prefers the text "first" must map back to the
	// original identity of "first" regardless of placement.
	for _, aPlace := range []int{0, 1} {
		p := Placement{APlace: aPlace}
		shownA, _ := p.Display("first", "second")

		label := LabelB
		if shownA == "first" {
			label = LabelA
		}

		assert.Equal(t, LabelA, p.Remap(label), "aPlace=%d", aPlace)
	}
}
