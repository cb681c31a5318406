package block

import (
	"testing"

	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/prob"
)

func TestDecodeCoeffBlockEOBZeroProducesNoCoefficients(t *testing.T) {
	e := NewEngine(dsp.Reference(), nil, 64, 64)
	probCtx := prob.Default()
	var counts prob.Counts
	// All-zero stream: eobBit resolves to 0 at any in-range probability.
	rng, err := tileDecoder(allZeroTileData())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	coef, eob, nonzero, err := e.decodeCoeffBlock(rng, probCtx, &counts, planeY, 0, dsp.Tx4x4, 0, 40)
	if err != nil {
		t.Fatalf("decodeCoeffBlock: %v", err)
	}
	if coef != nil || eob != 0 || nonzero {
		t.Errorf("decodeCoeffBlock on EOB=0 stream = (%v,%d,%v), want (nil,0,false)", coef, eob, nonzero)
	}
}

func TestDequantHalvesFor32x32(t *testing.T) {
	v16 := dequant(10, dsp.Tx16x16, 4)
	v32 := dequant(10, dsp.Tx32x32, 4)
	if v32 != v16/2 {
		t.Errorf("dequant(Tx32x32) = %d, want half of Tx16x16's %d", v32, v16)
	}
}

func TestDequantFloorsBaseQAtOne(t *testing.T) {
	if got := dequant(3, dsp.Tx8x8, 0); got != 3 {
		t.Errorf("dequant with baseQ=0 = %d, want 3 (baseQ floored to 1)", got)
	}
}

func TestTxUnitsMatchesTransformDimension(t *testing.T) {
	cases := []struct {
		tx        dsp.TxSize
		units, px int
	}{
		{dsp.Tx4x4, 1, 4},
		{dsp.Tx8x8, 2, 8},
		{dsp.Tx16x16, 4, 16},
		{dsp.Tx32x32, 8, 32},
	}
	for _, c := range cases {
		units, px := txUnits(c.tx)
		if units != c.units || px != c.px {
			t.Errorf("txUnits(%v) = (%d,%d), want (%d,%d)", c.tx, units, px, c.units, c.px)
		}
	}
}
