package vc1

import (
	"bytes"
	"testing"

	"github.com/ausocean/vcore/bits"
)

func TestReadFieldTypeDecodesAllEightTags(t *testing.T) {
	for tag := 0; tag < 8; tag++ {
		br := bits.NewBitReader(bytes.NewReader([]byte{byte(tag << 5)}))
		pair, err := ReadFieldType(br)
		if err != nil {
			t.Fatalf("tag %d: %v", tag, err)
		}
		if pair != (FieldPair{fieldTypeTable[tag][0], fieldTypeTable[tag][1]}) {
			t.Errorf("tag %d: got %+v", tag, pair)
		}
	}
}

func TestBIPictureHasNoMotionVectors(t *testing.T) {
	if !PictureBI.IsBWithoutMVs() {
		t.Errorf("PictureBI.IsBWithoutMVs() = false, want true")
	}
	for _, p := range []PictureType{PictureI, PictureP, PictureB} {
		if p.IsBWithoutMVs() {
			t.Errorf("%s.IsBWithoutMVs() = true, want false", p)
		}
	}
}

func TestLUTRotationAdvance(t *testing.T) {
	var r LUTRotation
	r.Current = BuildIntensityCompLUT(64, 0)
	r.Next = BuildIntensityCompLUT(32, 10)

	prevCurrent := r.Current
	prevNext := r.Next
	r.Advance()

	if r.Last != prevCurrent {
		t.Errorf("Advance: Last should be the old Current")
	}
	if r.Current != prevNext {
		t.Errorf("Advance: Current should be the old Next")
	}
	if r.Next == nil || r.Next == prevNext {
		t.Errorf("Advance: Next should be a fresh table")
	}
}

func TestBuildIntensityCompLUTIdentityAtUnityScale(t *testing.T) {
	lut := BuildIntensityCompLUT(64, 0) // lumscale=64 means (i*64)>>6 == i
	for i := 0; i < 256; i++ {
		if lut.Luma[i] != uint8(i) {
			t.Errorf("Luma[%d] = %d, want %d", i, lut.Luma[i], i)
		}
	}
}

func TestValidateReferenceSlotsRejectsDuplicate(t *testing.T) {
	if err := ValidateReferenceSlots(2, 2); err == nil {
		t.Errorf("ValidateReferenceSlots(2,2) = nil, want error")
	}
	if err := ValidateReferenceSlots(1, 2); err != nil {
		t.Errorf("ValidateReferenceSlots(1,2) = %v, want nil", err)
	}
}
