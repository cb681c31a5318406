package vp9

import (
	"encoding/binary"
	"testing"

	"github.com/ausocean/vcore/frame"
)

func TestSplitTilesSingleTileConsumesAllData(t *testing.T) {
	hdr := &frame.Header{CompressedHeaderSize: 3, TileCols: 0, TileRows: 0}
	payload := append([]byte{0, 0, 0}, []byte("tiledata")...)

	tiles, err := splitTiles(hdr, payload)
	if err != nil {
		t.Fatalf("splitTiles: %v", err)
	}
	if len(tiles) != 1 {
		t.Fatalf("len(tiles) = %d, want 1", len(tiles))
	}
	if string(tiles[0].Data) != "tiledata" {
		t.Errorf("tiles[0].Data = %q, want %q", tiles[0].Data, "tiledata")
	}
}

func TestSplitTilesReadsSizePrefixForAllButLastTile(t *testing.T) {
	hdr := &frame.Header{CompressedHeaderSize: 0, TileCols: 1, TileRows: 0} // 2 columns, 1 row
	first := []byte("AB")
	second := []byte("XYZ")

	var payload []byte
	sizeBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(sizeBuf, uint32(len(first)))
	payload = append(payload, sizeBuf...)
	payload = append(payload, first...)
	payload = append(payload, second...) // last tile: no size prefix

	tiles, err := splitTiles(hdr, payload)
	if err != nil {
		t.Fatalf("splitTiles: %v", err)
	}
	if len(tiles) != 2 {
		t.Fatalf("len(tiles) = %d, want 2", len(tiles))
	}
	if string(tiles[0].Data) != "AB" || tiles[0].Col != 0 {
		t.Errorf("tiles[0] = %+v, want Col=0 Data=AB", tiles[0])
	}
	if string(tiles[1].Data) != "XYZ" || tiles[1].Col != 1 {
		t.Errorf("tiles[1] = %+v, want Col=1 Data=XYZ", tiles[1])
	}
}

func TestSplitTilesRejectsTruncatedSizePrefix(t *testing.T) {
	hdr := &frame.Header{CompressedHeaderSize: 0, TileCols: 1, TileRows: 0}
	if _, err := splitTiles(hdr, []byte{0, 0}); err == nil {
		t.Errorf("splitTiles on truncated size prefix: err = nil, want error")
	}
}

func TestSplitTilesRejectsOversizedTile(t *testing.T) {
	hdr := &frame.Header{CompressedHeaderSize: 0, TileCols: 1, TileRows: 0}
	sizeBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(sizeBuf, 1000)
	payload := append(sizeBuf, []byte("short")...)

	if _, err := splitTiles(hdr, payload); err == nil {
		t.Errorf("splitTiles with oversized declared tile size: err = nil, want error")
	}
}
