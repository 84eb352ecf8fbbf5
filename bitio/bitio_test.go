package bitio

import "testing"

func TestBinaryDot(t *testing.T) {
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte{0b0000_0011}, []byte{0b0000_0001}, 1},
		{[]byte{0b0000_0011}, []byte{0b0000_0000}, 0},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, []byte{1, 0, 0, 0, 0, 0, 0, 0, 1}, 0},
	}
	for i, c := range cases {
		got := BinaryDot(c.a, c.b)
		if got != c.want {
			t.Errorf("case %d: got %d want %d", i, got, c.want)
		}
	}
}

func TestReadBinaryRow(t *testing.T) {
	// src: bits 0..11 = 1010 1100 1011 (LSB-first per byte)
	src := []byte{0b0011_0101, 0b0000_1101}
	dst := make([]byte, 2)
	ReadBinaryRow(dst, src, 5, 3)
	for i := 0; i < 5; i++ {
		got := GetBit(dst, i)
		want := GetBit(src, 3+i)
		if got != want {
			t.Errorf("bit %d: got %d want %d", i, got, want)
		}
	}
}

func TestSumBitsAlongLastDim(t *testing.T) {
	// two rows of 3 bits: [1,1,0] -> parity 0 ; [1,0,0] -> parity 1
	src := []byte{0b0000_0011, 0b0000_0001}
	dst := make([]byte, 1)
	SumBitsAlongLastDim(dst, packRows([][]int{{1, 1, 0}, {1, 0, 0}}), 2, 3)
	if GetBit(dst, 0) != 0 {
		t.Errorf("row 0: expected parity 0")
	}
	if GetBit(dst, 1) != 1 {
		t.Errorf("row 1: expected parity 1")
	}
	_ = src
}

func packRows(rows [][]int) []byte {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	buf := make([]byte, (n+7)/8)
	i := 0
	for _, r := range rows {
		for _, b := range r {
			SetBit(buf, i, b)
			i++
		}
	}
	return buf
}

func TestXORParity(t *testing.T) {
	if XORParity([]byte{0b11}) != 0 {
		t.Error("expected parity 0 for 0b11")
	}
	if XORParity([]byte{0b01}) != 1 {
		t.Error("expected parity 1 for 0b01")
	}
}
