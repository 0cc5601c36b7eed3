package wire

import (
	"bytes"
	"testing"
)

func TestVarUintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1, 1 << 40}
	for _, v := range cases {
		w := NewWriter()
		w.WriteVarUint(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadVarUint()
		if err != nil {
			t.Fatalf("ReadVarUint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestBytesAndStringRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteString("memori")
	r := NewReader(w.Bytes())
	b, err := r.ReadBytes()
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("ReadBytes: %v %v", b, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "memori" {
		t.Fatalf("ReadString: %q %v", s, err)
	}
}

func TestShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x80})
	if _, err := r.ReadVarUint(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestBLEFrameTrailingZerosIgnored(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(42)
	framed, err := WriteBLEFrame(w.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(framed) != BLECharSize {
		t.Fatalf("expected %d bytes, got %d", BLECharSize, len(framed))
	}
	r := NewReader(framed)
	got, err := r.ReadUint32()
	if err != nil || got != 42 {
		t.Fatalf("decode: %d %v", got, err)
	}
}

func TestOversizeStreamFrameConsumesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x0b, 0xb8}) // declared length 3000
	if err := WriteStreamFrame(&buf, []byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}

	_, err := ReadStreamFrame(&buf)
	if err != ErrOversizeFrame {
		t.Fatalf("expected ErrOversizeFrame, got %v", err)
	}
	// Only the 4 header bytes were drained; the next well-formed frame is
	// still readable.
	payload, err := ReadStreamFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected payload after skipped frame: %v", payload)
	}
}

func TestZeroLengthStreamFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStreamFrame(&buf, nil); err != nil {
		t.Fatal(err)
	}
	payload, err := ReadStreamFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestWriteBLEFrameTooLarge(t *testing.T) {
	_, err := WriteBLEFrame(make([]byte, BLECharSize+1))
	if err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
