package quantize

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestUnorm(t *testing.T) {
	cases := []struct {
		v    float32
		bits int
		want int32
	}{
		{0, 8, 0},
		{1, 8, 255},
		{0.5, 8, 128},
		{-0.25, 8, 0},  // saturates low
		{1.5, 8, 255},  // saturates high
		{1, 10, 1023},
		{1, 16, 65535},
	}
	for _, c := range cases {
		if got := Unorm(c.v, c.bits); got != c.want {
			t.Errorf("Unorm(%v, %d) = %d, want %d", c.v, c.bits, got, c.want)
		}
	}
}

func TestSnorm(t *testing.T) {
	cases := []struct {
		v    float32
		bits int
		want int32
	}{
		{0, 8, 0},
		{1, 8, 127},
		{-1, 8, -127},
		{2, 8, 127},    // saturates high
		{-2, 8, -127},  // saturates low
		{1, 16, 32767},
		{-1, 16, -32767},
	}
	for _, c := range cases {
		if got := Snorm(c.v, c.bits); got != c.want {
			t.Errorf("Snorm(%v, %d) = %d, want %d", c.v, c.bits, got, c.want)
		}
	}
}

func TestUnormRoundTripError(t *testing.T) {
	// Max reconstruction error is 1/2^(bits+1).
	for bits := 4; bits <= 16; bits += 4 {
		maxErr := 1 / float32(int32(2)<<bits)
		for i := 0; i <= 100; i++ {
			v := float32(i) / 100
			r := UnormToFloat(Unorm(v, bits), bits)
			if math32.Abs(r-v) > maxErr+1e-7 {
				t.Fatalf("bits=%d v=%v reconstructed %v, error above %v", bits, v, r, maxErr)
			}
		}
	}
}

func TestHalfRoundTrip(t *testing.T) {
	// Every normal half value must survive a decode/encode cycle exactly.
	for i := 0; i < 0x10000; i++ {
		h := uint16(i)
		f := HalfToFloat(h)
		if !isNormalHalf(h) {
			continue
		}
		if q := Half(f); q != h {
			t.Fatalf("half round trip failed for %#04x: %v -> %#04x", h, f, q)
		}
	}
}

// isNormalHalf reports whether h is a normal (non-zero, non-denormal,
// finite) half-precision value.
func isNormalHalf(h uint16) bool {
	em := h & 0x7fff
	return em >= (1<<10) && em < (31<<10)
}

func TestHalfSpecials(t *testing.T) {
	inf := math32.Inf(1)
	if got := Half(inf); got != 0x7c00 {
		t.Errorf("Half(+inf) = %#04x, want 0x7c00", got)
	}
	if got := Half(math32.Inf(-1)); got != 0xfc00 {
		t.Errorf("Half(-inf) = %#04x, want 0xfc00", got)
	}
	if got := Half(math32.NaN()); got != 0x7e00 {
		t.Errorf("Half(NaN) = %#04x, want 0x7e00", got)
	}
	if got := Half(1e9); got != 0x7c00 {
		t.Errorf("Half(1e9) = %#04x, want overflow to +inf", got)
	}
	if got := Half(1e-8); got != 0 {
		t.Errorf("Half(1e-8) = %#04x, want flush to zero", got)
	}
	if !math32.IsInf(HalfToFloat(0x7c00), 1) {
		t.Error("HalfToFloat(0x7c00) should be +inf")
	}
	if !math32.IsNaN(HalfToFloat(0x7e00)) {
		t.Error("HalfToFloat(0x7e00) should be NaN")
	}
}

func TestFloat(t *testing.T) {
	// Truncating to 10 mantissa bits keeps values within relative 2^-10.
	for _, v := range []float32{1, 3.14159, 1234.56, -0.001} {
		q := Float(v, 10)
		rel := math32.Abs(q-v) / math32.Abs(v)
		if rel > 1.0/1024 {
			t.Errorf("Float(%v, 10) = %v, relative error %v too large", v, q, rel)
		}
	}
	if !math32.IsNaN(Float(math32.NaN(), 10)) {
		t.Error("Float must preserve NaN")
	}
	if !math32.IsInf(Float(math32.Inf(1), 10), 1) {
		t.Error("Float must preserve +inf")
	}
}

func TestRcpSafe(t *testing.T) {
	if got := RcpSafe(2); got != 0.5 {
		t.Errorf("RcpSafe(2) = %v, want 0.5", got)
	}
	if got := RcpSafe(0); got != 0 {
		t.Errorf("RcpSafe(0) = %v, want 0", got)
	}
	if got := RcpSafe(math32.Copysign(0, -1)); got != 0 {
		t.Errorf("RcpSafe(-0) = %v, want 0", got)
	}
}
