// Package quantize provides scalar conversions between 32-bit floats and
// compact fixed-point or half-precision encodings, for shrinking vertex
// attributes before encoding or upload.
//
// All functions are pure and stateless. Bit widths outside the documented
// ranges give meaningless results; configuration-level validation lives in
// internal/config.
package quantize

import "github.com/chewxy/math32"

// Unorm quantizes a float in [0..1] into an N-bit fixed point unorm value,
// rounding to nearest and saturating outside the range. The reconstruction
// function is q / (2^N-1). Valid bits range: 1..24.
//
// Maximum reconstruction error: 1/2^(N+1).
func Unorm(v float32, bits int) int32 {
	scale := float32(int32(1)<<bits - 1)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int32(v*scale + 0.5)
}

// UnormToFloat reverses Unorm.
func UnormToFloat(q int32, bits int) float32 {
	scale := float32(int32(1)<<bits - 1)
	return float32(q) / scale
}

// Snorm quantizes a float in [-1..1] into an N-bit fixed point snorm value,
// rounding to nearest and saturating outside the range. The reconstruction
// function is q / (2^(N-1)-1). Valid bits range: 2..24.
//
// Maximum reconstruction error: 1/2^N.
func Snorm(v float32, bits int) int32 {
	scale := float32(int32(1)<<(bits-1) - 1)
	round := float32(0.5)
	if v < 0 {
		round = -0.5
	}
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return int32(v*scale + round)
}

// SnormToFloat reverses Snorm.
func SnormToFloat(q int32, bits int) float32 {
	scale := float32(int32(1)<<(bits-1) - 1)
	return float32(q) / scale
}

// Half quantizes a float into an IEEE-754 half-precision value.
//
// Generates +-inf on overflow, converts NaN to qNaN, flushes denormals to
// zero and rounds to nearest. Representable magnitude range is
// [6e-5; 65504] with a maximum relative error of 5e-4.
func Half(v float32) uint16 {
	ui := math32.Float32bits(v)
	s := int32((ui >> 16) & 0x8000)
	em := int32(ui & 0x7fffffff)

	// bias exponent and round to nearest; 112 is relative exponent bias (127-15)
	h := (em - (112 << 23) + (1 << 12)) >> 13

	// underflow: flush to zero; 113 encodes exponent -14
	if em < (113 << 23) {
		h = 0
	}

	// overflow: infinity; 143 encodes exponent 16
	if em >= (143 << 23) {
		h = 0x7c00
	}

	// NaN; all NaN variants collapse to qNaN
	if em > (255 << 23) {
		h = 0x7e00
	}

	return uint16(s | h)
}

// HalfToFloat reverses Half, preserving Inf/NaN and flushing denormals to
// zero.
func HalfToFloat(h uint16) float32 {
	s := uint32(h&0x8000) << 16
	em := uint32(h & 0x7fff)

	// bias exponent and pad mantissa with zeros; 112 is relative exponent bias (127-15)
	r := (em + (112 << 10)) << 13

	// denormal: flush to zero
	if em < (1 << 10) {
		r = 0
	}

	// infinity/NaN; exponent 31 maps to 255 by applying the bias a second time
	if em >= (31 << 10) {
		r += 112 << 23
	}

	return math32.Float32frombits(s | r)
}

// Float quantizes a float to a value with only N significant mantissa bits,
// rounding to nearest. Generates +-inf on overflow, preserves NaN and
// flushes denormals to zero. Valid bits range: 1..23.
func Float(v float32, bits int) float32 {
	ui := math32.Float32bits(v)

	mask := uint32(1)<<(23-uint(bits)) - 1
	round := (uint32(1) << (23 - uint(bits))) >> 1

	e := ui & 0x7f800000
	rui := (ui + round) &^ mask

	// leave inf/nan alone so rounding can't overflow nan into -0
	if e != 0x7f800000 {
		ui = rui
	}

	// flush denormals to zero
	if e == 0 {
		ui = 0
	}

	return math32.Float32frombits(ui)
}

// RcpSafe returns 1/v, or 0 when v is zero (of either sign).
func RcpSafe(v float32) float32 {
	if math32.Abs(v) == 0 {
		return 0
	}
	return 1 / v
}
