// Package analyser turns the live audio signal into byte frequency frames.
package analyser

import (
	"math"
	"sync"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Decibel range mapped onto [0, 255]
const (
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
	DefaultFFTSize     = 2048
)

// Source supplies the most recent mono samples of the live signal
type Source interface {
	Samples(n int) []float64
}

// Sampler pulls one frequency frame from a Source per call
type Sampler struct {
	mu     sync.Mutex
	src    Source
	size   int
	fft    *fourier.FFT
	coeffs []complex128
	minDB  float64
	maxDB  float64
}

// NewSampler creates a sampler producing fftSize/2 bins. fftSize must be a
// power of two; other values are rounded up.
func NewSampler(src Source, fftSize int) *Sampler {
	size := nextPow2(fftSize)
	return &Sampler{
		src:    src,
		size:   size,
		fft:    fourier.NewFFT(size),
		coeffs: make([]complex128, size/2+1),
		minDB:  DefaultMinDecibels,
		maxDB:  DefaultMaxDecibels,
	}
}

// SetSource replaces the signal source. A nil source yields silent frames.
func (s *Sampler) SetSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
}

// Bins returns the number of bytes in every frame
func (s *Sampler) Bins() int {
	return s.size / 2
}

// Sample returns the current frame: one byte per bin, amplitude in dB
// scaled linearly from [minDB, maxDB] to [0, 255]
func (s *Sampler) Sample() []byte {
	frame := make([]byte, s.Bins())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		return frame
	}

	samples := s.src.Samples(s.size)
	if len(samples) == 0 || silent(samples) {
		return frame
	}

	// Left-pad short reads with silence
	seq := make([]float64, s.size)
	copy(seq[s.size-len(samples):], samples)
	window.Blackman(seq)

	s.coeffs = s.fft.Coefficients(s.coeffs, seq)

	scale := 255 / (s.maxDB - s.minDB)
	n := float64(s.size)
	for i := range frame {
		c := s.coeffs[i]
		mag := math.Hypot(real(c), imag(c)) / n
		if mag == 0 {
			continue
		}
		db := 20 * math.Log10(mag)
		frame[i] = byte(lo.Clamp((db-s.minDB)*scale, 0, 255))
	}

	return frame
}

func silent(samples []float64) bool {
	for _, v := range samples {
		if v != 0 {
			return false
		}
	}
	return true
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
