package dsp

// OverlapState retains the second half of the previous IQ block per
// channel to implement 50% overlap-add between successive FFT windows,
// plus the previous magnitude array for optional temporal blending.
type OverlapState struct {
	fftSize int

	TailCh1 []complex128 // length fftSize/2
	TailCh2 []complex128

	PrevMagCh1 []uint8
	PrevMagCh2 []uint8

	HasPrev bool
}

// NewOverlapState allocates state for the given FFT size.
func NewOverlapState(fftSize int) *OverlapState {
	half := fftSize / 2
	return &OverlapState{
		fftSize:    fftSize,
		TailCh1:    make([]complex128, half),
		TailCh2:    make([]complex128, half),
		PrevMagCh1: make([]uint8, fftSize),
		PrevMagCh2: make([]uint8, fftSize),
	}
}

// applyOverlap writes the retained tail followed by newBlock (length
// fftSize/2) into dst, forming a full fftSize-length window; it then
// replaces the retained tail with newBlock (the second half of this
// window) for the next round. dst must have length fftSize.
func applyOverlap(dst []complex128, tail []complex128, newBlock []complex128, fftSize int) {
	half := fftSize / 2
	copy(dst[:half], tail)
	copy(dst[half:], newBlock)
	copy(tail, newBlock[len(newBlock)-half:])
}

// ApplyCh1 overlaps newBlock (length fftSize/2) onto dst (length
// fftSize) for channel 1, retaining the new tail.
func (o *OverlapState) ApplyCh1(dst []complex128, newBlock []complex128) {
	applyOverlap(dst, o.TailCh1, newBlock, o.fftSize)
}

// ApplyCh2 is the channel-2 counterpart of ApplyCh1.
func (o *OverlapState) ApplyCh2(dst []complex128, newBlock []complex128) {
	applyOverlap(dst, o.TailCh2, newBlock, o.fftSize)
}
