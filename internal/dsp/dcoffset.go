package dsp

// dcAlpha is the EWMA smoothing factor for DC offset tracking,
// α≈2^-10 per spec.md §4.3.
const dcAlpha = 1.0 / 1024.0

// DCOffsetState holds per-channel EWMA DC estimates for both
// receivers, reset whenever the center frequency changes (analog DC
// shifts with the LO).
type DCOffsetState struct {
	MeanICh1, MeanQCh1 float64
	MeanICh2, MeanQCh2 float64

	lastFreq            uint64
	haveLastFreq        bool
	ConvergenceCounter int
}

// Reset zeros the EWMA means and convergence counter.
func (d *DCOffsetState) Reset() {
	d.MeanICh1, d.MeanQCh1 = 0, 0
	d.MeanICh2, d.MeanQCh2 = 0, 0
	d.ConvergenceCounter = 0
}

// MaybeResetOnFreqChange resets the DC state if freq differs from the
// last frequency seen, and always records freq as the new baseline.
// Returns true if a reset occurred.
func (d *DCOffsetState) MaybeResetOnFreqChange(freq uint64) bool {
	changed := d.haveLastFreq && freq != d.lastFreq
	if changed {
		d.Reset()
	}
	d.lastFreq = freq
	d.haveLastFreq = true
	return changed
}

// updateChannelDC advances the EWMA means for one channel by one new (i, q)
// sample and returns the corrected (i, q).
func updateChannelDC(meanI, meanQ *float64, i, q float64) (float64, float64) {
	*meanI += dcAlpha * (i - *meanI)
	*meanQ += dcAlpha * (q - *meanQ)
	return i - *meanI, q - *meanQ
}

// CorrectCh1 subtracts the running DC mean from one ch1 IQ sample,
// updating the EWMA state and convergence counter.
func (d *DCOffsetState) CorrectCh1(i, q float64) (float64, float64) {
	d.ConvergenceCounter++
	return updateChannelDC(&d.MeanICh1, &d.MeanQCh1, i, q)
}

// CorrectCh2 subtracts the running DC mean from one ch2 IQ sample,
// updating the EWMA state.
func (d *DCOffsetState) CorrectCh2(i, q float64) (float64, float64) {
	return updateChannelDC(&d.MeanICh2, &d.MeanQCh2, i, q)
}
