package radio

// AGC constants, per bladerf_sensor.h's AGC_TARGET_LEVEL/AGC_HYSTERESIS
// and the decrease/increase hold counts in update_agc.
const (
	agcTargetLevel    = 200
	agcHysteresis     = 20
	agcDecreaseHold   = 5
	agcIncreaseHold   = 20
	agcGainStepDown   = 3
	agcGainStepUp     = 1
	agcMaxGainDb      = 60
)

// AGC tracks peak signal level across both channels and nudges gain
// up or down with hysteresis to avoid oscillation, ported from
// AGCState/update_agc. It does not apply the gain itself; callers
// read GainRX1/GainRX2 after Update and push them through
// control.Surface.SetGains when Update returns true.
type AGC struct {
	Enabled           bool
	CurrentLevel      uint8
	GainRX1, GainRX2  uint32
	hysteresisCounter int
}

// NewAGC returns a disabled AGC seeded with the given initial gains,
// per init_agc.
func NewAGC(initialGainRX1, initialGainRX2 uint32) *AGC {
	return &AGC{GainRX1: initialGainRX1, GainRX2: initialGainRX2}
}

// Update inspects the peak magnitude across both channels and adjusts
// GainRX1/GainRX2 when it has drifted far enough outside the target
// band for long enough, per update_agc. Returns true if gains changed.
func (a *AGC) Update(ch1Mag, ch2Mag []uint8) (changed bool) {
	if !a.Enabled {
		return false
	}

	var peak uint8
	for i := range ch1Mag {
		if ch1Mag[i] > peak {
			peak = ch1Mag[i]
		}
		if ch2Mag[i] > peak {
			peak = ch2Mag[i]
		}
	}
	a.CurrentLevel = peak

	switch {
	case int(peak) > agcTargetLevel+agcHysteresis:
		a.hysteresisCounter++
		if a.hysteresisCounter > agcDecreaseHold {
			if a.GainRX1 > 0 {
				a.GainRX1 = subClampUint32(a.GainRX1, agcGainStepDown)
				a.GainRX2 = subClampUint32(a.GainRX2, agcGainStepDown)
				changed = true
			}
			a.hysteresisCounter = 0
		}
	case int(peak) < agcTargetLevel-agcHysteresis:
		a.hysteresisCounter++
		if a.hysteresisCounter > agcIncreaseHold {
			if a.GainRX1 < agcMaxGainDb {
				a.GainRX1 = addClampUint32(a.GainRX1, agcGainStepUp, agcMaxGainDb)
				a.GainRX2 = addClampUint32(a.GainRX2, agcGainStepUp, agcMaxGainDb)
				changed = true
			}
			a.hysteresisCounter = 0
		}
	default:
		a.hysteresisCounter = 0
	}
	return changed
}

func subClampUint32(v, delta uint32) uint32 {
	if delta > v {
		return 0
	}
	return v - delta
}

func addClampUint32(v, delta, max uint32) uint32 {
	if v+delta > max {
		return max
	}
	return v + delta
}
