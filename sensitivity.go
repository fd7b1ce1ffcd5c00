package touchpilot

// SensitivityMap linearly maps a raw sensitivity reading (a potentiometer on a 12-bit
// ADC in the reference hardware) onto the threshold offset added to the baseline.
// Larger raw readings mean a larger offset, i.e. a firmer touch is needed.
type SensitivityMap struct {
	InMin, InMax   int
	OutMin, OutMax float64
}

// NewSensitivityMap builds a map from Params.
func NewSensitivityMap(p Params) SensitivityMap {
	return SensitivityMap{
		InMin:  p.SensitivityInMin,
		InMax:  p.SensitivityInMax,
		OutMin: p.OffsetMin,
		OutMax: p.OffsetMax,
	}
}

// Clamp limits raw to the input range.
func (m SensitivityMap) Clamp(raw int) int {
	if raw < m.InMin {
		return m.InMin
	}
	if raw > m.InMax {
		return m.InMax
	}
	return raw
}

// Offset returns the threshold offset for raw. Out of range input is clamped first so
// the result never extrapolates past [OutMin, OutMax].
func (m SensitivityMap) Offset(raw int) float64 {
	raw = m.Clamp(raw)
	span := float64(m.InMax - m.InMin)
	if span <= 0 {
		return m.OutMin
	}
	return m.OutMin + float64(raw-m.InMin)*(m.OutMax-m.OutMin)/span
}
