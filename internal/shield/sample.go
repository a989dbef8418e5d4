package shield

// Bit layout of the shield's muxed sample register.
const (
	adcMask  = 0x03FF
	pinShift = 15
)

// Sample is a raw 16-bit muxed reading: bits 0-9 are the 10-bit ADC value,
// bit 15 is the digital pin state, bits 10-14 are reserved.
type Sample uint16

// ADC returns the 10-bit analog reading.
func (s Sample) ADC() uint16 { return uint16(s) & adcMask }

// Pin returns the digital pin state, 0 or 1.
func (s Sample) Pin() uint8 { return uint8(uint16(s) >> pinShift) }

// Demux splits a raw sample into its ADC and pin components.
func Demux(raw uint16) (adc uint16, pin uint8) {
	s := Sample(raw)
	return s.ADC(), s.Pin()
}
