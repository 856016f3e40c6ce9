package regbus

// Register map of the PTZ lens controller MCU. All control registers use
// bit0 only; the remaining bits are reserved and must be written as zero.
const (
	RegFocus          uint8 = 0x00 // focus motor target, [0, FocusMax]
	RegZoom           uint8 = 0x01 // zoom motor target, [0, ZoomMax]
	RegStatus         uint8 = 0x04 // bit0: 1 = BUSY, 0 = IDLE
	RegPan            uint8 = 0x05 // pan angle, [0, 180]
	RegTilt           uint8 = 0x06 // tilt angle, [0, 180]
	RegFocusMax       uint8 = 0x07 // read-only: focus motor step count
	RegZoomMax        uint8 = 0x08 // read-only: zoom motor step count
	RegResetFocus     uint8 = 0x0A // bit0: pulse to re-home focus
	RegResetZoom      uint8 = 0x0B // bit0: pulse to re-home zoom
	RegIRCut          uint8 = 0x0C // bit0: IR-cut filter on/off
	RegPanTilt        uint8 = 0x0E // combined: high byte pan, low byte tilt
	RegFocusZoom      uint8 = 0x0F // combined 32-bit: high word focus, low word zoom
	RegResetFocusZoom uint8 = 0x11 // bit0: pulse to re-home both axes
	RegMode           uint8 = 0x30 // bit0: 1 = Adjust, 0 = Fixed
)
