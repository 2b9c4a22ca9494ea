package core

// DebugWriter writes one debug line to a platform sink (UART, USB, stdout).
type DebugWriter func(string)

var (
	debugPrintln DebugWriter = func(string) {}

	// Off by default: a UART write stalls the main loop.
	debugEnabled bool
)

// SetDebugWriter sets the platform-specific debug output.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled turns debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes msg when debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// itoa formats n without pulling in fmt or strconv on the MCU.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// hex8 formats an 8-bit register value as 0xNN.
func hex8(v uint8) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{'0', 'x', digits[v>>4], digits[v&0x0F]})
}
