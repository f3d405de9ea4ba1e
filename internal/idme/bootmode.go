package idme

import "fmt"

// BootMode value of the "bootmode" item
type BootMode int

const (
	BootModeUnknown   BootMode = -1
	BootModeNormal    BootMode = 1
	BootModeDiag      BootMode = 2
	BootModeRecovery  BootMode = 3
	BootModeEmergency BootMode = 4
	BootModeReserved2 BootMode = 5
	BootModeFastboot  BootMode = 6
)

func (b BootMode) String() string {
	switch b {
	case BootModeUnknown:
		return "unknown"
	case BootModeNormal:
		return "normal"
	case BootModeDiag:
		return "diag"
	case BootModeRecovery:
		return "recovery"
	case BootModeEmergency:
		return "emergency"
	case BootModeReserved2:
		return "reserved2"
	case BootModeFastboot:
		return "fastboot"
	default:
		return fmt.Sprintf("bootmode(%d)", int(b))
	}
}

// atoi parses like C atoi: leading blanks, optional sign, digits.
// Anything unparsable is zero.
func atoi(b []byte) int {
	s := cString(b)
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}
