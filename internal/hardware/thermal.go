package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CPUTempPath is the Raspberry Pi SoC thermal zone.
const CPUTempPath = "/sys/class/thermal/thermal_zone0/temp"

// ReadCPUTemp reads a thermal zone file holding millidegrees and returns
// degrees Celsius.
func ReadCPUTemp(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("thermal: read %s: %w", path, err)
	}
	millideg, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("thermal: parse %s: %w", path, err)
	}
	return float64(millideg) / 1000.0, nil
}
