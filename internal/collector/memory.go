package collector

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readMemInfo returns total and available memory in bytes. Kernels older
// than 3.14 lack MemAvailable; free plus page cache stands in for it.
func readMemInfo(path string) (total, available uint64, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	memInfo := make(map[string]uint64)
	for _, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			key := strings.TrimSuffix(fields[0], ":")
			if value, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				memInfo[key] = value * 1024 // kB
			}
		}
	}

	total, ok := memInfo["MemTotal"]
	if !ok {
		return 0, 0, fmt.Errorf("%s: no MemTotal", path)
	}
	available, ok = memInfo["MemAvailable"]
	if !ok {
		available = memInfo["MemFree"] + memInfo["Buffers"] + memInfo["Cached"]
	}
	if available > total {
		available = total
	}
	return total, available, nil
}
