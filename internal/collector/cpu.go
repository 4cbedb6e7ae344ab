package collector

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// cpuTimes is the aggregate "cpu" line of /proc/stat folded into busy and
// idle jiffies. iowait counts as idle.
type cpuTimes struct {
	busy uint64
	idle uint64
}

func readCPUTimes(path string) (cpuTimes, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cpuTimes{}, err
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(line, "cpu ") {
			return parseCPULine(line)
		}
	}
	return cpuTimes{}, fmt.Errorf("%s: no aggregate cpu line", path)
}

func parseCPULine(line string) (cpuTimes, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return cpuTimes{}, fmt.Errorf("cpu line has %d fields, want at least 5", len(fields))
	}

	// user nice system idle iowait irq softirq steal; guest time is
	// already included in user and nice.
	var t cpuTimes
	for i := 1; i < len(fields) && i <= 8; i++ {
		val, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return cpuTimes{}, fmt.Errorf("cpu field %d: %w", i, err)
		}
		if i == 4 || i == 5 {
			t.idle += val
		} else {
			t.busy += val
		}
	}
	return t, nil
}

// cpuPercent is the busy share of the time between two readings. A
// counter that went backwards reads as idle.
func cpuPercent(prev, cur cpuTimes) float64 {
	if cur.busy < prev.busy || cur.idle < prev.idle {
		return 0
	}
	busy := cur.busy - prev.busy
	total := busy + (cur.idle - prev.idle)
	if total == 0 {
		return 0
	}
	return float64(busy) / float64(total) * 100
}
