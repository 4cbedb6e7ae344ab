package collector

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCPULine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    cpuTimes
		wantErr bool
	}{
		{
			name: "full line",
			line: "cpu  100 10 50 800 40 5 5 0 0 0",
			want: cpuTimes{busy: 170, idle: 840},
		},
		{
			name: "old kernel without steal",
			line: "cpu  100 10 50 800 40",
			want: cpuTimes{busy: 160, idle: 840},
		},
		{name: "too short", line: "cpu 1 2 3", wantErr: true},
		{name: "garbage", line: "cpu a b c d e", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCPULine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCPULine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseCPULine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur cpuTimes
		want      float64
	}{
		{"quarter busy", cpuTimes{busy: 100, idle: 100}, cpuTimes{busy: 125, idle: 175}, 25},
		{"fully busy", cpuTimes{busy: 0, idle: 0}, cpuTimes{busy: 40, idle: 0}, 100},
		{"no elapsed time", cpuTimes{busy: 5, idle: 5}, cpuTimes{busy: 5, idle: 5}, 0},
		{"counter reset", cpuTimes{busy: 500, idle: 500}, cpuTimes{busy: 10, idle: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cpuPercent(tt.prev, tt.cur); got != tt.want {
				t.Errorf("cpuPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadCPUTimes_SkipsPerCoreLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stat")
	content := "cpu0 1 1 1 1 1\ncpu  7 0 3 90 0 0 0 0\ncpu1 1 1 1 1 1\nintr 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readCPUTimes(path)
	if err != nil {
		t.Fatalf("readCPUTimes() error = %v", err)
	}
	if want := (cpuTimes{busy: 10, idle: 90}); got != want {
		t.Errorf("readCPUTimes() = %+v, want %+v", got, want)
	}

	if err := os.WriteFile(path, []byte("intr 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readCPUTimes(path); err == nil {
		t.Error("readCPUTimes() without a cpu line should fail")
	}
}
