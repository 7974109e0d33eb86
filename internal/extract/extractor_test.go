package extract

import (
	"math"
	"testing"
)

func TestParseDurationOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{
			name:   "standard ffmpeg banner",
			output: "Input #0, mov,mp4\n  Duration: 00:01:30.50, start: 0.000000, bitrate: 1200 kb/s\n",
			want:   90.5,
		},
		{
			name:   "hours",
			output: "  Duration: 01:02:03.00, start: 0.000000\n",
			want:   3723,
		},
		{
			name:    "no duration line",
			output:  "some unrelated ffmpeg noise",
			wantErr: true,
		},
		{
			name:    "malformed duration",
			output:  "Duration: 90.5, start: 0\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationOutput(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %f", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"one\ntwo\nthree\n", "three"},
		{"only", "only"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := lastLine(tt.in); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
