package theme

import "testing"

func TestStateColor(t *testing.T) {
	tests := map[string]string{
		"running":    string(ColorRunning),
		"Running":    string(ColorRunning),
		"exited":     string(ColorExited),
		"shutoff":    string(ColorExited),
		"paused":     string(ColorPaused),
		"crashed":    string(ColorDead),
		"restarting": string(ColorRestarting),
		"whatever":   string(ColorDefault),
	}
	for state, want := range tests {
		if got := string(StateColor(state)); got != want {
			t.Errorf("StateColor(%q) = %s, want %s", state, got, want)
		}
	}
}

func TestUsageColor(t *testing.T) {
	if UsageColor(10) != ColorHealthy {
		t.Error("10% should be healthy")
	}
	if UsageColor(60) != ColorWarning {
		t.Error("60% should warn")
	}
	if UsageColor(95) != ColorDanger {
		t.Error("95% should be danger")
	}
}
