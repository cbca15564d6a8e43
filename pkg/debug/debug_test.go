package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogWritesOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	prev := Enabled()
	t.Cleanup(func() { SetEnabled(prev) })

	SetEnabled(false)
	SetOutput(&buf)
	Log("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output while disabled, got %q", buf.String())
	}

	SetEnabled(true)
	Log("visible %d", 2)
	LogIf(false, "skipped")
	LogIf(true, "kept")
	done := LogEnterExit("step")
	done()

	out := buf.String()
	for _, want := range []string{"[CMAP_DEBUG]", "visible 2", "kept", "-> step", "<- step"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("LogIf(false) should not write:\n%s", out)
	}
}
