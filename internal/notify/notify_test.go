package notify

import (
	"bytes"
	"testing"
)

func TestLogNotifierFormatsLines(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(&buf)
	n.Success("Sale saved")
	n.Error("Payment failed")

	if buf.String() != "Success: Sale saved\nError: Payment failed\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	r.Info("loading")
	r.Warning("low stock")
	r.Info("done")

	if got := r.Messages(); len(got) != 3 || got[1].Level != LevelWarning {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if text, ok := r.Last(LevelInfo); !ok || text != "done" {
		t.Fatalf("unexpected last info %q", text)
	}
	if _, ok := r.Last(LevelError); ok {
		t.Fatalf("expected no error message")
	}
}
