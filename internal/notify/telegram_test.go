package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oakhollow/barnwatch/internal/analysis"
)

func dangerVerdict() *analysis.Verdict {
	return &analysis.Verdict{
		Severity:          analysis.SeverityDanger,
		Description:       "horse cast against stall wall",
		Hazards:           []string{"CASTING"},
		HorseState:        "lying",
		Confidence:        0.9,
		RecommendedAction: "emergency",
		Frame:             "frame_0042.jpg",
	}
}

func TestSendAlert(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345", time.Second)
	n.baseURL = srv.URL

	if err := n.SendAlert(context.Background(), dangerVerdict()); err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotBody["chat_id"] != "12345" {
		t.Errorf("unexpected chat_id: %q", gotBody["chat_id"])
	}
	if !strings.Contains(gotBody["text"], "DANGER") {
		t.Errorf("alert text should name the severity, got %q", gotBody["text"])
	}
}

func TestSendAlertServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok": false, "description": "chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345", time.Second)
	n.baseURL = srv.URL

	err := n.SendAlert(context.Background(), dangerVerdict())
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestFormatAlert(t *testing.T) {
	msg := FormatAlert(dangerVerdict())

	for _, want := range []string{
		"🚨 Horse Barn Alert: DANGER",
		"Frame: frame_0042.jpg",
		"Description: horse cast against stall wall",
		"Hazards: CASTING",
		"Action: emergency",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatAlertWarningEmoji(t *testing.T) {
	v := dangerVerdict()
	v.Severity = analysis.SeverityWarning
	v.Hazards = nil

	msg := FormatAlert(v)
	if !strings.HasPrefix(msg, "⚠️") {
		t.Errorf("WARNING alert should use the warning emoji, got %q", msg)
	}
	if strings.Contains(msg, "Hazards:") {
		t.Error("alert should omit the hazards line when there are none")
	}
}
