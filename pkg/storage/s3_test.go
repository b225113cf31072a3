package storage

import (
	"testing"

	"github.com/google/uuid"
)

func TestAgentAudioKey(t *testing.T) {
	sid := uuid.MustParse("7f1f9a7e-3a43-4f3e-9a55-0f6c2d1e8b10")
	cases := []struct {
		contentType string
		want        string
	}{
		{"audio/wav", "agent-audio/7f1f9a7e-3a43-4f3e-9a55-0f6c2d1e8b10/42.wav"},
		{"audio/mpeg; charset=binary", "agent-audio/7f1f9a7e-3a43-4f3e-9a55-0f6c2d1e8b10/42.mp3"},
		{"application/octet-stream", "agent-audio/7f1f9a7e-3a43-4f3e-9a55-0f6c2d1e8b10/42.bin"},
	}
	for _, tc := range cases {
		if got := AgentAudioKey(sid, 42, tc.contentType); got != tc.want {
			t.Errorf("AgentAudioKey(%q) = %q, want %q", tc.contentType, got, tc.want)
		}
	}
}
