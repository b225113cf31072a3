package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRecognizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "pcm" {
			t.Errorf("audio = %q", data)
		}
		_, _ = w.Write([]byte(`{"text":"  hello world "}`))
	}))
	defer srv.Close()

	got, err := NewRecognizer(srv.URL).Recognize(context.Background(), []byte("pcm"))
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("text = %q", got)
	}
}

func TestHTTPRecognizerEmptyAudioSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	got, err := NewRecognizer(srv.URL).Recognize(context.Background(), nil)
	if err != nil || got != "" || called {
		t.Fatalf("got %q err=%v called=%v", got, err, called)
	}
}

func TestDisabledServices(t *testing.T) {
	if _, err := NewRecognizer("").Recognize(context.Background(), []byte("x")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("recognizer err = %v", err)
	}
	if _, _, err := NewSynthesizer("").Synthesize(context.Background(), "hi"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("synthesizer err = %v", err)
	}
}

func TestHTTPSynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	audio, ct, err := NewSynthesizer(srv.URL).Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3" || ct != "audio/mpeg" {
		t.Fatalf("audio=%q ct=%q", audio, ct)
	}
}
