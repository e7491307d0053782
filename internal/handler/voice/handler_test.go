package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/audio"
	"github.com/alyahmadi/sakina/backend/internal/service/turn"
)

type fakeProcessor struct {
	result    *turn.Result
	err       error
	sessionID string
	calls     int
}

func (f *fakeProcessor) ProcessTurn(_ context.Context, sessionID string, _ []byte) (*turn.Result, error) {
	f.calls++
	f.sessionID = sessionID
	return f.result, f.err
}

type fakeFinder struct {
	path string
}

func (f *fakeFinder) ReplyPath(_, _ string) (string, bool) {
	return f.path, f.path != ""
}

func setupRouter(p TurnProcessor, f AudioFinder) *chi.Mux {
	r := chi.NewRouter()
	New(p, f, zap.NewNop()).RegisterRoutes(r)
	return r
}

func chatRequest(t *testing.T, sessionID, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if sessionID != "" {
		if err := writer.WriteField("sessionId", sessionID); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audio"; filename="utterance.wav"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestChatSuccess(t *testing.T) {
	processor := &fakeProcessor{result: &turn.Result{
		SessionID:  "s1",
		Stamp:      "20250601_100000",
		Transcript: "مرحبا",
		Emotion:    "محايد",
		Reply:      "أهلاً وسهلاً",
	}}
	r := setupRouter(processor, &fakeFinder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, chatRequest(t, "s1", "audio/wav", audio.EncodeWAV([]byte{1, 2})))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if processor.sessionID != "s1" {
		t.Fatalf("wrong session forwarded: %q", processor.sessionID)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Reply != "أهلاً وسهلاً" || payload.CrisisFlag {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.BotAudioURL != "/api/audio/s1/20250601_100000" {
		t.Fatalf("unexpected audio url: %s", payload.BotAudioURL)
	}
}

func TestChatMissingSessionID(t *testing.T) {
	processor := &fakeProcessor{}
	r := setupRouter(processor, &fakeFinder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, chatRequest(t, "", "audio/wav", audio.EncodeWAV([]byte{1, 2})))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if processor.calls != 0 {
		t.Fatal("processor must not run without a session id")
	}
}

func TestChatRejectsNonWAVContentType(t *testing.T) {
	r := setupRouter(&fakeProcessor{}, &fakeFinder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, chatRequest(t, "s1", "audio/mpeg", audio.EncodeWAV([]byte{1, 2})))

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
}

func TestChatRejectsNonWAVBytes(t *testing.T) {
	r := setupRouter(&fakeProcessor{}, &fakeFinder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, chatRequest(t, "s1", "audio/wav", []byte("mp3 bytes pretending")))

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
}

func TestChatPipelineErrorsMapToMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"transcription", turn.ErrEmptyTranscript, "transcription failed"},
		{"synthesis", turn.ErrSynthesisFailed, "speech synthesis failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(&fakeProcessor{err: tc.err}, &fakeFinder{})

			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, chatRequest(t, "s1", "audio/wav", audio.EncodeWAV([]byte{1, 2})))

			if resp.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", resp.Code)
			}

			var payload map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload["error"] != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, payload["error"])
			}
		})
	}
}

func TestAudioServesStoredReply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.wav")
	wav := audio.EncodeWAV([]byte{1, 2, 3, 4})
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		t.Fatalf("write reply file: %v", err)
	}
	r := setupRouter(&fakeProcessor{}, &fakeFinder{path: path})

	req := httptest.NewRequest(http.MethodGet, "/audio/s1/20250601_100000", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Equal(resp.Body.Bytes(), wav) {
		t.Fatal("served bytes differ from stored reply")
	}
}

func TestAudioMissingReply(t *testing.T) {
	r := setupRouter(&fakeProcessor{}, &fakeFinder{})

	req := httptest.NewRequest(http.MethodGet, "/audio/s1/20250601_100000", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
