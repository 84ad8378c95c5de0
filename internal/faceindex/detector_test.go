package faceindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

type mockCloser struct {
	*bytes.Buffer
}

func (m *mockCloser) Close() error { return nil }

func framed(t *testing.T, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

func TestExchangeFramesRequestAndReply(t *testing.T) {
	stdin := &mockCloser{Buffer: new(bytes.Buffer)}
	vec := make([]float64, VectorLength)
	vec[0] = 0.5
	replies := &mockCloser{Buffer: bytes.NewBuffer(framed(t, engineResponse{Faces: []Face{{Loc: []int{1, 2, 3, 4}, Vec: vec}}}))}

	reply, err := exchange(stdin, replies, []byte(`{"image":"/out/a.jpg"}`))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	sent := stdin.Bytes()
	if got := binary.BigEndian.Uint32(sent[:4]); int(got) != len(sent)-4 {
		t.Fatalf("header %d does not match body length %d", got, len(sent)-4)
	}
	vectors, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != 0.5 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestDecodeReplyError(t *testing.T) {
	_, err := decodeReply([]byte(`{"error":"model not found"}`))
	if err == nil || err.Error() != "face engine error: model not found" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeReplyNoFaces(t *testing.T) {
	vectors, err := decodeReply([]byte(`{"faces":[]}`))
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("expected no vectors, got %d", len(vectors))
	}
}

func TestDecodeReplyRejectsShortVector(t *testing.T) {
	_, err := decodeReply([]byte(`{"faces":[{"loc":[0,0,0,0],"vec":[1,2]}]}`))
	if !errors.Is(err, ErrVectorLength) {
		t.Fatalf("expected ErrVectorLength, got %v", err)
	}
}

func TestExchangeTruncatedReply(t *testing.T) {
	stdin := &mockCloser{Buffer: new(bytes.Buffer)}
	replies := &mockCloser{Buffer: bytes.NewBuffer([]byte{0, 0, 0, 10, '{'})}
	if _, err := exchange(stdin, replies, []byte("{}")); err == nil {
		t.Fatal("expected error for truncated reply")
	}
}

const fakeEngineEnv = "CAPTURESYNC_FAKE_FACE_ENGINE"

// TestMain doubles as a fake face engine when re-executed by the detector.
func TestMain(m *testing.M) {
	if os.Getenv(fakeEngineEnv) == "1" {
		runFakeEngine()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runFakeEngine() {
	replies := os.NewFile(3, "replies")
	for {
		var size uint32
		if err := binary.Read(os.Stdin, binary.BigEndian, &size); err != nil {
			return
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(os.Stdin, body); err != nil {
			return
		}
		var req engineRequest
		_ = json.Unmarshal(body, &req)

		var resp engineResponse
		switch {
		case strings.Contains(req.Image, "crash"):
			os.Stderr.WriteString("segfault in detector\n")
			os.Exit(3)
		case strings.Contains(req.Image, "nobody"):
			resp.Faces = []Face{}
		default:
			vec := make([]float64, VectorLength)
			vec[0] = float64(len(req.Image))
			resp.Faces = []Face{{Loc: []int{0, 10, 10, 0}, Vec: vec}}
		}
		out, _ := json.Marshal(resp)
		_ = binary.Write(replies, binary.BigEndian, uint32(len(out)))
		_, _ = replies.Write(out)
	}
}

func TestEngineDetectorRoundTripAndRestart(t *testing.T) {
	t.Setenv(fakeEngineEnv, "1")
	detector, err := NewEngineDetector([]string{os.Args[0], "-test.run=^$"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = detector.Close() })
	ctx := context.Background()

	vectors, err := detector.Detect(ctx, "/out/a.jpg")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != float64(len("/out/a.jpg")) {
		t.Fatalf("unexpected vectors: %v", vectors)
	}

	vectors, err = detector.Detect(ctx, "/out/nobody.jpg")
	if err != nil || len(vectors) != 0 {
		t.Fatalf("expected no faces, got %v, %v", vectors, err)
	}

	_, err = detector.Detect(ctx, "/out/crash.jpg")
	if err == nil || !strings.Contains(err.Error(), "segfault in detector") {
		t.Fatalf("expected crash error carrying stderr, got %v", err)
	}

	vectors, err = detector.Detect(ctx, "/out/b.jpg")
	if err != nil || len(vectors) != 1 {
		t.Fatalf("expected engine restart after crash, got %v, %v", vectors, err)
	}
}

func TestNewEngineDetectorRequiresCommand(t *testing.T) {
	if _, err := NewEngineDetector(nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}
