// Package audio stores the per-turn voice artifacts: uploaded user WAV files
// and synthesized reply audio, addressable by (session id, timestamp stamp).
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadBytes bounds uploaded audio; cost control as much as security.
const MaxUploadBytes = 5 << 20

// Reply PCM format delivered by the provider.
const (
	sampleRate    = 24000
	numChannels   = 1
	bitsPerSample = 16
)

var (
	ErrNotWAV     = errors.New("audio is not a wav file")
	ErrTooLarge   = errors.New("audio exceeds the size limit")
	ErrBadSegment = errors.New("invalid path segment")
)

// Storage keeps user inputs and bot outputs in two directories under the
// data root, mirroring how the files are later served.
type Storage struct {
	inputDir string
	replyDir string
}

// NewStorage ensures both audio directories exist.
func NewStorage(dataDir string) (*Storage, error) {
	s := &Storage{
		inputDir: filepath.Join(dataDir, "user_inputs"),
		replyDir: filepath.Join(dataDir, "bot_outputs"),
	}
	for _, dir := range []string{s.inputDir, s.replyDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audio directory: %w", err)
		}
	}
	return s, nil
}

// SaveInput persists one uploaded utterance and returns its path.
func (s *Storage) SaveInput(sessionID, stamp string, data []byte) (string, error) {
	name, err := fileName(sessionID, stamp, ".wav")
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.inputDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write input audio: %w", err)
	}
	return path, nil
}

// SaveReply wraps raw reply PCM in a WAV container and persists it.
func (s *Storage) SaveReply(sessionID, stamp string, pcm []byte) (string, error) {
	name, err := fileName(sessionID, stamp, "_reply.wav")
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.replyDir, name)
	if err := os.WriteFile(path, EncodeWAV(pcm), 0o600); err != nil {
		return "", fmt.Errorf("write reply audio: %w", err)
	}
	return path, nil
}

// ReplyPath resolves a stored reply for serving; ok is false when absent.
func (s *Storage) ReplyPath(sessionID, stamp string) (string, bool) {
	name, err := fileName(sessionID, stamp, "_reply.wav")
	if err != nil {
		return "", false
	}

	path := filepath.Join(s.replyDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// ValidateWAV checks the size ceiling and the RIFF/WAVE container magic.
func ValidateWAV(data []byte) error {
	if len(data) > MaxUploadBytes {
		return ErrTooLarge
	}
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || string(data[8:12]) != "WAVE" {
		return ErrNotWAV
	}
	return nil
}

// EncodeWAV prepends the 44-byte RIFF header for 24kHz mono 16-bit PCM.
func EncodeWAV(pcm []byte) []byte {
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}

// Session ids and stamps come from the network; keep them out of paths
// unless they are plain name material.
func fileName(sessionID, stamp, suffix string) (string, error) {
	for _, segment := range []string{sessionID, stamp} {
		if segment == "" ||
			strings.ContainsAny(segment, `/\`) ||
			strings.Contains(segment, "..") {
			return "", ErrBadSegment
		}
	}
	return sessionID + "_" + stamp + suffix, nil
}
