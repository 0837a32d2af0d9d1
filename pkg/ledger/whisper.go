package ledger

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// LocalWhisper transcribes voice messages with ffmpeg and a local
// whisper-cli binary. Implements services.Transcriber.
type LocalWhisper struct {
	Language string
}

func NewLocalWhisper(language string) *LocalWhisper {
	if language == "" {
		language = "zh"
	}
	return &LocalWhisper{Language: language}
}

func (w *LocalWhisper) Transcribe(ctx context.Context, audioFilePath string) (string, error) {
	tmpWav := filepath.Join(os.TempDir(), fmt.Sprintf("voice-%d.wav", time.Now().UnixNano()))
	defer os.Remove(tmpWav)

	output, err := execWithTimeout(ctx, 10*time.Second, "ffmpeg",
		"-y", // overwrite output file without asking
		"-i", audioFilePath,
		"-ac", "1", // 1 channel
		"-ar", "16000", // 16 kHz
		"-acodec", "pcm_s16le", // 16-bit little-endian PCM
		tmpWav)
	if err != nil {
		return "", fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	output, err = execWithTimeout(ctx, 30*time.Second,
		"whisper-cli",
		"-l", w.Language,
		"-f", tmpWav,
		"-otxt",
		"-of", "-",
	)
	if err != nil {
		return "", fmt.Errorf("whisper-cli error: %w, output: %s", err, string(output))
	}

	return strings.TrimSpace(string(output)), nil
}

func execWithTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
