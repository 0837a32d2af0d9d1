package services

import (
	"context"

	"github.com/vmkteam/embedlog"
)

// Transcriber handles voice transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioFilePath string) (string, error)
}

// MockTranscriber is a mock implementation of Transcriber
type MockTranscriber struct {
	logger embedlog.Logger
}

// NewMockTranscriber creates a new mock transcriber
func NewMockTranscriber(logger embedlog.Logger) *MockTranscriber {
	return &MockTranscriber{logger: logger}
}

// Transcribe mocks transcription of audio file
func (m *MockTranscriber) Transcribe(ctx context.Context, audioFilePath string) (string, error) {
	m.logger.Print(ctx, "mock transcriber", "file", audioFilePath)

	return "午餐 120", nil
}
