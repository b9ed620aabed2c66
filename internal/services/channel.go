package services

import (
	"context"
	"strconv"
	"time"
)

// Payload is what a channel transport delivers. SMS ignores Subject.
type Payload struct {
	Subject string
	Body    string
}

// SendResult is returned by a transport that accepted a message.
type SendResult struct {
	ProviderID string
	Simulated  bool
}

// ChannelSender delivers one payload to one destination.
// Transport failures come back as *apperrors.SendError.
type ChannelSender interface {
	Send(ctx context.Context, destination string, payload Payload) (*SendResult, error)
}

func simulatedID(now time.Time) string {
	return "SIM" + strconv.FormatInt(now.UnixMilli(), 10)
}
