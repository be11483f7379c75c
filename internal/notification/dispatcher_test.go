package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DispatcherSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *DispatcherSuite) TestDeliversQueuedMessages() {
	recorder := NewRecorder()
	dispatcher := NewDispatcher(recorder, s.logger)

	for i := 0; i < 5; i++ {
		ok := dispatcher.Dispatch(context.Background(), Message{
			Recipient: "grace@example.com",
			Subject:   "hello",
			Template:  TemplatePaidInvoice,
		})
		s.True(ok)
	}
	dispatcher.Close()

	s.Len(recorder.Sent(), 5)
}

func (s *DispatcherSuite) TestFailedDeliveryFiresHook() {
	recorder := NewRecorder()
	recorder.FailWith = errors.New("smtp unreachable")

	var failures atomic.Int64
	dispatcher := NewDispatcher(recorder, s.logger, WithFailureHook(func() {
		failures.Add(1)
	}))

	s.True(dispatcher.Dispatch(context.Background(), Message{Recipient: "grace@example.com"}))
	dispatcher.Close()

	s.Equal(int64(1), failures.Load())
	s.Empty(recorder.Sent())
}

func (s *DispatcherSuite) TestFullInboxDropsWithoutBlocking() {
	// A sender that never returns would wedge the worker; block it so queued
	// messages pile up deterministically.
	release := make(chan struct{})
	blocked := SenderFunc(func(ctx context.Context, msg Message) error {
		<-release
		return nil
	})

	var failures atomic.Int64
	dispatcher := NewDispatcher(blocked, s.logger,
		WithBuffer(1),
		WithFailureHook(func() { failures.Add(1) }))

	// First message may be picked up by the worker; the buffer plus the
	// in-flight slot bound how many Dispatch calls can succeed.
	accepted := 0
	for i := 0; i < 5; i++ {
		if dispatcher.Dispatch(context.Background(), Message{Recipient: "grace@example.com"}) {
			accepted++
		}
	}
	s.LessOrEqual(accepted, 2)
	s.Equal(int64(5-accepted), failures.Load())

	close(release)
	dispatcher.Close()
}
