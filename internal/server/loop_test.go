package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viamrobotics/micro-rdk-go/internal/cloud"
	"github.com/viamrobotics/micro-rdk-go/internal/session"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(Config{Capacity: 2})
	require.NoError(t, err)
	return l
}

func TestHandleAdmissionDropsCloudClientOnHTTP2Error(t *testing.T) {
	l := newTestLoop(t)
	l.cloudClient = &cloud.Client{}

	l.handleAdmission(admission{isHTTP2: true, err: errors.New("accept failed")})

	require.Nil(t, l.cloudClient)
}

func TestHandleAdmissionPreservesCloudClientOnWebRTCError(t *testing.T) {
	l := newTestLoop(t)
	client := &cloud.Client{}
	l.cloudClient = client

	l.handleAdmission(admission{isWebRTC: true, err: errors.New("ICE establishment failed")})

	require.Same(t, client, l.cloudClient)
}

func TestHandleAdmissionInsertsSuccessfulTask(t *testing.T) {
	// One slot, so the admitted task's priority is the lowest in use; with
	// a second, free slot LowestPriority would report 0.
	l, err := New(Config{Capacity: 1})
	require.NoError(t, err)
	done := make(chan struct{})
	close(done)
	task := &session.Task{Cancel: func() {}, Done: done}

	l.handleAdmission(admission{isHTTP2: true, task: task, priority: session.MaxPriority})

	require.Equal(t, session.MaxPriority, l.sessions.LowestPriority())
}

func TestHandleAdmissionIgnoresNilTaskResult(t *testing.T) {
	l := newTestLoop(t)

	require.NotPanics(t, func() {
		l.handleAdmission(admission{isHTTP2: true})
	})
}

func TestDropCloudClientClearsSignaling(t *testing.T) {
	l := newTestLoop(t)
	l.cloudClient = &cloud.Client{}

	l.dropCloudClient()

	require.Nil(t, l.cloudClient)
	require.Nil(t, l.signaling)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	l := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
}
