package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(nil, "ride-status", zap.NewNop())
	_, ok := p.(Nop)
	assert.True(t, ok)
	p.RideStatusChanged(context.Background(), RideStatusChanged{RideID: "r1"})
	assert.NoError(t, p.Close())
}

func TestKafkaPublisherKeysByRide(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, zap.NewNop())

	at := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	p.RideStatusChanged(context.Background(), RideStatusChanged{
		RideID: "ride-1", UserID: "user-1", Status: "ENROUTE", Trigger: "chair", At: at,
	})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ride-1", string(w.msgs[0].Key))

	var got RideStatusChanged
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "ENROUTE", got.Status)
	assert.Nil(t, got.ChairID)
	assert.True(t, at.Equal(got.At))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := newKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, zap.New(core))

	p.RideStatusChanged(context.Background(), RideStatusChanged{RideID: "ride-2", Status: "PICKUP"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "publish ride event", entry.Message)
	assert.Equal(t, "ride-2", entry.ContextMap()["ride_id"])
}
