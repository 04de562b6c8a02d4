package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var got []string
	d.Subscribe(EventAccountRegistered, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.UserID)
		return nil
	})
	d.Subscribe(EventAccountRegistered, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventPasswordChanged, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAccountRegistered, UserID: "u-1"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first:u-1", "second:u-1"}, got)
}

func TestDispatcher_HandlerErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	called := false
	d.Subscribe(EventConfirmationRequested, func(context.Context, Event) error {
		return errors.New("smtp down")
	})
	d.Subscribe(EventConfirmationRequested, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e-1", Type: EventConfirmationRequested})
	assert.NoError(t, err)
	assert.True(t, called, "later handlers still run")
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventPasswordChanged}))
}
