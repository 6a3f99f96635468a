package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"blogapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *HubService {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHubService()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func receive(t *testing.T, client *models.Client) models.WSMessage {
	t.Helper()
	select {
	case raw, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var msg models.WSMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return models.WSMessage{}
	}
}

func TestHub_DeliversOnlyToRecipient(t *testing.T) {
	hub := startHub(t)

	alice := models.NewClient(hub.GetHub(), nil, 1)
	aliceTab := models.NewClient(hub.GetHub(), nil, 1)
	bob := models.NewClient(hub.GetHub(), nil, 2)
	for _, c := range []*models.Client{alice, aliceTab, bob} {
		hub.GetHub().Register <- c
	}

	hub.BroadcastToUser(1, models.EventPostLiked, map[string]interface{}{"postId": 7})

	for _, c := range []*models.Client{alice, aliceTab} {
		msg := receive(t, c)
		assert.Equal(t, models.EventPostLiked, msg.Type)
		assert.Equal(t, map[string]interface{}{"postId": float64(7)}, msg.Data)
	}

	select {
	case <-bob.Send:
		t.Fatal("bob must not receive alice's notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)

	client := models.NewClient(hub.GetHub(), nil, 3)
	hub.GetHub().Register <- client
	hub.GetHub().Unregister <- client

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	// unregistering twice is harmless
	hub.GetHub().Unregister <- client
}

func TestHub_BroadcastWithoutListenersDoesNotBlock(t *testing.T) {
	hub := NewHubService()

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.GetHub().Deliver)+10; i++ {
			hub.BroadcastToUser(99, models.EventCommentAdded, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastToUser blocked")
	}
}

func TestHub_DeliveryToSingleClient(t *testing.T) {
	hub := startHub(t)

	first := models.NewClient(hub.GetHub(), nil, 4)
	second := models.NewClient(hub.GetHub(), nil, 4)
	hub.GetHub().Register <- first
	hub.GetHub().Register <- second

	hub.GetHub().Deliver <- models.Delivery{UserID: 4, ClientID: second.ID, Payload: []byte(`{"type":"pong"}`)}

	assert.Equal(t, "pong", receive(t, second).Type)
	select {
	case <-first.Send:
		t.Fatal("reply leaked to another connection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RegisterAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHubService()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	live := models.NewClient(hub.GetHub(), nil, 5)
	require.True(t, hub.Register(live))

	cancel()
	<-stopped

	_, open := <-live.Send
	assert.False(t, open, "stopping the hub closes live clients")

	done := make(chan bool)
	go func() {
		late := models.NewClient(hub.GetHub(), nil, 6)
		ok := hub.Register(late)
		hub.Unregister(late)
		hub.Unregister(live)
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Register or Unregister blocked after the hub stopped")
	}
}
