package chathub_test

import (
	"context"
	"encoding/json"
	"errors"
	"lessonchat/backend/internal/chathub"
	"lessonchat/backend/internal/models"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	event   models.Event
}

// capturingPublisher returns a mock publisher that forwards every call to the returned channel.
func capturingPublisher(err error) (*MockPublisher, chan published) {
	out := make(chan published, 16)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			var ev models.Event
			_ = json.Unmarshal(args.Get(2).([]byte), &ev)
			out <- published{channel: args.String(1), event: ev}
		}).
		Return(err)
	return pub, out
}

func runGateway(t *testing.T, g *chathub.Gateway) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)
}

func next(t *testing.T, ch chan published) published {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("nothing was published")
		return published{}
	}
}

func TestGateway_RoutesEventsToChannels(t *testing.T) {
	// Arrange
	pub, out := capturingPublisher(nil)
	g := chathub.NewGateway(pub, 8)
	runGateway(t, g)
	ctx := context.Background()

	// Act
	g.BroadcastNewMessage(ctx, "r1", models.ChatMessage{ID: 7, RoomID: "r1", SenderID: "u1", Body: "hi"})
	g.SendReadReceipts(ctx, "r1", []models.ReadReceipt{{MessageID: 7, ReaderID: "u2"}})
	g.SendUnreadCountInfo(ctx, "u2", models.UnreadCountInfo{RoomID: "r1", UnreadCount: 1, LatestMessage: "hi"})

	// Assert
	msg := next(t, out)
	assert.Equal(t, "chat:room:r1", msg.channel)
	assert.Equal(t, models.EventNewMessage, msg.event.Type)
	require.NotNil(t, msg.event.Message)
	assert.Equal(t, "hi", msg.event.Message.Body)

	receipt := next(t, out)
	assert.Equal(t, "chat:room:r1", receipt.channel)
	assert.Equal(t, models.EventReadReceipt, receipt.event.Type)
	assert.Equal(t, []models.ReadReceipt{{MessageID: 7, ReaderID: "u2"}}, receipt.event.Receipts)

	unread := next(t, out)
	assert.Equal(t, "chat:user:u2", unread.channel)
	assert.Equal(t, models.EventUnreadCount, unread.event.Type)
	require.NotNil(t, unread.event.UnreadCount)
	assert.Equal(t, int64(1), unread.event.UnreadCount.UnreadCount)
}

func TestGateway_SkipsEmptyReceipts(t *testing.T) {
	pub, out := capturingPublisher(nil)
	g := chathub.NewGateway(pub, 8)
	runGateway(t, g)

	g.SendReadReceipts(context.Background(), "r1", nil)

	select {
	case p := <-out:
		t.Fatalf("unexpected publish to %s", p.channel)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGateway_DropsWhenQueueIsFull(t *testing.T) {
	pub, out := capturingPublisher(nil)
	g := chathub.NewGateway(pub, 1)
	ctx := context.Background()

	// The worker is not running yet, so only the first event fits.
	g.SendUnreadCountInfo(ctx, "u1", models.UnreadCountInfo{RoomID: "r1"})
	g.SendUnreadCountInfo(ctx, "u2", models.UnreadCountInfo{RoomID: "r1"})
	g.SendUnreadCountInfo(ctx, "u3", models.UnreadCountInfo{RoomID: "r1"})
	runGateway(t, g)

	assert.Equal(t, "chat:user:u1", next(t, out).channel)
	select {
	case p := <-out:
		t.Fatalf("dropped event was published to %s", p.channel)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGateway_FeedsSinksEvenWhenPublishFails(t *testing.T) {
	pub, out := capturingPublisher(errors.New("redis down"))
	sinkCalled := make(chan models.Event, 1)
	sink := new(MockSink)
	sink.On("HandleEvent", mock.Anything, "chat:room:r1", mock.AnythingOfType("models.Event")).
		Run(func(args mock.Arguments) { sinkCalled <- args.Get(2).(models.Event) }).
		Return(errors.New("sink down"))
	g := chathub.NewGateway(pub, 4, sink)
	runGateway(t, g)

	g.BroadcastNewMessage(context.Background(), "r1", models.ChatMessage{ID: 1, RoomID: "r1", Body: "x"})

	next(t, out)
	select {
	case ev := <-sinkCalled:
		assert.Equal(t, models.EventNewMessage, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("sink did not receive the event")
	}
}

func TestGateway_SlowSinkDoesNotThrottlePublishing(t *testing.T) {
	// Arrange
	var publishedCount atomic.Int64
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(mock.Arguments) { publishedCount.Add(1) }).
		Return(nil)
	var sinkCount atomic.Int64
	slow := new(MockSink)
	slow.On("HandleEvent", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("models.Event")).
		Run(func(mock.Arguments) {
			sinkCount.Add(1)
			time.Sleep(50 * time.Millisecond)
		}).
		Return(nil)
	g := chathub.NewGateway(pub, 8, slow)
	runGateway(t, g)

	// Act
	const events = 40
	for i := 0; i < events; i++ {
		g.SendUnreadCountInfo(context.Background(), "u1", models.UnreadCountInfo{RoomID: "r1", UnreadCount: int64(i)})
		time.Sleep(5 * time.Millisecond)
	}

	// Assert
	assert.Eventually(t, func() bool { return publishedCount.Load() == events }, time.Second, 10*time.Millisecond,
		"every event reaches the websocket channels")
	assert.Positive(t, sinkCount.Load(), "the sink still gets what it can keep up with")
}

func TestGateway_LocalPublisherReachesSubscribedClients(t *testing.T) {
	hub := startHub(t)
	g := chathub.NewGateway(&chathub.LocalPublisher{Hub: hub}, 8)
	runGateway(t, g)

	viewer := newMockClient("u2", 4)
	hub.Register(viewer)
	hub.Subscribe(viewer, chathub.RoomChannel("r1"))

	g.SendUnreadCountInfo(context.Background(), "u2", models.UnreadCountInfo{RoomID: "r1", UnreadCount: 2})
	frame := receive(t, viewer)
	assert.Equal(t, models.EventUnreadCount, frame.Type)

	g.BroadcastNewMessage(context.Background(), "r1", models.ChatMessage{ID: 3, RoomID: "r1", Body: "hey"})
	frame = receive(t, viewer)
	assert.Equal(t, models.EventNewMessage, frame.Type)
	var ev models.Event
	require.NoError(t, json.Unmarshal(frame.Payload, &ev))
	assert.Equal(t, "hey", ev.Message.Body)
}
