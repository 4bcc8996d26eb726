package chathub

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/metrics"
	"lessonchat/backend/internal/models"

	"go.uber.org/zap"
)

const (
	roomChannelPrefix = "chat:room:"
	userChannelPrefix = "chat:user:"

	// ChannelPattern matches every room and user channel.
	ChannelPattern = "chat:*"
)

func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EventSink receives every event the gateway publishes. Failures are logged, never retried.
type EventSink interface {
	Name() string
	HandleEvent(ctx context.Context, channel string, ev models.Event) error
}

type outbound struct {
	channel string
	event   models.Event
}

// Gateway is the fire-and-forget broadcaster. Calls only enqueue; a worker started by Run
// encodes and publishes. When the queue is full the event is dropped. Every sink has its own
// queue and worker, so a slow sink only ever loses its own events.
type Gateway struct {
	publisher Publisher
	sinks     []*sinkWorker
	queue     chan outbound
}

func NewGateway(p Publisher, queueSize int, sinks ...EventSink) *Gateway {
	g := &Gateway{
		publisher: p,
		queue:     make(chan outbound, queueSize),
	}
	for _, sink := range sinks {
		g.sinks = append(g.sinks, &sinkWorker{sink: sink, queue: make(chan outbound, queueSize)})
	}
	return g
}

func (g *Gateway) BroadcastNewMessage(ctx context.Context, roomID string, msg models.ChatMessage) {
	g.enqueue(RoomChannel(roomID), models.Event{
		Type:    models.EventNewMessage,
		RoomID:  roomID,
		Message: &msg,
	})
}

func (g *Gateway) SendReadReceipts(ctx context.Context, roomID string, receipts []models.ReadReceipt) {
	if len(receipts) == 0 {
		return
	}
	g.enqueue(RoomChannel(roomID), models.Event{
		Type:     models.EventReadReceipt,
		RoomID:   roomID,
		Receipts: receipts,
	})
}

func (g *Gateway) SendUnreadCountInfo(ctx context.Context, userID string, info models.UnreadCountInfo) {
	g.enqueue(UserChannel(userID), models.Event{
		Type:        models.EventUnreadCount,
		RoomID:      info.RoomID,
		UserID:      userID,
		UnreadCount: &info,
	})
}

func (g *Gateway) enqueue(channel string, ev models.Event) {
	select {
	case g.queue <- outbound{channel: channel, event: ev}:
	default:
		metrics.BroadcastDropped.Inc()
		zap.S().Warnf("WARN: Broadcast queue full, dropping %s event for %s", ev.Type, channel)
	}
}

// Run drains the queue until ctx is cancelled. It also starts one worker per sink.
func (g *Gateway) Run(ctx context.Context) {
	for _, w := range g.sinks {
		go w.run(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-g.queue:
			g.publish(ctx, o)
		}
	}
}

func (g *Gateway) publish(ctx context.Context, o outbound) {
	payload, err := json.Marshal(o.event)
	if err != nil {
		zap.S().Errorf("ERROR: Failed to encode %s event: %v", o.event.Type, err)
		return
	}

	if err := g.publisher.Publish(ctx, o.channel, payload); err != nil {
		metrics.BroadcastFailures.WithLabelValues("publish").Inc()
		zap.S().Errorf("ERROR: Failed to publish %s event to %s: %v", o.event.Type, o.channel, err)
	} else {
		metrics.EventsPublished.WithLabelValues(o.event.Type).Inc()
	}

	for _, w := range g.sinks {
		w.offer(o)
	}
}

type sinkWorker struct {
	sink  EventSink
	queue chan outbound
}

func (w *sinkWorker) offer(o outbound) {
	select {
	case w.queue <- o:
	default:
		metrics.SinkDropped.WithLabelValues(w.sink.Name()).Inc()
		zap.S().Warnf("WARN: Sink %s is behind, dropping %s event for %s", w.sink.Name(), o.event.Type, o.channel)
	}
}

func (w *sinkWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-w.queue:
			w.handle(ctx, o)
		}
	}
}

func (w *sinkWorker) handle(ctx context.Context, o outbound) {
	ctx, cancel := context.WithTimeout(ctx, config.SinkTimeout)
	defer cancel()
	if err := w.sink.HandleEvent(ctx, o.channel, o.event); err != nil {
		metrics.BroadcastFailures.WithLabelValues(w.sink.Name()).Inc()
		zap.S().Errorf("ERROR: Sink %s failed on %s event: %v", w.sink.Name(), o.event.Type, err)
	}
}
