package chathub

import (
	"context"
	"lessonchat/backend/internal/metrics"
	"lessonchat/backend/internal/models"

	"go.uber.org/zap"
)

type subscription struct {
	client    Client
	channel   string
	subscribe bool
}

type delivery struct {
	channel string
	msg     models.WebSocketMessage
}

// ManagerService is the hub. Its Run loop owns the client set and the channel
// subscriptions; everything else talks to it through channels.
type ManagerService struct {
	Clients  map[Client]bool
	channels map[string]map[Client]bool

	RegisterCh   chan Client
	UnregisterCh chan Client
	subscribeCh  chan subscription
	deliverCh    chan delivery

	done chan struct{}
}

func NewManagerService() *ManagerService {
	return &ManagerService{
		Clients:      make(map[Client]bool),
		channels:     make(map[string]map[Client]bool),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		subscribeCh:  make(chan subscription),
		deliverCh:    make(chan delivery, 256),
		done:         make(chan struct{}),
	}
}

// Run processes hub commands until ctx is cancelled. Remaining clients are closed on exit.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			for c := range m.Clients {
				m.remove(c)
			}
			zap.S().Info("INFO: Hub stopped")
			return

		case c := <-m.RegisterCh:
			m.Clients[c] = true
			m.subscribe(c, UserChannel(c.GetUserID()))
			metrics.Connections.Inc()
			zap.S().Infof("INFO: Client registered for user %s", c.GetUserID())

		case c := <-m.UnregisterCh:
			m.remove(c)

		case s := <-m.subscribeCh:
			if !m.Clients[s.client] {
				continue
			}
			if s.subscribe {
				m.subscribe(s.client, s.channel)
			} else {
				m.unsubscribe(s.client, s.channel)
			}

		case d := <-m.deliverCh:
			m.dispatch(d)
		}
	}
}

func (m *ManagerService) subscribe(c Client, channel string) {
	set, ok := m.channels[channel]
	if !ok {
		set = make(map[Client]bool)
		m.channels[channel] = set
	}
	set[c] = true
}

func (m *ManagerService) unsubscribe(c Client, channel string) {
	if set, ok := m.channels[channel]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(m.channels, channel)
		}
	}
}

func (m *ManagerService) remove(c Client) {
	if !m.Clients[c] {
		return
	}
	delete(m.Clients, c)
	for channel := range m.channels {
		m.unsubscribe(c, channel)
	}
	c.Close()
	metrics.Connections.Dec()
	zap.S().Infof("INFO: Client unregistered for user %s", c.GetUserID())
}

// dispatch fans a frame out to every subscriber of the channel. Slow clients are evicted.
func (m *ManagerService) dispatch(d delivery) {
	for c := range m.channels[d.channel] {
		select {
		case c.GetSendChannel() <- d.msg:
		default:
			zap.S().Warnf("WARN: Send buffer full for user %s, dropping connection", c.GetUserID())
			metrics.SlowClientsEvicted.Inc()
			m.remove(c)
		}
	}
}

func (m *ManagerService) Register(c Client) {
	select {
	case m.RegisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Subscribe adds a registered client to a channel.
func (m *ManagerService) Subscribe(c Client, channel string) {
	m.sendSubscription(subscription{client: c, channel: channel, subscribe: true})
}

func (m *ManagerService) Unsubscribe(c Client, channel string) {
	m.sendSubscription(subscription{client: c, channel: channel})
}

func (m *ManagerService) sendSubscription(s subscription) {
	select {
	case m.subscribeCh <- s:
	case <-m.done:
	}
}

// Deliver queues a frame for every client subscribed to channel.
func (m *ManagerService) Deliver(channel string, msg models.WebSocketMessage) {
	select {
	case m.deliverCh <- delivery{channel: channel, msg: msg}:
	case <-m.done:
	}
}
