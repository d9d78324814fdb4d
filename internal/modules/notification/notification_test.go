package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
)

type recordingGateway struct {
	mu   sync.Mutex
	got  []Intent
	err  error
	done chan struct{}
}

func (g *recordingGateway) Send(_ context.Context, in Intent) error {
	g.mu.Lock()
	g.got = append(g.got, in)
	g.mu.Unlock()
	if g.done != nil {
		g.done <- struct{}{}
	}
	return g.err
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.got)
}

func TestDispatcherDeliversToEveryGateway(t *testing.T) {
	inbox := &recordingGateway{done: make(chan struct{}, 4)}
	push := &recordingGateway{err: errors.New("fcm down"), done: make(chan struct{}, 4)}
	d := NewDispatcher(8, 2, nil, inbox, push)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	if err := d.Notify(Intent{UserID: "u1", Title: "t", Category: CategoryDelivered}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	for _, g := range []*recordingGateway{inbox, push} {
		select {
		case <-g.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("gateway not called")
		}
	}
	cancel()
	<-stopped

	if inbox.count() != 1 || push.count() != 1 {
		t.Fatalf("inbox=%d push=%d, want 1 each", inbox.count(), push.count())
	}
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	if err := d.Notify(Intent{UserID: "u1"}); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := d.Notify(Intent{UserID: "u2"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	g := &recordingGateway{}
	d := NewDispatcher(4, 1, nil, g)
	for i := 0; i < 3; i++ {
		if err := d.Notify(Intent{UserID: "u1"}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
	if g.count() != 3 {
		t.Fatalf("drained %d intents, want 3", g.count())
	}
}

type fakeMessenger struct {
	sent []*messaging.Message
}

func (m *fakeMessenger) Send(_ context.Context, msg *messaging.Message) (string, error) {
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

type mapTokens map[string]string

func (m mapTokens) DeviceToken(_ context.Context, uid string) (string, error) {
	return m[uid], nil
}

func TestPushGatewaySend(t *testing.T) {
	m := &fakeMessenger{}
	g := NewPushGateway(m, mapTokens{"drv-1": "tok-1"}, nil)

	err := g.Send(context.Background(), Intent{
		UserID:   "drv-1",
		Title:    "New delivery",
		Message:  "Parcel pickup 2 km away",
		Category: CategoryNewDelivery,
		Metadata: map[string]string{"delivery_id": "del-1"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if msg.Token != "tok-1" || msg.Data["type"] != string(CategoryNewDelivery) || msg.Data["delivery_id"] != "del-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Notification.Title != "New delivery" {
		t.Fatalf("title = %q", msg.Notification.Title)
	}
}

func TestPushGatewaySkipsUsersWithoutToken(t *testing.T) {
	m := &fakeMessenger{}
	g := NewPushGateway(m, mapTokens{}, nil)
	if err := g.Send(context.Background(), Intent{UserID: "cust-1"}); !errors.Is(err, ErrNoDeviceToken) {
		t.Fatalf("expected ErrNoDeviceToken, got %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}
