package pubsub

import "testing"

func TestSubscribePublishDelivery(t *testing.T) {
	b := NewBus()
	sub := b.NewSubscriber()
	if n := b.Subscribe(sub, "news"); n != 1 {
		t.Fatalf("expected subscription count 1, got %d", n)
	}
	if n := b.Publish("news", "hello"); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	msg := <-sub.Ch
	if msg.Channel != "news" || msg.Payload != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestPatternSubscribeMatchesGlob(t *testing.T) {
	b := NewBus()
	sub := b.NewSubscriber()
	b.PSubscribe(sub, "news.*")
	if n := b.Publish("news.sports", "x"); n != 1 {
		t.Fatalf("expected 1 delivery via pattern, got %d", n)
	}
	msg := <-sub.Ch
	if msg.Pattern != "news.*" {
		t.Errorf("expected pattern to be recorded, got %q", msg.Pattern)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	sub := b.NewSubscriber()
	b.Subscribe(sub, "news")
	if n := b.Unsubscribe(sub, "news"); n != 0 {
		t.Fatalf("expected subscription count 0 after unsubscribe, got %d", n)
	}
	if n := b.Publish("news", "x"); n != 0 {
		t.Errorf("expected no deliveries after unsubscribe, got %d", n)
	}
}

func TestUnsubscribeAllClearsBothRegistries(t *testing.T) {
	b := NewBus()
	sub := b.NewSubscriber()
	b.Subscribe(sub, "a")
	b.PSubscribe(sub, "b.*")
	b.UnsubscribeAll(sub)
	if b.ChannelSubscriberCount("a") != 0 {
		t.Error("channel subscription should be gone")
	}
	if b.PatternSubscriberCount() != 0 {
		t.Error("pattern subscription should be gone")
	}
}

func TestFullSubscriberBufferSkipsWithoutBlocking(t *testing.T) {
	b := NewBus()
	sub := b.NewSubscriber()
	b.Subscribe(sub, "flood")
	for i := 0; i < 300; i++ {
		b.Publish("flood", "x")
	}
	// Publish must never block even once the subscriber's buffer fills;
	// reaching this point is the assertion.
}
