package notify

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/pubsub"
)

func TestPublishDisabledByDefault(t *testing.T) {
	bus := pubsub.NewBus()
	p := NewPublisher(bus)
	sub := bus.NewSubscriber()
	bus.Subscribe(sub, "__keyevent@0__:set")

	p.Publish(ClassString, 0, "foo", "set")
	select {
	case <-sub.Ch:
		t.Fatal("no notification should be published before Configure")
	default:
	}
}

func TestPublishKeyspaceAndKeyeventChannels(t *testing.T) {
	bus := pubsub.NewBus()
	p := NewPublisher(bus)
	p.Configure(map[Class]bool{ClassString: true}, true, true)

	ksub := bus.NewSubscriber()
	bus.Subscribe(ksub, "__keyspace@0__:foo")
	esub := bus.NewSubscriber()
	bus.Subscribe(esub, "__keyevent@0__:set")

	p.Publish(ClassString, 0, "foo", "set")

	ks := <-ksub.Ch
	if ks.Payload != "set" {
		t.Errorf("keyspace channel should carry the event name, got %q", ks.Payload)
	}
	es := <-esub.Ch
	if es.Payload != "foo" {
		t.Errorf("keyevent channel should carry the key name, got %q", es.Payload)
	}
}

func TestPublishSkipsDisabledClass(t *testing.T) {
	bus := pubsub.NewBus()
	p := NewPublisher(bus)
	p.Configure(map[Class]bool{ClassList: true}, true, true)
	sub := bus.NewSubscriber()
	bus.Subscribe(sub, "__keyevent@0__:set")

	p.Publish(ClassString, 0, "foo", "set")
	select {
	case <-sub.Ch:
		t.Fatal("disabled class should not publish")
	default:
	}
}
