package command

import "testing"

func TestSubscribeReturnsRunningCount(t *testing.T) {
	reg := NewRegistry()
	RegisterPubSubCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	reply, err := e.Execute(ctx, "SUBSCRIBE", []string{"a", "b"})
	if err != nil {
		t.Fatalf("SUBSCRIBE: %v", err)
	}
	if reply.Elems[2].Int != 2 {
		t.Errorf("subscription count after subscribing to 2 channels = %d, want 2", reply.Elems[2].Int)
	}
}

func TestUnsubscribeAllResetsCountToZero(t *testing.T) {
	reg := NewRegistry()
	RegisterPubSubCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "SUBSCRIBE", []string{"a", "b"})
	reply, _ := e.Execute(ctx, "UNSUBSCRIBE", nil)
	if reply.Elems[2].Int != 0 {
		t.Errorf("subscription count after UNSUBSCRIBE with no args = %d, want 0", reply.Elems[2].Int)
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	reg := NewRegistry()
	RegisterPubSubCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "SUBSCRIBE", []string{"chan"})
	reply, _ := e.Execute(ctx, "PUBLISH", []string{"chan", "hello"})
	if reply.Int != 1 {
		t.Fatalf("PUBLISH receiver count = %d, want 1", reply.Int)
	}
	msg := <-s.Sub.Ch
	if msg.Payload != "hello" {
		t.Errorf("delivered payload = %q, want hello", msg.Payload)
	}
}
