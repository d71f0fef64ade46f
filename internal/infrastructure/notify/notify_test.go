package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"hardcore/internal/ports"
)

type recordingNotifier struct {
	got []ports.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n ports.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

type recordingPublisher struct {
	subject string
	data    []byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return nil
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	first := &recordingNotifier{err: errors.New("socket closed")}
	second := &recordingNotifier{}
	fan := Fanout{first, nil, second}

	err := fan.Notify(context.Background(), ports.Notification{Kind: ports.NotifyRevived, Message: "back"})
	if err == nil {
		t.Fatalf("Notify() expected joined error")
	}
	if len(first.got) != 1 || len(second.got) != 1 {
		t.Fatalf("deliveries = %d/%d, want 1/1", len(first.got), len(second.got))
	}
}

func TestNatsNotifierPublishesEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	n := newNatsNotifier(pub, "hardcore.notifications")
	id := uuid.New()

	if err := n.Notify(context.Background(), ports.Notification{Kind: ports.NotifyReset, ParticipantID: id, Message: "reset"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if pub.subject != "hardcore.notifications" {
		t.Fatalf("subject = %q", pub.subject)
	}

	var env envelope
	if err := json.Unmarshal(pub.data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Origin != n.origin || env.Notification.ParticipantID != id || env.Notification.Kind != ports.NotifyReset {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestNatsNotifierSkipsOwnMessages(t *testing.T) {
	pub := &recordingPublisher{}
	sender := newNatsNotifier(pub, "s")
	receiver := newNatsNotifier(&recordingPublisher{}, "s")
	local := &recordingNotifier{}

	if err := sender.Notify(context.Background(), ports.Notification{Kind: ports.NotifyReset, Message: "reset"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	sender.deliver(context.Background(), pub.data, local)
	if len(local.got) != 0 {
		t.Fatalf("own message was relayed")
	}

	receiver.deliver(context.Background(), pub.data, local)
	if len(local.got) != 1 || local.got[0].Message != "reset" {
		t.Fatalf("relayed = %+v", local.got)
	}

	receiver.deliver(context.Background(), []byte("{"), local)
	if len(local.got) != 1 {
		t.Fatalf("malformed message was relayed")
	}
}
