package hub_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

var _ = Describe("Event Broadcast", func() {
	var originator, subscriber *client.Client
	var created []string

	BeforeEach(func() {
		var err error
		originator, err = testServer.Dial()
		Expect(err).NotTo(HaveOccurred())
		subscriber, err = testServer.Dial()
		Expect(err).NotTo(HaveOccurred())
		Expect(subscriber.SubscribeEvents(ctx)).To(Succeed())
		created = nil
	})

	AfterEach(func() {
		for _, id := range created {
			originator.DeleteSource(ctx, id)
		}
		originator.Close()
		subscriber.Close()
	})

	It("delivers change events to subscribed connections", func() {
		src := mustAdd(originator, "broadcast me")
		created = append(created, src.ID)

		ev, ok := waitForEvent(subscriber.Events(), forSource(src.ID), 2*time.Second)
		Expect(ok).To(BeTrue(), "subscriber never saw the event")

		Expect(ev.Type).To(Equal("event"))
		Expect(ev.ID).To(HavePrefix("evt_"))
		Expect(ev.Timestamp).NotTo(BeZero())
		Expect(ev.Payload.Type).To(Equal(types.SourceAdded))
		Expect(ev.Payload.SourceID).To(Equal(src.ID))
		Expect(ev.Payload.SourceType).To(Equal(types.SourceTypeSnippet))
		Expect(ev.Payload.Data).To(HaveKeyWithValue("name", "broadcast me"))
	})

	It("never echoes an event back to its originator", func() {
		Expect(originator.SubscribeEvents(ctx)).To(Succeed())

		src := mustAdd(originator, "self-own")
		created = append(created, src.ID)

		// The subscriber sees it, so delivery definitely happened
		_, ok := waitForEvent(subscriber.Events(), forSource(src.ID), 2*time.Second)
		Expect(ok).To(BeTrue())

		// The originator, though subscribed, must not
		_, ok = waitForEvent(originator.Events(), forSource(src.ID), 300*time.Millisecond)
		Expect(ok).To(BeFalse(), "originator received its own event")
	})

	It("sends nothing to connections that never subscribed", func() {
		bystander, err := testServer.Dial()
		Expect(err).NotTo(HaveOccurred())
		defer bystander.Close()

		src := mustAdd(originator, "unseen")
		created = append(created, src.ID)

		_, ok := waitForEvent(subscriber.Events(), forSource(src.ID), 2*time.Second)
		Expect(ok).To(BeTrue())

		_, ok = waitForEvent(bystander.Events(), forSource(src.ID), 300*time.Millisecond)
		Expect(ok).To(BeFalse(), "unsubscribed connection received an event")
	})

	It("announces the full source lifecycle in order", func() {
		src := mustAdd(originator, "lifecycle")

		name := "lifecycle renamed"
		_, err := originator.UpdateSource(ctx, src.ID, types.SourcePatch{Name: &name})
		Expect(err).NotTo(HaveOccurred())
		Expect(originator.UpdateSourceContent(ctx, src.ID, "line one\nline two")).To(Succeed())
		Expect(originator.ClearSourceContent(ctx, src.ID)).To(Succeed())
		Expect(originator.DeleteSource(ctx, src.ID)).To(Succeed())

		var seen []types.EventType
		deadline := time.After(5 * time.Second)
		for {
			ev, ok := waitForEventUntil(subscriber.Events(), forSource(src.ID), deadline)
			if !ok {
				break
			}
			seen = append(seen, ev.Payload.Type)
			if ev.Payload.Type == types.SourceDeleted {
				break
			}
		}

		Expect(seen).To(Equal([]types.EventType{
			types.SourceAdded,
			types.SourceUpdated,
			types.ContentUpdated,
			types.ContentCleared,
			types.SourceDeleted,
		}))
	})

	It("announces active context changes with the new membership", func() {
		a := mustAdd(originator, "ctx a")
		b := mustAdd(originator, "ctx b")
		created = append(created, a.ID, b.ID)

		_, err := originator.SetActiveContext(ctx, []string{b.ID, a.ID})
		Expect(err).NotTo(HaveOccurred())
		defer originator.SetActiveContext(ctx, nil)

		ev, ok := waitForEvent(subscriber.Events(), func(ev client.Event) bool {
			return ev.Payload.Type == types.ActiveContextChanged
		}, 2*time.Second)
		Expect(ok).To(BeTrue())

		Expect(ev.Payload.Data).To(HaveKey("sourceIds"))
		Expect(ev.Payload.Data["sourceIds"]).To(Equal([]any{b.ID, a.ID}))
	})

	It("reports content change stats on the event", func() {
		src := mustAdd(originator, "diffstats")
		created = append(created, src.ID)

		Expect(originator.UpdateSourceContent(ctx, src.ID, "one\ntwo\nthree")).To(Succeed())

		ev, ok := waitForEvent(subscriber.Events(), func(ev client.Event) bool {
			return ev.Payload.Type == types.ContentUpdated && ev.Payload.SourceID == src.ID
		}, 2*time.Second)
		Expect(ok).To(BeTrue())

		Expect(ev.Payload.Data).To(HaveKey("linesAdded"))
		Expect(ev.Payload.Data).To(HaveKey("linesRemoved"))
		Expect(ev.Payload.Data).To(HaveKeyWithValue("contentLength", float64(len("one\ntwo\nthree"))))
	})
})

// forSource matches events about one source id.
func forSource(id string) func(client.Event) bool {
	return func(ev client.Event) bool {
		return ev.Payload.SourceID == id
	}
}

// waitForEvent consumes the channel until an event matches or the
// timeout passes. Non-matching events (leftovers from earlier specs)
// are skipped.
func waitForEvent(ch <-chan client.Event, match func(client.Event) bool, timeout time.Duration) (client.Event, bool) {
	return waitForEventUntil(ch, match, time.After(timeout))
}

func waitForEventUntil(ch <-chan client.Event, match func(client.Event) bool, deadline <-chan time.Time) (client.Event, bool) {
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev, true
			}
		case <-deadline:
			return client.Event{}, false
		}
	}
}
