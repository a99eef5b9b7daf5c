package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

// fakeClient implements just enough of LNClient to drive the collector.
type fakeClient struct {
	lnclient.LNClient
	stream chan lnclient.RawEvent
}

func (f *fakeClient) StreamEvents(ctx context.Context) (<-chan lnclient.RawEvent, error) {
	return f.stream, nil
}

func TestCollectorForwardsTaggedEvents(t *testing.T) {
	collector := NewCollector()
	stream := make(chan lnclient.RawEvent, 1)
	client := &fakeClient{stream: stream}

	meta := NodeMeta{AccountId: 1, UserId: 3, NodeId: 7, Pubkey: "02aa", Alias: "carol"}
	require.NoError(t, collector.Collect(context.Background(), meta, client))

	stream <- lnclient.LndChannelOpened{RemotePubkey: "03bb"}

	select {
	case event := <-collector.Events():
		assert.Equal(t, uint(1), event.AccountId)
		assert.Equal(t, uint(3), event.UserId)
		assert.Equal(t, uint(7), event.NodeId)
		assert.Equal(t, "02aa", event.NodePubkey)
		assert.IsType(t, lnclient.LndChannelOpened{}, event.Raw)
	case <-time.After(time.Second):
		t.Fatal("expected a forwarded event")
	}
}

func TestCollectorBlocksWhenFull(t *testing.T) {
	collector := NewCollector()
	stream := make(chan lnclient.RawEvent)
	client := &fakeClient{stream: stream}

	require.NoError(t, collector.Collect(context.Background(), NodeMeta{}, client))

	// fill the buffer plus one in-flight event
	for i := 0; i < collectorBufferSize+1; i++ {
		select {
		case stream <- lnclient.LndInvoiceCreated{}:
		case <-time.After(time.Second):
			t.Fatalf("producer blocked too early at event %d", i)
		}
	}

	// the buffer is full now, the next send must block
	select {
	case stream <- lnclient.LndInvoiceCreated{}:
		t.Fatal("expected producer to block on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	// draining one event unblocks the producer
	<-collector.Events()
	select {
	case stream <- lnclient.LndInvoiceCreated{}:
	case <-time.After(time.Second):
		t.Fatal("expected producer to resume after drain")
	}
}

func TestCollectorStopsOnStreamEnd(t *testing.T) {
	collector := NewCollector()
	stream := make(chan lnclient.RawEvent)
	client := &fakeClient{stream: stream}

	require.NoError(t, collector.Collect(context.Background(), NodeMeta{}, client))

	stream <- lnclient.LndInvoiceCreated{}
	close(stream)

	// the queued event is still delivered, then nothing more arrives
	select {
	case <-collector.Events():
	case <-time.After(time.Second):
		t.Fatal("expected the queued event")
	}
	select {
	case event := <-collector.Events():
		t.Fatalf("unexpected event after stream end: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollectorStopsOnCancelledConsumer(t *testing.T) {
	collector := NewCollector()
	stream := make(chan lnclient.RawEvent)
	client := &fakeClient{stream: stream}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, collector.Collect(ctx, NodeMeta{}, client))

	// fill the buffer so the forwarder is parked on a send
	for i := 0; i < collectorBufferSize; i++ {
		stream <- lnclient.LndInvoiceCreated{}
	}
	stream <- lnclient.LndInvoiceCreated{}

	cancel()

	// the forwarder must exit and stop consuming the stream
	time.Sleep(50 * time.Millisecond)
	select {
	case stream <- lnclient.LndInvoiceCreated{}:
		t.Fatal("expected the forwarder to stop reading after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
