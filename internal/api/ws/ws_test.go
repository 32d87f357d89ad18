package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"acdmx.com/internal/broker"
	"acdmx.com/internal/engine"
	"acdmx.com/internal/platform"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{"精确匹配", "acdm:Purchased", "acdm:Purchased", true},
		{"精确不匹配", "acdm:Purchased", "acdm:OrderFilled", false},
		{"通配", "acdm:*", "acdm:OrderFilled", true},
		{"前缀通配", "acdm:Order*", "acdm:OrderAdded", true},
		{"前缀不匹配", "acdm:Order*", "acdm:Purchased", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, match(tt.pattern, tt.topic))
		})
	}
}

func dial(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// 读到指定 topic 的事件为止，一帧里可能有多条换行分隔的消息
func readEvent(t *testing.T, c *websocket.Conn, topic string) broker.EventMsg {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, frame, err := c.ReadMessage()
		require.NoError(t, err)
		for _, line := range strings.Split(string(frame), "\n") {
			msg, err := broker.DecodeEvent([]byte(line))
			require.NoError(t, err)
			if broker.Topic(msg.Name) == topic {
				return msg
			}
		}
	}
}

func TestWS_E2E_BridgeToClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	srv := NewServer(ctx, hub)
	bridge := NewBridge(hub)

	c := dial(t, srv, "")
	sub, _ := json.Marshal(ClientMsg{Type: "sub", Topics: []string{broker.TopicAll}})
	require.NoError(t, c.WriteMessage(websocket.TextMessage, sub))
	require.Eventually(t, func() bool { return hub.Conns() == 1 }, time.Second, 5*time.Millisecond)

	buyer := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	require.NoError(t, bridge.Handle(ctx, engine.Event{Seq: 3, Event: platform.Event{
		Type:    platform.EvPurchased,
		Round:   1,
		Account: buyer,
		Amount:  uint256.NewInt(10),
		Price:   uint256.NewInt(100_000_000),
		Value:   uint256.NewInt(1_000_000_000),
	}}))

	msg := readEvent(t, c, broker.Topic("Purchased"))
	assert.Equal(t, uint64(3), msg.Seq)
	assert.Equal(t, buyer, msg.Account)
	assert.Equal(t, uint256.NewInt(10), msg.Amount)
}

func TestWS_SnapshotOnSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	srv := NewServer(ctx, hub)

	// 先发事件，后订阅的客户端能拿到最后一条
	require.NoError(t, NewBridge(hub).Handle(ctx, engine.Event{Seq: 1, Event: platform.Event{
		Type:    platform.EvSaleRoundStarted,
		Round:   1,
		Price:   uint256.NewInt(100_000_000),
		Amount:  uint256.NewInt(10_000_000_000),
		EndTime: 1_700_003_600,
	}}))

	c := dial(t, srv, "?topic="+broker.Topic("SaleRoundStarted"))
	msg := readEvent(t, c, broker.Topic("SaleRoundStarted"))
	assert.Equal(t, uint64(1), msg.Round)
	assert.Equal(t, int64(1_700_003_600), msg.EndTime)
}

func TestHub_UnsubscribeAndRemove(t *testing.T) {
	hub := NewHub()
	c := NewConn(hub, nil)
	hub.Subscribe(c, []string{"acdm:Purchased", "acdm:OrderFilled"})
	assert.Equal(t, 1, hub.Conns())

	hub.Unsubscribe(c, []string{"acdm:Purchased"})
	hub.Publish("acdm:Purchased", []byte(`{}`))
	assert.Empty(t, c.flush(maxFlush))

	hub.Publish("acdm:OrderFilled", []byte(`{"x":1}`))
	assert.Equal(t, [][]byte{[]byte(`{"x":1}`)}, c.flush(maxFlush))

	hub.RemoveConn(c)
	assert.Zero(t, hub.Conns())
}

func TestConn_KeepsEveryEventInOrder(t *testing.T) {
	hub := NewHub()
	c := NewConn(hub, nil)
	hub.Subscribe(c, []string{"acdm:*"})

	// 同一个 topic 连续多条，不能只剩最后一条
	hub.Publish("acdm:OrderFilled", []byte(`1`))
	hub.Publish("acdm:Purchased", []byte(`2`))
	hub.Publish("acdm:OrderFilled", []byte(`3`))
	assert.Equal(t, [][]byte{[]byte(`1`), []byte(`2`), []byte(`3`)}, c.flush(maxFlush))

	for i := 0; i < 5; i++ {
		hub.Publish("acdm:OrderFilled", []byte{byte('a' + i)})
	}
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, c.flush(2))
	assert.Equal(t, [][]byte{[]byte("c"), []byte("d"), []byte("e")}, c.flush(maxFlush))
	assert.Empty(t, c.flush(maxFlush))
}

func TestConn_OverflowMarksSlowClient(t *testing.T) {
	c := NewConn(NewHub(), nil)
	c.limit = 2
	assert.True(t, c.Offer("acdm:Purchased", []byte(`1`)))
	assert.True(t, c.Offer("acdm:Purchased", []byte(`2`)))
	assert.False(t, c.Offer("acdm:Purchased", []byte(`3`)))
	assert.True(t, c.overflow.Load())
	// 已入队的不受影响
	assert.Equal(t, [][]byte{[]byte(`1`), []byte(`2`)}, c.flush(maxFlush))
}

func TestWS_E2E_BurstOnSameTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	srv := NewServer(ctx, hub)
	bridge := NewBridge(hub)

	c := dial(t, srv, "?topic="+broker.Topic("OrderFilled"))
	require.Eventually(t, func() bool { return hub.Conns() == 1 }, time.Second, 5*time.Millisecond)

	const n = 20
	for i := 1; i <= n; i++ {
		require.NoError(t, bridge.Handle(ctx, engine.Event{Seq: uint64(i), Event: platform.Event{
			Type:    platform.EvOrderFilled,
			OrderID: 1,
			Amount:  uint256.NewInt(1),
			Value:   uint256.NewInt(10),
		}}))
	}
	// 一帧可能带多条，按行拆开后应该正好是 1..n
	var seqs []uint64
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(seqs) < n {
		_, frame, err := c.ReadMessage()
		require.NoError(t, err)
		for _, line := range strings.Split(string(frame), "\n") {
			msg, err := broker.DecodeEvent([]byte(line))
			require.NoError(t, err)
			seqs = append(seqs, msg.Seq)
		}
	}
	want := make([]uint64, n)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	assert.Equal(t, want, seqs)
}
