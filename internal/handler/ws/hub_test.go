package ws

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	domrepo "TradeDash/internal/domain/repository"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn, func()) {
	t.Helper()

	e := echo.New()
	h := NewHub(nil)
	e.GET("/ws", h.Serve)
	srv := httptest.NewServer(e)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return h, conn, func() {
		_ = conn.Close()
		h.Close()
		srv.Close()
	}
}

func TestHubBroadcast(t *testing.T) {
	h, conn, cleanup := startHub(t)
	defer cleanup()

	want := domrepo.CommitEvent{Feed: "raw", Key: "bot-1|", Count: 3, FetchedAt: time.Now().UTC()}
	h.NotifyCommit(want)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domrepo.CommitEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Feed != want.Feed || got.Key != want.Key || got.Count != want.Count {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHubConcurrentNotify(t *testing.T) {
	h, conn, cleanup := startHub(t)
	defer cleanup()

	// The client reads as fast as it can while several goroutines
	// broadcast. Any unserialized connection write panics here.
	received := make(chan struct{}, 1024)
	go func() {
		for {
			var ev domrepo.CommitEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	const writers = 4
	const perWriter = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				h.NotifyCommit(domrepo.CommitEvent{
					Feed:      "raw",
					Key:       fmt.Sprintf("bot-%d|", i),
					Count:     1,
					FetchedAt: time.Now(),
				})
			}
		}(i)
	}
	wg.Wait()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("no events delivered")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h, _, cleanup := startHub(t)
	defer cleanup()

	// The client never reads. Keep broadcasting oversized events until
	// the connection and send buffer back up; the hub must then drop
	// the client instead of blocking the commit path.
	big := strings.Repeat("x", 4096)
	deadline := time.Now().Add(5 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slow client was not dropped, clients=%d", h.ClientCount())
		}
		h.NotifyCommit(domrepo.CommitEvent{Feed: "raw", Key: big, Count: 1})
	}
}
