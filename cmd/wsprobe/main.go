// Package main provides a load/smoke probe for the watch-together socket
// server. It opens a swarm of websocket clients, logs each one into a shared
// room and sends periodic chat messages while counting traffic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	LoginsAccepted       int64
	LoginsRejected       int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    *uint64         `json:"id,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:3001", "Socket server host")
	room := flag.String("room", "probe-room", "Room to join")
	password := flag.String("password", "probe-pass", "Room password")
	tokenPrefix := flag.String("token", "probe-user", "User token prefix; each client appends its index")
	clients := flag.Int("clients", 25, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	flag.Parse()

	log.Printf("🚀 Starting Socket Probe")
	log.Printf("Target: %s", *host)
	log.Printf("Room: %s", *room)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Start clients
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *room, *password, fmt.Sprintf("%s-%d", *tokenPrefix, i), i, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger joins so the first client owns the room
	}

	// Wait for duration or interrupt
	select {
	case <-time.After(*duration):
		log.Println("⏱️  Probe duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func runClient(host, room, password, token string, id int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	dialer := websocket.DefaultDialer
	c, resp, err := dialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	if err := login(c, room, password, token); err != nil {
		atomic.AddInt64(&metrics.LoginsRejected, 1)
		log.Printf("client %d login failed: %v", id, err)
		return
	}
	atomic.AddInt64(&metrics.LoginsAccepted, 1)

	// Read loop
	go func() {
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.MessagesReceived, 1)
		}
	}()

	ticker := time.NewTicker(time.Second * 5)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := send(c, "message", map[string]any{
				"message": fmt.Sprintf("Probe message from client %d", id),
			}, nil); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

// login performs the acknowledged login handshake and waits for the reply.
func login(c *websocket.Conn, room, password, token string) error {
	ackID := uint64(1)
	err := send(c, "login", map[string]any{
		"author":   token,
		"room":     room,
		"password": password,
		"anime": map[string]any{
			"slug":    "probe-show",
			"season":  1,
			"episode": 1,
		},
	}, &ackID)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	_ = c.SetReadDeadline(deadline)
	defer func() { _ = c.SetReadDeadline(time.Time{}) }()

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		if env.ID == nil || *env.ID != ackID {
			continue
		}

		var reply struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(env.Data, &reply); err != nil {
			return err
		}
		if !reply.Success {
			return fmt.Errorf("rejected: %s", reply.Error)
		}
		return nil
	}
}

func send(c *websocket.Conn, event string, data any, ackID *uint64) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw, ID: ackID})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func printMetrics() {
	log.Println("\n📊 Probe Results")
	log.Println("================")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Logins Accepted: %d", atomic.LoadInt64(&metrics.LoginsAccepted))
	log.Printf("Logins Rejected: %d", atomic.LoadInt64(&metrics.LoginsRejected))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
