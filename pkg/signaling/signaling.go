// Package signaling implements the event channel between a classroom
// client and the relay. The relay guarantees delivery to room members but
// neither ordering nor exactly-once delivery; callers are expected to
// tolerate duplicates and reordering.
package signaling

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/com"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/network/websocket"
)

// Transport is what the session coordinator sees of the channel.
type Transport interface {
	OnPacket(fn func(packet api.In))
	// Notify sends a message and goes further, best-effort.
	Notify(t api.PT, payload any)
	// Call makes a blocking request and waits for the matching response.
	Call(t api.PT, payload any) ([]byte, error)
	Close()
	Wait() chan struct{}
}

type Client struct {
	conn     *websocket.WS
	queue    map[string]*call
	onPacket func(packet api.In)
	timeout  time.Duration
	log      *logger.Logger
	mu       sync.Mutex
}

type call struct {
	done     chan struct{}
	err      error
	response api.In
}

var (
	errConnClosed = errors.New("connection closed")
	errTimeout    = errors.New("timeout")
)

const defaultCallTimeout = 5 * time.Second

var outPool = sync.Pool{New: func() any { o := api.Out{}; return &o }}

// Connect dials the relay and starts the socket pumps.
func Connect(address url.URL, callTimeout time.Duration, log *logger.Logger) (*Client, error) {
	conn, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	c := &Client{conn: conn, queue: make(map[string]*call, 1), timeout: callTimeout, log: log}
	c.conn.OnMessage = c.handleMessage
	c.conn.Listen()
	return c, nil
}

func (c *Client) OnPacket(fn func(packet api.In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

func (c *Client) Close() {
	c.conn.Close()
	c.drain(errConnClosed)
}

func (c *Client) Wait() chan struct{} { return c.conn.Done }

func (c *Client) Call(t api.PT, payload any) ([]byte, error) {
	rq := outPool.Get().(*api.Out)
	id := com.NewUid()
	rq.Id, rq.T, rq.Payload = id.String(), t, payload
	r, err := json.Marshal(rq)
	outPool.Put(rq)
	if err != nil {
		return nil, err
	}

	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id.String()] = task
	c.mu.Unlock()
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("ᵇ%v", t)
	c.conn.Write(r)
	select {
	case <-task.done:
	case <-time.After(c.timeout):
		task.err = errTimeout
	}
	return task.response.Payload, task.err
}

func (c *Client) Notify(t api.PT, payload any) {
	rq := outPool.Get().(*api.Out)
	rq.Id, rq.T, rq.Payload = "", t, payload
	defer outPool.Put(rq)
	r, err := json.Marshal(rq)
	if err != nil {
		c.log.Error().Err(err).Msgf("packet encode fail %v", t)
		return
	}
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	c.conn.Write(r)
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}

	var res api.In
	if err = json.Unmarshal(message, &res); err != nil {
		c.log.Error().Err(err).Msg("malformed packet")
		return
	}

	// an id implies a response to a tracked request
	if res.HasId() {
		if task := c.pop(res.Id); task != nil {
			task.response = res
			close(task.done)
			return
		}
	}
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn != nil {
		c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", res.T)
		fn(res)
	}
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id string) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for id, task := range c.queue {
		if task.err == nil {
			task.err = err
		}
		close(task.done)
		delete(c.queue, id)
	}
	c.mu.Unlock()
}
