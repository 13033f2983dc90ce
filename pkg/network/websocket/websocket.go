package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

type WS struct {
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	OnMessage WSMessageHandler

	pingPong bool
	server   bool

	shutdown *sync.WaitGroup
	once     sync.Once
	Done     chan struct{}
}

type WSMessageHandler func(message []byte, err error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{Upgrader: upgrader}

// NewUpgrader creates an upgrader with an origin check restricted to the
// given host ("*" allows any).
func NewUpgrader(origin string) *Upgrader {
	u := Upgrader{Upgrader: upgrader}
	if origin == "*" {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	} else if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// NewServer upgrades an incoming request to a websocket peer.
func (u *Upgrader) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, server bool, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)

	return &WS{
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, 16),
		log:      log,
		pingPong: server,
		server:   server,
		shutdown: &shut,
		Done:     make(chan struct{}, 1),
	}
}

func (ws *WS) IsServer() bool { return ws.server }

// Listen starts the read/write pumps. The OnMessage handler must be set
// before this call.
func (ws *WS) Listen() {
	go ws.writer()
	go ws.reader()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.closeSend()
		ws.shutdown.Done()
		ws.close()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongTime))
		if ws.pingPong {
			conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
		} else {
			conn.SetPingHandler(func(m string) error {
				_ = conn.SetReadDeadline(time.Now().Add(pongTime))
				return ws.conn.write(websocket.PongMessage, []byte(m))
			})
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Error().Err(err).Msg("read fail")
			}
			break
		}
		ws.OnMessage(message, nil)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
		defer ticker.Stop()
	}
	defer func() {
		ws.shutdown.Done()
		ws.close()
	}()
	for {
		if ws.pingPong {
			select {
			case message, ok := <-ws.send:
				if !ws.handleMessage(message, ok) {
					return
				}
			case <-ticker.C:
				if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		} else {
			message, ok := <-ws.send
			if !ws.handleMessage(message, ok) {
				return
			}
		}
	}
}

func (ws *WS) handleMessage(message []byte, ok bool) bool {
	if !ok {
		_ = ws.conn.write(websocket.CloseMessage, []byte{})
		return false
	}
	if err := ws.conn.write(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

func (ws *WS) Write(data []byte) {
	defer func() { recover() }() // send on closed channel during teardown
	ws.send <- data
}

func (ws *WS) Close() {
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
	ws.closeSend()
}

func (ws *WS) closeSend() { ws.once.Do(func() { close(ws.send) }) }

func (ws *WS) close() {
	ws.shutdown.Wait()
	_ = ws.conn.close()
	select {
	case ws.Done <- struct{}{}:
	default:
	}
}
