// Package relay is the signaling hub of a classroom. It keeps per-room
// membership, answers room-state requests, routes negotiation packets to
// their target socket, and fans collaboration events out to the room.
// It never terminates media; every stream flows peer to peer.
package relay

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/com"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/network/httpx"
	"github.com/vineetpathak08/remote-classroom/pkg/network/websocket"
)

type Relay struct {
	conf     config.RelayConfig
	log      *logger.Logger
	server   *httpx.Server
	upgrader *websocket.Upgrader
	rooms    com.Map[string, *Room]
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	r := &Relay{
		conf:     conf,
		log:      log,
		upgrader: websocket.NewUpgrader(conf.Relay.Origin),
		rooms:    com.NewMap[string, *Room](),
	}
	server, err := httpx.NewServer(
		conf.Relay.Address,
		func(*httpx.Server) httpx.Handler {
			h := httpx.NewServeMux("")
			h.HandleFunc("/ws", r.handleWS)
			return h
		},
		true,
		log,
	)
	if err != nil {
		return nil, err
	}
	r.server = server
	return r, nil
}

func (r *Relay) Run() {
	r.log.Info().Msgf("relay on %v", r.server.Addr)
	r.server.Run()
}

func (r *Relay) Shutdown(ctx context.Context) error { return r.server.Shutdown(ctx) }

func (r *Relay) handleWS(w httpx.ResponseWriter, rq *httpx.Request) {
	conn, err := r.upgrader.NewServer(w, rq, r.log)
	if err != nil {
		r.log.Error().Err(err).Msg("upgrade fail")
		return
	}
	sid := com.NewUid()
	m := &member{
		conn:     conn,
		socketId: sid.String(),
		log:      r.log.Wrap(r.log.With().Str("uid", sid.Short())),
	}
	conn.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		var in api.In
		if err = json.Unmarshal(message, &in); err != nil {
			m.log.Error().Err(err).Msg("malformed packet")
			return
		}
		r.route(m, in)
	}
	conn.Listen()
	<-conn.Done
	r.disconnect(m)
}

// route dispatches one inbound packet from a member.
func (r *Relay) route(m *member, in api.In) {
	if in.T != api.JoinClass && m.room == nil {
		m.log.Warn().Msgf("packet %v before join", in.T)
		return
	}
	switch in.T {
	case api.JoinClass:
		r.join(m, in)
	case api.LeaveClass:
		r.disconnect(m)
	case api.WebrtcOffer:
		m.room.routeSignal(m, api.WebrtcOffer, in.Payload)
	case api.WebrtcAnswer:
		m.room.routeSignal(m, api.WebrtcAnswer, in.Payload)
	case api.WebrtcIce:
		m.room.routeSignal(m, api.WebrtcIce, in.Payload)
	case api.ChatMessage:
		m.room.chat(m, in.Payload)
	case api.SlideChanged:
		m.room.slideChange(m, in.Payload)
	case api.RaiseHand:
		m.room.raiseHand(m, in.Payload)
	case api.ToggleMedia:
		m.room.toggleMedia(m, in.Payload)
	case api.StartScreenShare, api.StopScreenShare:
		m.room.broadcast(in.T, api.ScreenShareEvent{}, "")
	case api.NewPoll:
		m.room.newPoll(m, in.Payload)
	case api.PollResponse:
		m.room.pollResponse(m, in.Payload)
	case api.PollEnded:
		m.room.pollEnded(m, in.Payload)
	case api.StartRecording, api.StopRecording:
		m.room.recording(m, in.T)
	case api.BandwidthUpdate:
		m.room.bandwidth(m, in.Payload)
	case api.MuteStudent:
		m.room.muteStudent(m, in.Payload)
	case api.MuteAll:
		m.room.muteAll(m)
	case api.RemoveStudent:
		m.room.removeStudent(m, in.Payload)
	case api.EndClass:
		r.endClass(m)
	case api.RoomState:
		// explicit resync request
		m.reply(in.Id, api.RoomState, m.room.snapshot())
	default:
		m.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}

func (r *Relay) join(m *member, in api.In) {
	rq := api.Unwrap[api.JoinClassRequest](in.Payload)
	if rq == nil || rq.Rid == "" || rq.UserId == "" {
		m.log.Error().Msg("malformed join request")
		return
	}
	room, _ := r.rooms.Find(rq.Rid)
	if room == nil {
		room = newRoom(rq.Rid, r.log)
		r.rooms.Put(rq.Rid, room)
	}
	room.join(m, *rq)
	// the joiner gets the authoritative snapshot, the others an increment
	m.reply(in.Id, api.RoomState, room.snapshot())
}

func (r *Relay) disconnect(m *member) {
	room := m.room
	if room == nil {
		return
	}
	m.room = nil
	room.leave(m)
	if room.empty() {
		r.rooms.RemoveByKey(room.id)
		r.log.Debug().Str("room", room.id).Msg("room closed")
	}
}

func (r *Relay) endClass(m *member) {
	if !m.instructor() {
		m.log.Warn().Msg("end-class from a non-instructor")
		return
	}
	room := m.room
	room.broadcast(api.ClassEnded, api.EndClassRequest{Room: api.Room{Rid: room.id}}, "")
	room.close()
	r.rooms.RemoveByKey(room.id)
}
