// Package highrise implements the Highrise bot WebSocket API.
//
// A [Session] owns one connection to one room. Requests are correlated to
// their responses by rid; unsolicited frames are room events delivered
// through [Session.Recv]. The rest of the bot treats this package as a
// reliable RPC surface with its own error vocabulary.
package highrise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

// DefaultURL is the production bot API endpoint.
const DefaultURL = "wss://highrise.game/web/botapi"

// keepaliveEvery is how often the session pings the platform. The
// platform drops connections quiet for more than about half a minute.
const keepaliveEvery = 15 * time.Second

// ErrNotInRoom reports that an RPC's target user has left the room.
var ErrNotInRoom = errors.New("target user not in room")

// Session is a live connection to one room.
type Session struct {
	conn     *websocket.Conn
	me       User
	roomName string

	// wmu serializes frame writes.
	wmu sync.Mutex

	// mu guards waiters and err.
	mu      sync.Mutex
	waiters map[string]chan result
	err     error

	events chan Event
}

type result struct {
	fr  frame
	err error
}

// Dial connects to a room. If url is empty, [DefaultURL] is used. The
// returned session is live: its read loop and keepalive are running.
func Dial(ctx context.Context, url, roomID, token string) (*Session, error) {
	if url == "" {
		url = DefaultURL
	}
	hd := http.Header{}
	hd.Set("room-id", roomID)
	hd.Set("api-token", token)
	slog.DebugContext(ctx, "dial room API", slog.String("url", url), slog.String("room", roomID))
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hd})
	if err != nil {
		if resp != nil {
			b := make([]byte, 1024)
			n, _ := resp.Body.Read(b)
			b = b[:n]
			return nil, fmt.Errorf("couldn't connect to room API: %w (%s)", err, b)
		}
		return nil, fmt.Errorf("couldn't connect to room API: %w", err)
	}
	// The first frame is the session metadata.
	_, m, err := conn.Read(ctx)
	if err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("couldn't receive session metadata: %w", err)
	}
	var fr frame
	if err := json.Unmarshal(m, &fr); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("couldn't decode session metadata: %w", err)
	}
	if fr.Type != "SessionMetadata" {
		conn.CloseNow()
		return nil, fmt.Errorf("invalid first frame with type %q", fr.Type)
	}
	var md metadata
	if err := json.Unmarshal(m, &md); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("couldn't decode session metadata: %w", err)
	}
	s := &Session{
		conn:     conn,
		me:       User{ID: md.UserID},
		roomName: md.RoomInfo.Name,
		waiters:  make(map[string]chan result),
		events:   make(chan Event, 16),
	}
	go s.read(ctx)
	go s.keepalive(ctx)
	return s, nil
}

// Me returns the bot's own user identity.
func (s *Session) Me() User {
	return s.me
}

// RoomName returns the display name of the connected room.
func (s *Session) RoomName() string {
	return s.roomName
}

// Close ends the session.
func (s *Session) Close() error {
	return s.conn.CloseNow()
}

// Recv returns the next room event. It returns the read loop's error once
// the session is dead; the caller restarts the whole session.
func (s *Session) Recv(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			return nil, s.err
		}
		return ev, nil
	}
}

// read decodes frames until the connection dies, resolving waiters and
// queueing events.
func (s *Session) read(ctx context.Context) {
	for {
		_, m, err := s.conn.Read(ctx)
		if err != nil {
			s.fail(err)
			return
		}
		var fr frame
		if err := json.Unmarshal(m, &fr); err != nil {
			slog.ErrorContext(ctx, "couldn't decode frame", slog.Any("err", err))
			continue
		}
		if fr.RID != "" {
			s.resolve(fr)
			continue
		}
		ev, ok := decodeEvent(fr, m)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.fail(ctx.Err())
			return
		}
	}
}

func decodeEvent(fr frame, m []byte) (Event, bool) {
	switch fr.Type {
	case "ChatEvent", "WhisperEvent":
		var ev chatEvent
		if err := json.Unmarshal(m, &ev); err != nil {
			return nil, false
		}
		return Chat{User: ev.User, Text: ev.Message, Whisper: ev.Whisper || fr.Type == "WhisperEvent"}, true
	case "UserJoinedEvent":
		var ev presenceEvent
		if err := json.Unmarshal(m, &ev); err != nil {
			return nil, false
		}
		return Joined{User: ev.User, Pos: ev.Pos}, true
	case "UserLeftEvent":
		var ev presenceEvent
		if err := json.Unmarshal(m, &ev); err != nil {
			return nil, false
		}
		return Left{User: ev.User}, true
	case "UserMovedEvent":
		var ev presenceEvent
		if err := json.Unmarshal(m, &ev); err != nil {
			return nil, false
		}
		return Moved{User: ev.User, Pos: ev.Pos}, true
	}
	return nil, false
}

// resolve hands a response frame to its waiter, if it still exists.
func (s *Session) resolve(fr frame) {
	s.mu.Lock()
	w := s.waiters[fr.RID]
	delete(s.waiters, fr.RID)
	s.mu.Unlock()
	if w == nil {
		return
	}
	r := result{fr: fr}
	if fr.Type == "Error" {
		r.err = remoteError(fr.Message)
	}
	w <- r
}

// fail ends the session: all current and future waiters and receives get
// the terminal error.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	ws := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range ws {
		w <- result{err: err}
	}
	close(s.events)
	s.conn.CloseNow()
}

func remoteError(msg string) error {
	if strings.Contains(strings.ToLower(msg), "not in room") {
		return ErrNotInRoom
	}
	return &RemoteError{Message: msg}
}

// call writes a request and waits for the frame echoing rid.
func (s *Session) call(ctx context.Context, rid string, req any) (frame, error) {
	w := make(chan result, 1)
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return frame{}, err
	}
	s.waiters[rid] = w
	s.mu.Unlock()
	if err := s.write(ctx, req); err != nil {
		s.mu.Lock()
		delete(s.waiters, rid)
		s.mu.Unlock()
		return frame{}, err
	}
	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, rid)
		s.mu.Unlock()
		return frame{}, ctx.Err()
	case r := <-w:
		return r.fr, r.err
	}
}

func (s *Session) write(ctx context.Context, req any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("couldn't encode request: %w", err)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("couldn't send request: %w", err)
	}
	return nil
}

func (s *Session) keepalive(ctx context.Context) {
	t := time.NewTicker(keepaliveEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.write(ctx, keepalive{Type: "KeepaliveRequest"}); err != nil {
				return
			}
		}
	}
}

// Chat sends a message to the whole room.
func (s *Session) Chat(ctx context.Context, text string) error {
	rid := uuid.NewString()
	_, err := s.call(ctx, rid, chatRequest{Type: "ChatRequest", Message: text, RID: rid})
	return err
}

// Whisper sends a private message to one user.
func (s *Session) Whisper(ctx context.Context, userID, text string) error {
	rid := uuid.NewString()
	_, err := s.call(ctx, rid, chatRequest{Type: "ChatRequest", Message: text, Target: userID, RID: rid})
	return err
}

// Emote plays an animation, at a target user if one is given.
func (s *Session) Emote(ctx context.Context, emoteID, targetID string) error {
	rid := uuid.NewString()
	_, err := s.call(ctx, rid, emoteRequest{Type: "EmoteRequest", ID: emoteID, Target: targetID, RID: rid})
	return err
}

// Teleport moves a user, including the bot itself, to a position.
func (s *Session) Teleport(ctx context.Context, userID string, pos Position) error {
	rid := uuid.NewString()
	_, err := s.call(ctx, rid, teleportRequest{Type: "TeleportRequest", User: userID, Dest: pos, RID: rid})
	return err
}

// RoomUsers returns the current roster with positions.
func (s *Session) RoomUsers(ctx context.Context) ([]RoomUser, error) {
	rid := uuid.NewString()
	fr, err := s.call(ctx, rid, roomUsersRequest{Type: "GetRoomUsersRequest", RID: rid})
	if err != nil {
		return nil, err
	}
	var resp roomUsersResponse
	if err := json.Unmarshal(fr.Extra, &resp); err != nil {
		return nil, fmt.Errorf("couldn't decode roster: %w", err)
	}
	us := make([]RoomUser, 0, len(resp.Content))
	for _, pair := range resp.Content {
		var ru RoomUser
		if len(pair) > 0 {
			if err := json.Unmarshal(pair[0], &ru.User); err != nil {
				return nil, fmt.Errorf("couldn't decode roster user: %w", err)
			}
		}
		if len(pair) > 1 {
			if err := json.Unmarshal(pair[1], &ru.Pos); err != nil {
				return nil, fmt.Errorf("couldn't decode roster position: %w", err)
			}
		}
		us = append(us, ru)
	}
	return us, nil
}

// PrivilegeFor returns a user's room-granted status.
func (s *Session) PrivilegeFor(ctx context.Context, userID string) (Privilege, error) {
	rid := uuid.NewString()
	fr, err := s.call(ctx, rid, privilegeRequest{Type: "GetRoomPrivilegeRequest", User: userID, RID: rid})
	if err != nil {
		return Privilege{}, err
	}
	var resp privilegeResponse
	if err := json.Unmarshal(fr.Extra, &resp); err != nil {
		return Privilege{}, fmt.Errorf("couldn't decode privilege: %w", err)
	}
	return resp.Content, nil
}

// Mute silences a user for the given duration.
func (s *Session) Mute(ctx context.Context, userID string, d time.Duration) error {
	return s.moderate(ctx, userID, "mute", d)
}

// Unmute lifts a user's mute.
func (s *Session) Unmute(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "unmute", 0)
}

// Kick removes a user from the room.
func (s *Session) Kick(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "kick", 0)
}

// Ban bars a user from the room, permanently if d is zero.
func (s *Session) Ban(ctx context.Context, userID string, d time.Duration) error {
	return s.moderate(ctx, userID, "ban", d)
}

// Unban lifts a user's ban.
func (s *Session) Unban(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "unban", 0)
}

func (s *Session) moderate(ctx context.Context, userID, action string, d time.Duration) error {
	rid := uuid.NewString()
	req := moderateRequest{
		Type:   "ModerateRoomRequest",
		User:   userID,
		Action: action,
		Length: int(d.Seconds()),
		RID:    rid,
	}
	_, err := s.call(ctx, rid, req)
	return err
}
