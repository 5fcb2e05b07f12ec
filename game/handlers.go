package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"xqmahjong/common/log"
	"xqmahjong/conn"
	"xqmahjong/game/share"
)

const (
	maxNameLen = 15
	maxChatLen = 150
)

// Service 消息路由层：把连接层的 tag 消息翻译成目录操作或引擎事件
type Service struct {
	conns *conn.Manager
	rooms *RoomManager
}

func NewService(conns *conn.Manager, rooms *RoomManager) *Service {
	return &Service{conns: conns, rooms: rooms}
}

// RegisterHandlers 注册全部入站消息处理器
func (s *Service) RegisterHandlers() {
	s.conns.RegisterHandler("setName", s.handleSetName)
	s.conns.RegisterHandler("createRoom", s.handleCreateRoom)
	s.conns.RegisterHandler("joinRoom", s.handleJoinRoom)
	s.conns.RegisterHandler("listRooms", s.handleListRooms)
	s.conns.RegisterHandler("lobbyChat", s.handleLobbyChat)
	s.conns.RegisterHandler("lobbyLeave", s.handleLobbyLeave)
	s.conns.RegisterHandler("gameAction", s.handleGameAction)
	s.conns.RegisterHandler("gameChat", s.handleGameChat)
	s.conns.RegisterHandler("gameRequestStart", s.handleRequestStart)
	s.conns.RegisterHandler("gameQuitRoom", s.handleQuitRoom)
	s.conns.SetOnDisconnect(s.handleDisconnect)
}

func (s *Service) lobbyError(sess *conn.Session, text string) {
	s.conns.Push(sess.ConnID, "lobbyError", map[string]string{"text": text})
}

func (s *Service) gameError(sess *conn.Session, text string) {
	s.conns.Push(sess.ConnID, "gameError", map[string]string{"text": text})
}

// ---------- 大厅 ----------

func (s *Service) handleSetName(sess *conn.Session, data json.RawMessage) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" || len([]rune(req.Name)) > maxNameLen {
		s.lobbyError(sess, "昵称长度须在 1..15 字符")
		return
	}
	sess.SetName(req.Name)
	sess.SetInLobby(true)
	s.conns.Push(sess.ConnID, "lobbyRoomList", s.rooms.ListRooms())
}

func (s *Service) handleCreateRoom(sess *conn.Session, data json.RawMessage) {
	var settings share.RoomSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.lobbyError(sess, "建房参数错误")
		return
	}
	room, err := s.rooms.CreateRoom(sess, settings)
	if err != nil {
		s.lobbyError(sess, err.Error())
		return
	}
	sess.SetInLobby(false)
	s.conns.Push(sess.ConnID, "joinedRoom", map[string]any{
		"gameState":      room.Engine.Snapshot(sess.ConnID),
		"roomId":         room.ID,
		"clientPlayerId": sess.ConnID,
	})
	s.broadcastRoomList()
}

func (s *Service) handleJoinRoom(sess *conn.Session, data json.RawMessage) {
	var req struct {
		RoomID     string `json:"roomId"`
		Password   string `json:"password"`
		PlayerName string `json:"playerName"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.lobbyError(sess, "入房参数错误")
		return
	}
	room, err := s.rooms.JoinRoom(sess, req.RoomID, req.Password, req.PlayerName)
	if err != nil {
		s.lobbyError(sess, err.Error())
		return
	}
	sess.SetInLobby(false)
	s.conns.Push(sess.ConnID, "joinedRoom", map[string]any{
		"gameState":      room.Engine.Snapshot(sess.ConnID),
		"roomId":         room.ID,
		"clientPlayerId": sess.ConnID,
	})
	s.broadcastRoomList()
}

func (s *Service) handleListRooms(sess *conn.Session, _ json.RawMessage) {
	s.conns.Push(sess.ConnID, "lobbyRoomList", s.rooms.ListRooms())
}

func (s *Service) handleLobbyChat(sess *conn.Session, data json.RawMessage) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Text == "" || len([]rune(req.Text)) > maxChatLen {
		s.lobbyError(sess, "聊天内容须在 1..150 字符")
		return
	}
	record := share.ChatRecord{
		ID:         uuid.NewString(),
		SenderName: sess.GetName(),
		Text:       req.Text,
		Timestamp:  time.Now().UnixMilli(),
		Type:       "chat",
	}
	s.conns.EachSession(func(other *conn.Session) {
		if other.GetInLobby() {
			s.conns.Push(other.ConnID, "lobbyChatMessage", record)
		}
	})
}

func (s *Service) handleLobbyLeave(sess *conn.Session, _ json.RawMessage) {
	sess.SetInLobby(false)
	s.rooms.LeaveRoom(sess)
}

// broadcastRoomList 房间增删后刷新大厅
func (s *Service) broadcastRoomList() {
	list := s.rooms.ListRooms()
	s.conns.EachSession(func(other *conn.Session) {
		if other.GetInLobby() {
			s.conns.Push(other.ConnID, "lobbyRoomList", list)
		}
	})
}

// ---------- 对局 ----------

// gameActionRequest 动作信封，type 决定余下字段
type gameActionRequest struct {
	RoomID string          `json:"roomId"`
	Action json.RawMessage `json:"action"`
}

type gameActionBody struct {
	Type    string   `json:"type"`
	TileID  string   `json:"tileId,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	TileIDs []string `json:"tileIds,omitempty"`
}

func (s *Service) handleGameAction(sess *conn.Session, data json.RawMessage) {
	var req gameActionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.gameError(sess, "动作格式错误")
		return
	}
	room, ok := s.memberRoom(sess, req.RoomID)
	if !ok {
		return
	}
	var body gameActionBody
	if err := json.Unmarshal(req.Action, &body); err != nil {
		s.gameError(sess, "动作格式错误")
		return
	}

	base := share.GameMessageEvent{UserID: sess.ConnID}
	var ev share.GameEvent
	switch body.Type {
	case "DrawTile":
		ev = &share.DrawTileEvent{GameMessageEvent: base}
	case "DiscardTile":
		ev = &share.DiscardTileEvent{GameMessageEvent: base, TileID: body.TileID}
	case "DeclareConcealedQuad":
		ev = &share.ConcealedQuadEvent{GameMessageEvent: base, Kind: body.Kind}
	case "UpgradeTripletToQuad":
		ev = &share.UpgradeQuadEvent{GameMessageEvent: base, Kind: body.Kind}
	case "ClaimTriplet":
		ev = &share.ClaimTripletEvent{GameMessageEvent: base}
	case "ClaimQuad":
		ev = &share.ClaimQuadEvent{GameMessageEvent: base}
	case "ClaimRun":
		ev = &share.ClaimRunEvent{GameMessageEvent: base, TileIDs: body.TileIDs}
	case "DeclareWin":
		ev = &share.DeclareWinEvent{GameMessageEvent: base}
	case "PassClaim":
		ev = &share.PassClaimEvent{GameMessageEvent: base}
	case "ConfirmNextRound":
		ev = &share.ConfirmNextRoundEvent{GameMessageEvent: base}
	case "RequestRematch":
		ev = &share.RequestRematchEvent{GameMessageEvent: base}
	default:
		s.gameError(sess, "未知动作类型")
		return
	}
	room.Engine.NotifyEvent(ev)
}

func (s *Service) handleGameChat(sess *conn.Session, data json.RawMessage) {
	var req struct {
		RoomID string `json:"roomId"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Text == "" || len([]rune(req.Text)) > maxChatLen {
		s.gameError(sess, "聊天内容须在 1..150 字符")
		return
	}
	room, ok := s.memberRoom(sess, req.RoomID)
	if !ok {
		return
	}
	room.Engine.PushChat(sess.ConnID, req.Text)
}

func (s *Service) handleRequestStart(sess *conn.Session, data json.RawMessage) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.gameError(sess, "参数错误")
		return
	}
	room, ok := s.memberRoom(sess, req.RoomID)
	if !ok {
		return
	}
	if err := room.Engine.StartMatch(sess.ConnID); err != nil {
		s.gameError(sess, err.Error())
		return
	}
	s.broadcastRoomList()
}

func (s *Service) handleQuitRoom(sess *conn.Session, _ json.RawMessage) {
	s.rooms.LeaveRoom(sess)
	sess.SetInLobby(true)
	s.conns.Push(sess.ConnID, "lobbyRoomList", s.rooms.ListRooms())
	s.broadcastRoomList()
}

// memberRoom 校验发送者确实是该房间成员
func (s *Service) memberRoom(sess *conn.Session, roomID string) (*Room, bool) {
	room, exists := s.rooms.GetPlayerRoom(sess.ConnID)
	if !exists || (roomID != "" && room.ID != roomID) {
		s.gameError(sess, "你不在这个房间里")
		return nil, false
	}
	return room, true
}

// handleDisconnect 连接断开：房间内标记离线，目录清路由
func (s *Service) handleDisconnect(sess *conn.Session) {
	log.Debug("会话断开: %s (%s)", sess.ConnID, sess.GetName())
	s.rooms.LeaveRoom(sess)
	s.broadcastRoomList()
}
