package conn

import (
	"sync"
)

// Session 一条连接的会话状态
type Session struct {
	sync.RWMutex
	ConnID  string // 连接 ID，同时作为玩家会话标识
	Name    string // setName 设置的展示名
	RoomID  string // 当前所在房间，空表示不在房间
	InLobby bool   // 是否在大厅频道
}

func NewSession(connID string) *Session {
	return &Session{ConnID: connID}
}

func (s *Session) SetName(name string) {
	s.Lock()
	s.Name = name
	s.Unlock()
}

func (s *Session) GetName() string {
	s.RLock()
	defer s.RUnlock()
	return s.Name
}

func (s *Session) SetRoomID(roomID string) {
	s.Lock()
	s.RoomID = roomID
	s.Unlock()
}

func (s *Session) GetRoomID() string {
	s.RLock()
	defer s.RUnlock()
	return s.RoomID
}

func (s *Session) SetInLobby(in bool) {
	s.Lock()
	s.InLobby = in
	s.Unlock()
}

func (s *Session) GetInLobby() bool {
	s.RLock()
	defer s.RUnlock()
	return s.InLobby
}
