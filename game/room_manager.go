package game

import (
	"fmt"
	"sync"

	"xqmahjong/common/log"
	"xqmahjong/conn"
	"xqmahjong/game/engines"
	"xqmahjong/game/share"
)

// RoomManager 房间目录
// 管理全部房间实例与玩家到房间的路由，同时充当引擎的推送宿主
type RoomManager struct {
	conns      *conn.Manager
	rooms      map[string]*Room  // roomID -> Room
	playerRoom map[string]string // connID -> roomID
	mu         sync.RWMutex
}

func NewRoomManager(conns *conn.Manager) *RoomManager {
	return &RoomManager{
		conns:      conns,
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
	}
}

// PushUser 引擎出站推送（engines.RoomHost）
func (rm *RoomManager) PushUser(userID string, route string, payload any) {
	rm.conns.Push(userID, route, payload)
}

// RequestDestroyRoom 引擎请求销毁房间（engines.RoomHost）
// 引擎可能持有自身锁，异步执行避免回环死锁
func (rm *RoomManager) RequestDestroyRoom(roomID string) {
	go rm.DestroyRoom(roomID)
}

// CreateRoom 创建房间并让发起者入座为房主
func (rm *RoomManager) CreateRoom(sess *conn.Session, settings share.RoomSettings) (*Room, error) {
	if sess.GetName() == "" {
		return nil, fmt.Errorf("请先设置昵称")
	}
	if settings.RoomName == "" {
		return nil, fmt.Errorf("房间名不能为空")
	}
	if settings.TargetHumans < 1 || settings.TargetHumans > 4 {
		return nil, fmt.Errorf("真人数量必须在 1..4")
	}
	switch settings.Rounds {
	case 1, 4, 8:
	default:
		return nil, fmt.Errorf("局数只支持 1/4/8")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if roomID, exists := rm.playerRoom[sess.ConnID]; exists {
		return nil, fmt.Errorf("你已在房间 %s 中", roomID)
	}

	engine, err := engines.NewEngine(engines.XiangqiMahjong4pEngine)
	if err != nil {
		return nil, err
	}
	room, err := NewRoom(engine, settings, sess.GetName())
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(room.ID, rm, settings); err != nil {
		return nil, err
	}
	if _, err := engine.JoinSeat(sess.ConnID, sess.GetName(), true); err != nil {
		engine.Close()
		return nil, err
	}

	rm.rooms[room.ID] = room
	rm.playerRoom[sess.ConnID] = room.ID
	sess.SetRoomID(room.ID)
	log.Info("创建房间 %s（%s），房主 %s", room.ID, settings.RoomName, sess.GetName())
	return room, nil
}

// JoinRoom 加入房间
// 展示名与某离线座位一致时按重连换绑，否则取最小空位
func (rm *RoomManager) JoinRoom(sess *conn.Session, roomID, password, playerName string) (*Room, error) {
	if playerName == "" {
		playerName = sess.GetName()
	}
	if playerName == "" {
		return nil, fmt.Errorf("请先设置昵称")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if existing, exists := rm.playerRoom[sess.ConnID]; exists {
		return nil, fmt.Errorf("你已在房间 %s 中", existing)
	}
	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, fmt.Errorf("房间不存在")
	}
	if room.Settings.Password != "" && room.Settings.Password != password {
		return nil, fmt.Errorf("房间密码错误")
	}

	// 断线重连：展示名匹配离线座位
	if _, ok := room.Engine.RebindSeat(playerName, sess.ConnID); ok {
		rm.playerRoom[sess.ConnID] = roomID
		sess.SetName(playerName)
		sess.SetRoomID(roomID)
		log.Info("玩家 %s 重连进入房间 %s", playerName, roomID)
		return room, nil
	}

	if _, err := room.Engine.JoinSeat(sess.ConnID, playerName, false); err != nil {
		return nil, err
	}
	rm.playerRoom[sess.ConnID] = roomID
	sess.SetName(playerName)
	sess.SetRoomID(roomID)
	return room, nil
}

// LeaveRoom 离开房间（含断线）
// 房主离开且房内仍有在线真人时转移房主
func (rm *RoomManager) LeaveRoom(sess *conn.Session) {
	rm.mu.Lock()
	roomID, exists := rm.playerRoom[sess.ConnID]
	if !exists {
		rm.mu.Unlock()
		return
	}
	delete(rm.playerRoom, sess.ConnID)
	room := rm.rooms[roomID]
	rm.mu.Unlock()

	sess.SetRoomID("")
	if room == nil {
		return
	}

	wasHost, stillManned := room.Engine.LeaveSeat(sess.ConnID)

	var newHostID string
	if wasHost && stillManned {
		if hostID, ok := room.Engine.ReassignHost(); ok {
			newHostID = hostID
			rm.mu.Lock()
			room.HostName = rm.hostNameLocked(room, hostID)
			rm.mu.Unlock()
		}
	}

	rm.notifyPlayerLeft(room, sess.ConnID, newHostID)

	// 等待阶段人走光了就直接回收
	_, seats, started := room.Engine.Summary()
	if !started && seats == 0 {
		rm.DestroyRoom(roomID)
	}
}

func (rm *RoomManager) hostNameLocked(room *Room, hostID string) string {
	// 引擎快照里带座位名，这里避免再穿透引擎锁，用会话名即可
	if v, ok := rm.conns.SessionName(hostID); ok {
		return v
	}
	return room.HostName
}

// notifyPlayerLeft 广播离开事件
func (rm *RoomManager) notifyPlayerLeft(room *Room, leftID, newHostID string) {
	payload := map[string]any{"playerId": leftID}
	if newHostID != "" {
		payload["newHostId"] = newHostID
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for connID, roomID := range rm.playerRoom {
		if roomID == room.ID {
			rm.conns.Push(connID, "gamePlayerLeft", payload)
		}
	}
}

// GetRoom 查询房间
func (rm *RoomManager) GetRoom(roomID string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, exists := rm.rooms[roomID]
	return room, exists
}

// GetPlayerRoom 查询玩家所在房间
func (rm *RoomManager) GetPlayerRoom(connID string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	roomID, exists := rm.playerRoom[connID]
	if !exists {
		return nil, false
	}
	room, exists := rm.rooms[roomID]
	return room, exists
}

// ListRooms 大厅列表
func (rm *RoomManager) ListRooms() []RoomSummary {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]RoomSummary, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		out = append(out, room.Summary())
	}
	return out
}

// DestroyRoom 销毁房间并清理路由
func (rm *RoomManager) DestroyRoom(roomID string) {
	rm.mu.Lock()
	room, exists := rm.rooms[roomID]
	if !exists {
		rm.mu.Unlock()
		return
	}
	delete(rm.rooms, roomID)
	var members []string
	for connID, rid := range rm.playerRoom {
		if rid == roomID {
			members = append(members, connID)
			delete(rm.playerRoom, connID)
		}
	}
	rm.mu.Unlock()

	for _, connID := range members {
		rm.conns.Push(connID, "gameError", map[string]string{"text": "房间已解散"})
	}
	room.Close()
	log.Info("销毁房间 %s", roomID)
}

// GetStats 统计（监控用）：房间数、路由内玩家数
func (rm *RoomManager) GetStats() (roomCount int, playerCount int) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms), len(rm.playerRoom)
}
