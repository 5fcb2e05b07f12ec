package engines

import (
	"fmt"
	"sync"

	"xqmahjong/game/share"
)

type GameState int

const (
	GameWaiting    GameState = iota // 等待开始
	GameInProgress                  // 进行中
	GameFinished                    // 结束
)

// RoomHost 引擎回调宿主，由房间管理层实现
// 引擎只通过它向外推送消息、请求销毁房间
type RoomHost interface {
	PushUser(userID string, route string, payload any)
	RequestDestroyRoom(roomID string)
}

// Engine 每个游戏房间持有一个引擎实例（原型模式克隆而来）
type Engine interface {
	// Initialize 绑定房间与宿主，进入 WaitingForPlayers
	Initialize(roomID string, host RoomHost, settings share.RoomSettings) error

	// JoinSeat 分配最小空位，返回座位索引
	JoinSeat(userID, name string, isHost bool) (int, error)
	// LeaveSeat 对局外移除座位；对局中标记离线并由 AI 接管
	// 返回离开者是否房主、是否仍有在线真人
	LeaveSeat(userID string) (wasHost bool, stillManned bool)
	// RebindSeat 按展示名把离线座位换绑到新会话
	RebindSeat(name, newUserID string) (int, bool)
	// ReassignHost 房主转移到最小座位的在线真人，返回新房主会话 ID
	ReassignHost() (string, bool)

	// StartMatch 房主发起开局（按需 AI 补位）
	StartMatch(byUserID string) error
	// NotifyEvent 玩家动作入口，逐消息串行处理
	NotifyEvent(ev share.GameEvent)
	// PushChat 房间聊天透传
	PushChat(userID, text string)

	// Snapshot 为指定会话构造脱敏快照
	Snapshot(forUserID string) any
	// Summary 大厅列表所需的概要（人数、状态）
	Summary() (humans int, seats int, started bool)

	Clone() Engine
	Close()
}

// 原型注册表，按引擎类型克隆
const (
	XiangqiMahjong4pEngine int32 = iota
)

var (
	prototypeMu sync.RWMutex
	prototypes  = make(map[int32]Engine)
)

// RegisterPrototype 注入引擎原型（启动时调用）
func RegisterPrototype(engineType int32, engine Engine) {
	prototypeMu.Lock()
	defer prototypeMu.Unlock()
	prototypes[engineType] = engine
}

// NewEngine 根据类型克隆一个新引擎
func NewEngine(engineType int32) (Engine, error) {
	prototypeMu.RLock()
	prototype, exists := prototypes[engineType]
	prototypeMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("不支持的引擎类型: %d", engineType)
	}
	return prototype.Clone(), nil
}
