package game

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"xqmahjong/game/engines"
	"xqmahjong/game/share"
)

// Room 游戏房间壳：设置与引擎句柄
// 座位、牌局状态全部归引擎所有，房间只做目录项
type Room struct {
	ID        string
	Settings  share.RoomSettings
	HostName  string
	Engine    engines.Engine
	CreatedAt time.Time
}

// GenerateRoomID 格式：room_<timestamp>_<random>
func GenerateRoomID() string {
	timestamp := time.Now().Unix()
	randomBytes := make([]byte, 4)
	crand.Read(randomBytes)
	return fmt.Sprintf("room_%d_%s", timestamp, hex.EncodeToString(randomBytes))
}

// NewRoom 创建房间（引擎由外部克隆注入）
func NewRoom(engine engines.Engine, settings share.RoomSettings, hostName string) (*Room, error) {
	if engine == nil {
		return nil, fmt.Errorf("游戏引擎不能为空")
	}
	return &Room{
		ID:        GenerateRoomID(),
		Settings:  settings,
		HostName:  hostName,
		Engine:    engine,
		CreatedAt: time.Now(),
	}, nil
}

// Close 关闭房间并释放引擎资源
func (r *Room) Close() {
	if r.Engine != nil {
		r.Engine.Close()
	}
}

// RoomSummary 大厅列表条目
type RoomSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PlayersCount      int    `json:"playersCount"`
	TargetHumans      int    `json:"targetHumans"`
	CurrentHumans     int    `json:"currentHumans"`
	Status            string `json:"status"`
	PasswordProtected bool   `json:"passwordProtected"`
	Rounds            int    `json:"rounds"`
	HostName          string `json:"hostName"`
}

// Summary 生成列表条目
func (r *Room) Summary() RoomSummary {
	humans, seats, started := r.Engine.Summary()
	status := "waiting"
	if started {
		status = "playing"
	}
	return RoomSummary{
		ID:                r.ID,
		Name:              r.Settings.RoomName,
		PlayersCount:      seats,
		TargetHumans:      r.Settings.TargetHumans,
		CurrentHumans:     humans,
		Status:            status,
		PasswordProtected: r.Settings.Password != "",
		Rounds:            r.Settings.Rounds,
		HostName:          r.HostName,
	}
}
