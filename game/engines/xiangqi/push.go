package xiangqi

import (
	"time"

	"github.com/google/uuid"

	"xqmahjong/game/share"
)

// 快照与推送
// 每次状态变更后为每个在线真人构造一份脱敏深拷贝快照
// 广播层只拿到值，不共享引擎内部状态

const hiddenKind = "back"

type TileView struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type MeldView struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Tiles    []TileView `json:"tiles"`
	IsOpen   bool       `json:"isOpen"`
	FromSeat int        `json:"fromSeat"`
}

type SeatView struct {
	Index          int        `json:"index"`
	Name           string     `json:"name"`
	IsHuman        bool       `json:"isHuman"`
	IsDealer       bool       `json:"isDealer"`
	IsHost         bool       `json:"isHost"`
	IsOnline       bool       `json:"isOnline"`
	Score          int        `json:"score"`
	HandCount      int        `json:"handCount"`
	Hand           []TileView `json:"hand"`
	Melds          []MeldView `json:"melds"`
	PendingClaims  []string   `json:"pendingClaims,omitempty"`
	ReadyNextRound bool       `json:"readyNextRound"`
}

type DiscardView struct {
	Tile      TileView `json:"tile"`
	Discarder int      `json:"discarder"`
}

// GameSnapshot 整房状态快照（按接收者脱敏）
type GameSnapshot struct {
	RoomID                    string             `json:"roomId"`
	RoomName                  string             `json:"roomName"`
	Phase                     string             `json:"phase"`
	Seats                     []SeatView         `json:"seats"`
	DiscardPile               []DiscardView      `json:"discardPile"`
	CurrentPlayerIndex        int                `json:"currentPlayerIndex"`
	DealerIndex               int                `json:"dealerIndex"`
	LastDiscarderIndex        int                `json:"lastDiscarderIndex"`
	LastDiscardedTile         *TileView          `json:"lastDiscardedTile,omitempty"`
	LastDrawnTile             *TileView          `json:"lastDrawnTile,omitempty"`
	TurnNumber                int                `json:"turnNumber"`
	Messages                  []share.ChatRecord `json:"messages"`
	WinnerIndex               *int               `json:"winnerIndex,omitempty"`
	WinType                   string             `json:"winType,omitempty"`
	WinningTile               *TileView          `json:"winningTile,omitempty"`
	WinningDiscarderIndex     *int               `json:"winningDiscarderIndex,omitempty"`
	IsDrawGame                bool               `json:"isDrawGame"`
	ChiOptions                [][]TileView       `json:"chiOptions,omitempty"`
	PlayerMakingClaimDecision *int               `json:"playerMakingClaimDecision,omitempty"`
	ActionTimer               int                `json:"actionTimer"`
	ActionTimerType           string             `json:"actionTimerType"`
	CurrentRound              int                `json:"currentRound"`
	NumberOfRounds            int                `json:"numberOfRounds"`
	MatchOver                 bool               `json:"matchOver"`
	NextRoundCountdown        int                `json:"nextRoundCountdown"`
}

// Announcement 动作播报（客户端短暂浮层）
type Announcement struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	PlayerID        int    `json:"playerId"`
	IsMultiHuTarget bool   `json:"isMultiHuTarget,omitempty"`
}

func tileView(t Tile) TileView {
	return TileView{Kind: t.Kind.String(), ID: t.ID}
}

func hiddenTileView() TileView {
	return TileView{Kind: hiddenKind}
}

// broadcastState 把当前状态推给所有在线真人（持锁调用）
func (eg *XiangqiMahjong4p) broadcastState() {
	if eg.host == nil {
		return
	}
	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat == nil || !seat.IsHuman || !seat.IsOnline {
			continue
		}
		eg.host.PushUser(seat.UserID, "gameStateUpdate", eg.snapshotFor(i))
	}
}

// Snapshot 为指定会话构造快照（入房 ack 用）
func (eg *XiangqiMahjong4p) Snapshot(forUserID string) any {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	idx, exists := eg.userSeat[forUserID]
	if !exists {
		idx = -1
	}
	return eg.snapshotFor(idx)
}

// snapshotFor 构造指定座位视角的快照；-1 表示旁观视角
func (eg *XiangqiMahjong4p) snapshotFor(viewer int) *GameSnapshot {
	revealAll := eg.phase == PhaseRoundOver || eg.phase == PhaseGameOver

	snap := &GameSnapshot{
		RoomID:             eg.roomID,
		RoomName:           eg.settings.RoomName,
		Phase:              eg.phase.String(),
		CurrentPlayerIndex: eg.currentPlayer,
		DealerIndex:        eg.dealerIndex,
		LastDiscarderIndex: eg.lastDiscarder,
		TurnNumber:         eg.turnNumber,
		Messages:           append([]share.ChatRecord(nil), eg.messages...),
		IsDrawGame:         eg.isDrawGame,
		ActionTimer:        eg.actionTimerRemaining,
		ActionTimerType:    eg.actionTimerRole.String(),
		CurrentRound:       eg.currentRound,
		NumberOfRounds:     eg.numberOfRounds,
		MatchOver:          eg.matchOver,
		NextRoundCountdown: eg.nextRoundCountdown,
	}

	if eg.lastDiscard != nil {
		v := tileView(*eg.lastDiscard)
		snap.LastDiscardedTile = &v
	}
	// 摸到的牌只有本人可见
	if eg.lastDrawn != nil && (revealAll || viewer == eg.currentPlayer) {
		v := tileView(*eg.lastDrawn)
		snap.LastDrawnTile = &v
	}
	if eg.winnerSeat >= 0 {
		w := eg.winnerSeat
		snap.WinnerIndex = &w
		snap.WinType = eg.winType
		if eg.winningTile != nil {
			v := tileView(*eg.winningTile)
			snap.WinningTile = &v
		}
		if eg.winningDiscarder >= 0 {
			d := eg.winningDiscarder
			snap.WinningDiscarderIndex = &d
		}
	}
	if eg.claimDecider >= 0 {
		d := eg.claimDecider
		snap.PlayerMakingClaimDecision = &d
		// 吃牌候选只给决策者本人
		if viewer == eg.claimDecider {
			for _, opt := range eg.chiOptions {
				snap.ChiOptions = append(snap.ChiOptions, []TileView{tileView(opt[0]), tileView(opt[1])})
			}
		}
	}

	for _, d := range eg.discards {
		snap.DiscardPile = append(snap.DiscardPile, DiscardView{Tile: tileView(d.Tile), Discarder: d.Discarder})
	}

	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat == nil {
			continue
		}
		sv := SeatView{
			Index:          seat.Index,
			Name:           seat.Name,
			IsHuman:        seat.IsHuman,
			IsDealer:       seat.IsDealer,
			IsHost:         seat.IsHost,
			IsOnline:       seat.IsOnline,
			Score:          seat.Score,
			HandCount:      len(seat.Hand),
			ReadyNextRound: seat.ReadyNextRound,
		}
		ownHand := revealAll || i == viewer
		for _, t := range seat.Hand {
			if ownHand {
				sv.Hand = append(sv.Hand, tileView(t))
			} else {
				sv.Hand = append(sv.Hand, hiddenTileView())
			}
		}
		for _, m := range seat.Melds {
			mv := MeldView{ID: m.ID, Kind: string(m.Kind), IsOpen: m.IsOpen, FromSeat: m.FromSeat}
			// 暗杠对外只展示整组牌背
			concealed := !m.IsOpen && !revealAll && i != viewer
			for _, t := range m.Tiles {
				if concealed {
					mv.Tiles = append(mv.Tiles, hiddenTileView())
				} else {
					mv.Tiles = append(mv.Tiles, tileView(t))
				}
			}
			sv.Melds = append(sv.Melds, mv)
		}
		if i == viewer || revealAll {
			for _, c := range seat.PendingClaims {
				sv.PendingClaims = append(sv.PendingClaims, string(c))
			}
		}
		snap.Seats = append(snap.Seats, sv)
	}

	return snap
}

// announceLocked 动作播报，推给所有在线真人
func (eg *XiangqiMahjong4p) announceLocked(text string, seatIdx int, multiHu bool) {
	if eg.host == nil {
		return
	}
	payload := Announcement{
		ID:              uuid.NewString(),
		Text:            text,
		PlayerID:        seatIdx,
		IsMultiHuTarget: multiHu,
	}
	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat == nil || !seat.IsHuman || !seat.IsOnline {
			continue
		}
		eg.host.PushUser(seat.UserID, "actionAnnouncement", payload)
	}
}

// pushErrorLocked 单播错误
func (eg *XiangqiMahjong4p) pushErrorLocked(userID, text string) {
	if eg.host == nil || userID == "" {
		return
	}
	eg.host.PushUser(userID, "gameError", map[string]string{"text": text})
}

// PushChat 房间聊天：记录进环形日志并广播
func (eg *XiangqiMahjong4p) PushChat(userID, text string) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	name := "?"
	if idx, exists := eg.userSeat[userID]; exists {
		name = eg.seats[idx].Name
	}
	record := share.ChatRecord{
		ID:         uuid.NewString(),
		SenderName: name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		Type:       "chat",
	}
	// 最新在前，封顶 50 条
	eg.messages = append([]share.ChatRecord{record}, eg.messages...)
	if len(eg.messages) > messageLogCap {
		eg.messages = eg.messages[:messageLogCap]
	}

	if eg.host == nil {
		return
	}
	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat == nil || !seat.IsHuman || !seat.IsOnline {
			continue
		}
		eg.host.PushUser(seat.UserID, "gameChatMessage", record)
	}
}
