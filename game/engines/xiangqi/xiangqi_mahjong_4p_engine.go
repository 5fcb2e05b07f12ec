package xiangqi

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"xqmahjong/common/log"
	"xqmahjong/game/engines"
	"xqmahjong/game/share"
)

// RoomPhase 房间状态机阶段
type RoomPhase int

const (
	PhaseLoading RoomPhase = iota
	PhaseWaitingForPlayers
	PhaseDealing
	PhasePlayerTurnStart
	PhasePlayerDrawn
	PhaseAwaitingDiscard
	PhaseTileDiscarded
	PhaseAwaitingClaimsResolution
	PhaseAwaitingPlayerClaimAction
	PhaseActionPendingChiChoice
	PhaseRoundOver
	PhaseGameOver
)

func (p RoomPhase) String() string {
	switch p {
	case PhaseLoading:
		return "Loading"
	case PhaseWaitingForPlayers:
		return "WaitingForPlayers"
	case PhaseDealing:
		return "Dealing"
	case PhasePlayerTurnStart:
		return "PlayerTurnStart"
	case PhasePlayerDrawn:
		return "PlayerDrawn"
	case PhaseAwaitingDiscard:
		return "AwaitingDiscard"
	case PhaseTileDiscarded:
		return "TileDiscarded"
	case PhaseAwaitingClaimsResolution:
		return "AwaitingClaimsResolution"
	case PhaseAwaitingPlayerClaimAction:
		return "AwaitingPlayerClaimAction"
	case PhaseActionPendingChiChoice:
		return "ActionPendingChiChoice"
	case PhaseRoundOver:
		return "RoundOver"
	case PhaseGameOver:
		return "GameOver"
	}
	return "Unknown"
}

// 和牌方式
const (
	WinSelfDrawn = "selfDrawn"
	WinDiscard   = "discard"
	WinHeaven    = "heaven"
)

// 结算分值
const (
	scoreSelfDrawWin  = 3
	scoreSelfDrawPay  = 1
	scoreDiscardWin   = 2
	scoreDiscardPay   = 2
	messageLogCap     = 50
	dealerInitialHand = 8
	normalInitialHand = 7
)

// Tuning 节奏参数，从配置拷贝，测试可缩短
type Tuning struct {
	TurnSeconds      int
	ClaimSeconds     int
	AiThinkMin       time.Duration
	AiThinkMax       time.Duration
	NextRoundSeconds int
	EmptyRoomSeconds int
}

func DefaultTuning() Tuning {
	return Tuning{
		TurnSeconds:      30,
		ClaimSeconds:     30,
		AiThinkMin:       700 * time.Millisecond,
		AiThinkMax:       2000 * time.Millisecond,
		NextRoundSeconds: 10,
		EmptyRoomSeconds: 60,
	}
}

// DiscardedTileInfo 弃牌与出牌者，牌堆末尾为最新
type DiscardedTileInfo struct {
	Tile      Tile `json:"tile"`
	Discarder int  `json:"discarder"`
}

type claimEntry struct {
	Seat     int
	Priority int
}

// XiangqiMahjong4p 象棋麻将四人房间引擎
// 单写者模型：同一房间的全部状态变更都持 mu 串行执行
// 计时器与 AI 通过 NotifyEvent 回到同一入口，不直接改状态
type XiangqiMahjong4p struct {
	mu sync.Mutex

	state    engines.GameState
	host     engines.RoomHost
	roomID   string
	settings share.RoomSettings
	tuning   Tuning
	rng      *rand.Rand
	searcher *Searcher
	timers   *TimerBank

	seats    [4]*Seat
	userSeat map[string]int // 会话 ID -> 座位

	phase         RoomPhase
	deck          []Tile
	discards      []DiscardedTileInfo
	currentPlayer int
	dealerIndex   int
	lastDiscarder int
	lastDiscard   *Tile
	lastDrawn     *Tile
	turnNumber    int
	messages      []share.ChatRecord // 最新在前，上限 50

	winnerSeat       int
	winType          string
	winningTile      *Tile
	winningDiscarder int
	isDrawGame       bool
	prevRoundWinner  int

	claimQueue   []claimEntry
	claimDecider int
	chiOptions   [][2]Tile
	winCandSeats []int

	actionTimerRole      TimerRole
	actionTimerRemaining int
	actionTimerGen       uint64

	currentRound       int
	numberOfRounds     int
	matchOver          bool
	nextRoundCountdown int

	closed bool
}

// NewXiangqiMahjong4p 创建引擎原型
func NewXiangqiMahjong4p(tuning Tuning) *XiangqiMahjong4p {
	return &XiangqiMahjong4p{
		state:            engines.GameWaiting,
		tuning:           tuning,
		phase:            PhaseLoading,
		winnerSeat:       -1,
		claimDecider:     -1,
		lastDiscarder:    -1,
		winningDiscarder: -1,
		prevRoundWinner:  -1,
		userSeat:         make(map[string]int),
	}
}

// Clone 原型克隆，每个房间一个独立实例
func (eg *XiangqiMahjong4p) Clone() engines.Engine {
	return NewXiangqiMahjong4p(eg.tuning)
}

// Initialize 绑定房间与宿主
func (eg *XiangqiMahjong4p) Initialize(roomID string, host engines.RoomHost, settings share.RoomSettings) error {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	if host == nil {
		return fmt.Errorf("宿主不能为空")
	}
	eg.roomID = roomID
	eg.host = host
	eg.settings = settings
	eg.numberOfRounds = settings.Rounds
	if eg.numberOfRounds <= 0 {
		eg.numberOfRounds = 1
	}
	eg.rng = rand.New(rand.NewSource(cryptoSeed()))
	eg.searcher = NewSearcher()
	eg.timers = NewTimerBank(eg.NotifyEvent)
	eg.phase = PhaseWaitingForPlayers
	return nil
}

// SetRand 注入随机源（测试复现用）
func (eg *XiangqiMahjong4p) SetRand(rng *rand.Rand) {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	eg.rng = rng
}

// ---------- 座位管理 ----------

// JoinSeat 分配最小空位
func (eg *XiangqiMahjong4p) JoinSeat(userID, name string, isHost bool) (int, error) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	if eg.phase != PhaseWaitingForPlayers {
		return -1, fmt.Errorf("对局已开始，无法加入")
	}
	for i := 0; i < 4; i++ {
		if eg.seats[i] != nil {
			continue
		}
		seat := NewSeat(i, name, userID, true)
		seat.IsHost = isHost
		eg.seats[i] = seat
		eg.userSeat[userID] = i
		log.Info("房间[%s] 玩家 %s 入座 %d", eg.roomID, name, i)
		eg.broadcastState()
		return i, nil
	}
	return -1, fmt.Errorf("房间已满")
}

// LeaveSeat 离开处理
// 等待阶段直接移除；对局中保留座位并标记离线，由 AI 接管
func (eg *XiangqiMahjong4p) LeaveSeat(userID string) (bool, bool) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	idx, exists := eg.userSeat[userID]
	if !exists {
		return false, eg.hasOnlineHumanLocked()
	}
	seat := eg.seats[idx]
	wasHost := seat.IsHost
	delete(eg.userSeat, userID)

	if eg.phase == PhaseWaitingForPlayers {
		eg.seats[idx] = nil
		log.Info("房间[%s] 玩家 %s 离座 %d", eg.roomID, seat.Name, idx)
		eg.broadcastState()
	} else {
		seat.IsOnline = false
		log.Info("房间[%s] 玩家 %s 掉线，座位 %d 交由 AI 托管", eg.roomID, seat.Name, idx)
		if !eg.hasOnlineHumanLocked() {
			eg.forceTerminateLocked()
			return wasHost, false
		}
		// 掉线座位正持有动作时立刻换成 AI 节奏
		if eg.seatHoldsActionLocked(idx) {
			eg.timers.Cancel(TimerTurn)
			eg.timers.Cancel(TimerClaim)
			eg.scheduleActorLocked()
		}
		eg.broadcastState()
	}

	if !eg.hasOnlineHumanLocked() {
		eg.timers.StartDelay(TimerEmptyRoom, time.Duration(eg.tuning.EmptyRoomSeconds)*time.Second, -1)
		return wasHost, false
	}
	return wasHost, true
}

// RebindSeat 按展示名把离线座位换绑到新会话（断线重连）
func (eg *XiangqiMahjong4p) RebindSeat(name, newUserID string) (int, bool) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat == nil || !seat.IsHuman || seat.IsOnline || seat.Name != name {
			continue
		}
		delete(eg.userSeat, seat.UserID)
		seat.UserID = newUserID
		seat.IsOnline = true
		eg.userSeat[newUserID] = i
		eg.timers.Cancel(TimerEmptyRoom)
		log.Info("房间[%s] 玩家 %s 重连回座位 %d", eg.roomID, name, i)
		// 重连座位正持有动作时恢复真人节奏
		if eg.seatHoldsActionLocked(i) {
			eg.timers.Cancel(TimerAIThink)
			eg.scheduleActorLocked()
		}
		eg.broadcastState()
		return i, true
	}
	return -1, false
}

// ReassignHost 房主转移到最小座位的在线真人
func (eg *XiangqiMahjong4p) ReassignHost() (string, bool) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	for i := 0; i < 4; i++ {
		if eg.seats[i] != nil {
			eg.seats[i].IsHost = false
		}
	}
	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat != nil && seat.IsHuman && seat.IsOnline {
			seat.IsHost = true
			eg.broadcastState()
			return seat.UserID, true
		}
	}
	return "", false
}

// Summary 大厅列表概要
func (eg *XiangqiMahjong4p) Summary() (humans int, seatCount int, started bool) {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	for i := 0; i < 4; i++ {
		if eg.seats[i] == nil {
			continue
		}
		seatCount++
		if eg.seats[i].IsHuman {
			humans++
		}
	}
	return humans, seatCount, eg.phase != PhaseWaitingForPlayers
}

// ---------- 开局与回合 ----------

// StartMatch 房主发起开局
func (eg *XiangqiMahjong4p) StartMatch(byUserID string) error {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	idx, exists := eg.userSeat[byUserID]
	if !exists || !eg.seats[idx].IsHost {
		return fmt.Errorf("只有房主可以开始对局")
	}
	if eg.phase != PhaseWaitingForPlayers {
		return fmt.Errorf("对局已开始")
	}

	occupied := 0
	for i := 0; i < 4; i++ {
		if eg.seats[i] != nil {
			occupied++
		}
	}
	if occupied < 4 {
		if !eg.settings.FillWithAI {
			return fmt.Errorf("人数不足，且未开启 AI 补位")
		}
		aiNo := 1
		for i := 0; i < 4; i++ {
			if eg.seats[i] == nil {
				eg.seats[i] = NewSeat(i, fmt.Sprintf("电脑%d", aiNo), "", false)
				aiNo++
			}
		}
	}

	eg.state = engines.GameInProgress
	eg.currentRound = 1
	eg.matchOver = false
	for i := 0; i < 4; i++ {
		eg.seats[i].Score = 0
	}
	eg.dealerIndex = eg.rng.Intn(4)
	eg.prevRoundWinner = -1
	log.Info("房间[%s] 开局，庄家座位 %d，共 %d 局", eg.roomID, eg.dealerIndex, eg.numberOfRounds)
	eg.startRoundLocked()
	return nil
}

// startRoundLocked 一局初始化：洗牌、清台、发牌
func (eg *XiangqiMahjong4p) startRoundLocked() {
	eg.phase = PhaseDealing
	eg.deck = Shuffle(NewDeck(), eg.rng)
	eg.discards = eg.discards[:0]
	eg.lastDiscard = nil
	eg.lastDrawn = nil
	eg.lastDiscarder = -1
	eg.winnerSeat = -1
	eg.winType = ""
	eg.winningTile = nil
	eg.winningDiscarder = -1
	eg.isDrawGame = false
	eg.turnNumber = 1
	eg.nextRoundCountdown = 0
	eg.clearClaimsLocked()

	for i := 0; i < 4; i++ {
		eg.seats[i].ResetRound()
		eg.seats[i].IsDealer = i == eg.dealerIndex
	}

	// 从庄家起顺时针发牌：庄家 8 张（含首张"摸牌"），其余 7 张
	for offset := 0; offset < 4; offset++ {
		idx := (eg.dealerIndex + offset) % 4
		count := normalInitialHand
		if idx == eg.dealerIndex {
			count = dealerInitialHand
		}
		for n := 0; n < count; n++ {
			eg.seats[idx].AddTile(eg.popDeckLocked())
		}
		VisualSort(eg.seats[idx].Hand)
	}

	eg.currentPlayer = eg.dealerIndex
	if len(eg.seats[eg.dealerIndex].Hand) == dealerInitialHand {
		eg.phase = PhaseAwaitingDiscard
	} else {
		eg.phase = PhasePlayerTurnStart
	}
	log.Info("房间[%s] 第 %d/%d 局发牌完成，庄家 %d", eg.roomID, eg.currentRound, eg.numberOfRounds, eg.dealerIndex)
	eg.broadcastState()
	eg.scheduleActorLocked()
}

func (eg *XiangqiMahjong4p) popDeckLocked() Tile {
	t := eg.deck[0]
	eg.deck = eg.deck[1:]
	return t
}

// ---------- 事件入口 ----------

// NotifyEvent 所有玩家动作与合成事件的唯一入口
func (eg *XiangqiMahjong4p) NotifyEvent(ev share.GameEvent) {
	if ev == nil {
		return
	}
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.closed {
		return
	}
	eg.processEventLocked(ev)
}

func (eg *XiangqiMahjong4p) processEventLocked(ev share.GameEvent) {
	switch e := ev.(type) {
	case *TimerTickEvent:
		eg.handleTimerTickLocked(e)
	case *TimerExpireEvent:
		eg.handleTimerExpireLocked(e)
	case *share.DrawTileEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleDrawLocked(seat, false) })
	case *share.DiscardTileEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleDiscardLocked(seat, e.TileID, false) })
	case *share.ConcealedQuadEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleConcealedQuadLocked(seat, e.Kind) })
	case *share.UpgradeQuadEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleUpgradeQuadLocked(seat, e.Kind) })
	case *share.ClaimTripletEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleClaimLocked(seat, ClaimTriplet, nil) })
	case *share.ClaimQuadEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleClaimLocked(seat, ClaimQuad, nil) })
	case *share.ClaimRunEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleClaimLocked(seat, ClaimRun, e.TileIDs) })
	case *share.DeclareWinEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleDeclareWinLocked(seat) })
	case *share.PassClaimEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handlePassLocked(seat) })
	case *share.ConfirmNextRoundEvent:
		eg.withSeatGuard(e.GetUserID(), func(seat *Seat) { eg.handleConfirmNextRoundLocked(seat) })
	case *share.RequestRematchEvent:
		eg.pushErrorLocked(e.GetUserID(), "暂不支持再战")
	default:
		log.Warn("房间[%s] 不支持的事件类型: %s", eg.roomID, ev.GetEventType())
	}
}

// withSeatGuard 定位座位并占用动作槽（并发提交防抖）
func (eg *XiangqiMahjong4p) withSeatGuard(userID string, fn func(*Seat)) {
	idx, exists := eg.userSeat[userID]
	if !exists {
		eg.pushErrorLocked(userID, "你不在本房间的座位上")
		return
	}
	seat := eg.seats[idx]
	if !seat.BeginAction() {
		eg.pushErrorLocked(userID, "上一个操作仍在处理中")
		return
	}
	defer seat.EndAction()
	fn(seat)
}

// ---------- 回合动作 ----------

// handleDrawLocked 摸牌；auto 表示超时或 AI 代行
func (eg *XiangqiMahjong4p) handleDrawLocked(seat *Seat, auto bool) {
	if eg.phase != PhasePlayerTurnStart || seat.Index != eg.currentPlayer {
		eg.rejectLocked(seat, "现在不能摸牌")
		return
	}
	if len(eg.deck) == 0 {
		eg.endRoundDrawLocked()
		return
	}
	t := eg.popDeckLocked()
	seat.AddTile(t)
	eg.lastDrawn = &t
	eg.phase = PhasePlayerDrawn
	log.Debug("房间[%s] 座位 %d 摸牌 %s auto=%v", eg.roomID, seat.Index, t.ID, auto)
	eg.broadcastState()
	eg.scheduleActorLocked()
}

// handleDiscardLocked 出牌：摸到的或任意手牌
func (eg *XiangqiMahjong4p) handleDiscardLocked(seat *Seat, tileID string, auto bool) {
	if (eg.phase != PhasePlayerDrawn && eg.phase != PhaseAwaitingDiscard) || seat.Index != eg.currentPlayer {
		eg.rejectLocked(seat, "现在不能出牌")
		return
	}
	t, ok := seat.RemoveTileByID(tileID)
	if !ok {
		eg.rejectLocked(seat, "手里没有这张牌")
		return
	}

	eg.discards = append(eg.discards, DiscardedTileInfo{Tile: t, Discarder: seat.Index})
	eg.lastDiscard = &t
	eg.lastDiscarder = seat.Index
	eg.lastDrawn = nil
	VisualSort(seat.Hand)
	eg.phase = PhaseTileDiscarded
	log.Debug("房间[%s] 座位 %d 打出 %s auto=%v", eg.roomID, seat.Index, t.ID, auto)
	eg.announceLocked(fmt.Sprintf("%s 打出 %s", seat.Name, t.Kind), seat.Index, false)
	eg.broadcastState()

	eg.resolveClaimsLocked(t, seat.Index)
}

// handleConcealedQuadLocked 暗杠，成功后摸补张
func (eg *XiangqiMahjong4p) handleConcealedQuadLocked(seat *Seat, kindName string) {
	if (eg.phase != PhasePlayerTurnStart && eg.phase != PhasePlayerDrawn) || seat.Index != eg.currentPlayer {
		eg.rejectLocked(seat, "现在不能暗杠")
		return
	}
	kind, ok := KindFromName(kindName)
	if !ok {
		eg.rejectLocked(seat, "未知牌种")
		return
	}
	rest, removed, err := RemoveN(seat.Hand, kind, 4)
	if err != nil {
		eg.rejectLocked(seat, "凑不满四张，不能暗杠")
		return
	}
	seat.Hand = rest
	seat.Melds = append(seat.Melds, Meld{
		ID:       eg.newMeldID(),
		Kind:     MeldQuad,
		Tiles:    sortMeldTiles(removed),
		IsOpen:   false,
		FromSeat: -1,
	})
	eg.announceLocked(fmt.Sprintf("%s 暗杠", seat.Name), seat.Index, false)
	eg.replacementDrawLocked(seat)
}

// handleUpgradeQuadLocked 摸牌补杠：已亮刻子原位升级
func (eg *XiangqiMahjong4p) handleUpgradeQuadLocked(seat *Seat, kindName string) {
	if (eg.phase != PhasePlayerTurnStart && eg.phase != PhasePlayerDrawn) || seat.Index != eg.currentPlayer {
		eg.rejectLocked(seat, "现在不能补杠")
		return
	}
	kind, ok := KindFromName(kindName)
	if !ok {
		eg.rejectLocked(seat, "未知牌种")
		return
	}
	meldIdx := -1
	for i, m := range seat.Melds {
		if m.Kind == MeldTriplet && m.IsOpen && len(m.Tiles) > 0 && m.Tiles[0].Kind == kind {
			meldIdx = i
			break
		}
	}
	if meldIdx == -1 {
		eg.rejectLocked(seat, "没有可升级的刻子")
		return
	}
	rest, removed, err := RemoveN(seat.Hand, kind, 1)
	if err != nil {
		eg.rejectLocked(seat, "手里没有第四张")
		return
	}
	seat.Hand = rest
	meld := &seat.Melds[meldIdx]
	meld.Kind = MeldQuad
	meld.Tiles = sortMeldTiles(append(meld.Tiles, removed...))
	eg.announceLocked(fmt.Sprintf("%s 补杠", seat.Name), seat.Index, false)
	eg.replacementDrawLocked(seat)
}

// replacementDrawLocked 杠后补张；牌库空则直接进入出牌
func (eg *XiangqiMahjong4p) replacementDrawLocked(seat *Seat) {
	if len(eg.deck) == 0 {
		eg.lastDrawn = nil
		eg.phase = PhaseAwaitingDiscard
	} else {
		t := eg.popDeckLocked()
		seat.AddTile(t)
		eg.lastDrawn = &t
		eg.phase = PhasePlayerDrawn
	}
	eg.broadcastState()
	eg.scheduleActorLocked()
}

// handleDeclareWinLocked 自摸 / 天和宣告
func (eg *XiangqiMahjong4p) handleDeclareWinLocked(seat *Seat) {
	// 天和：庄家首巡在初始 8 张上直接宣告
	heavenEligible := seat.Index == eg.dealerIndex &&
		eg.phase == PhaseAwaitingDiscard &&
		eg.turnNumber == 1 && len(eg.discards) == 0 && len(seat.Melds) == 0

	if eg.phase == PhasePlayerDrawn && seat.Index == eg.currentPlayer {
		if !CheckWin(seat.Hand, seat.Melds).Win {
			eg.rejectLocked(seat, "没有和牌，不能宣告")
			return
		}
		eg.endRoundWinLocked(seat.Index, WinSelfDrawn, eg.lastDrawn, -1, false)
		return
	}
	if heavenEligible {
		if !CheckWin(seat.Hand, seat.Melds).Win {
			eg.rejectLocked(seat, "没有和牌，不能宣告")
			return
		}
		eg.endRoundWinLocked(seat.Index, WinHeaven, nil, -1, false)
		return
	}
	// 荣和走鸣牌决策分支
	if eg.phase == PhaseAwaitingPlayerClaimAction && seat.Index == eg.claimDecider {
		eg.handleClaimLocked(seat, ClaimWin, nil)
		return
	}
	eg.rejectLocked(seat, "现在不能宣告和牌")
}

func (eg *XiangqiMahjong4p) handleConfirmNextRoundLocked(seat *Seat) {
	if eg.phase != PhaseRoundOver {
		eg.rejectLocked(seat, "现在没有待确认的下一局")
		return
	}
	if !seat.IsHuman {
		return
	}
	seat.ReadyNextRound = true

	allReady := true
	for i := 0; i < 4; i++ {
		s := eg.seats[i]
		if s != nil && s.IsHuman && s.IsOnline && !s.ReadyNextRound {
			allReady = false
			break
		}
	}
	if allReady {
		eg.timers.Cancel(TimerNextRound)
		eg.startNextRoundLocked()
		return
	}
	eg.broadcastState()
}

// ---------- 回合推进 ----------

// advanceTurnLocked 控制权交给指定座位
func (eg *XiangqiMahjong4p) advanceTurnLocked(next int) {
	eg.currentPlayer = next
	eg.turnNumber++
	eg.phase = PhasePlayerTurnStart
	eg.broadcastState()
	eg.scheduleActorLocked()
}

// seatHoldsActionLocked 座位当前是否持有行动权
func (eg *XiangqiMahjong4p) seatHoldsActionLocked(idx int) bool {
	switch eg.phase {
	case PhasePlayerTurnStart, PhasePlayerDrawn, PhaseAwaitingDiscard:
		return idx == eg.currentPlayer
	case PhaseAwaitingPlayerClaimAction, PhaseActionPendingChiChoice:
		return idx == eg.claimDecider
	}
	return false
}

// scheduleActorLocked 按当前阶段为行动者布置计时
// 真人在线走倒计时，AI 或离线真人走思考延时
func (eg *XiangqiMahjong4p) scheduleActorLocked() {
	eg.timers.Cancel(TimerTurn)
	eg.timers.Cancel(TimerClaim)
	eg.timers.Cancel(TimerAIThink)
	eg.actionTimerRole = TimerNone
	eg.actionTimerRemaining = 0

	var actor int
	var role TimerRole
	var seconds int
	switch eg.phase {
	case PhasePlayerTurnStart, PhasePlayerDrawn, PhaseAwaitingDiscard:
		actor = eg.currentPlayer
		role = TimerTurn
		seconds = eg.tuning.TurnSeconds
	case PhaseAwaitingPlayerClaimAction, PhaseActionPendingChiChoice:
		actor = eg.claimDecider
		role = TimerClaim
		seconds = eg.tuning.ClaimSeconds
	default:
		return
	}

	seat := eg.seats[actor]
	if seat == nil {
		log.Error("房间[%s] 行动座位 %d 不存在", eg.roomID, actor)
		return
	}
	if seat.IsHuman && seat.IsOnline {
		eg.actionTimerRole = role
		eg.actionTimerRemaining = seconds
		eg.actionTimerGen = eg.timers.StartCountdown(role, seconds, actor)
	} else {
		delay := eg.tuning.AiThinkMin
		if eg.tuning.AiThinkMax > eg.tuning.AiThinkMin {
			delay += time.Duration(eg.rng.Int63n(int64(eg.tuning.AiThinkMax - eg.tuning.AiThinkMin)))
		}
		eg.timers.StartDelay(TimerAIThink, delay, actor)
	}
}

// ---------- 计时事件 ----------

func (eg *XiangqiMahjong4p) handleTimerTickLocked(e *TimerTickEvent) {
	if !eg.timers.Matches(e.Role, e.Gen) {
		return
	}
	if eg.actionTimerRole == e.Role {
		eg.actionTimerRemaining = e.Remaining
	}
	if e.Role == TimerNextRound {
		eg.nextRoundCountdown = e.Remaining
	}
	eg.broadcastState()
}

func (eg *XiangqiMahjong4p) handleTimerExpireLocked(e *TimerExpireEvent) {
	// 新鲜度检查：已被顶掉或取消的计时器到点后是空操作
	if !eg.timers.Matches(e.Role, e.Gen) {
		return
	}
	eg.timers.Release(e.Role, e.Gen)

	switch e.Role {
	case TimerTurn:
		eg.handleTurnTimeoutLocked(e.Seat)
	case TimerClaim:
		if eg.phase == PhaseAwaitingPlayerClaimAction && e.Seat == eg.claimDecider {
			log.Info("房间[%s] 座位 %d 鸣牌超时，自动过", eg.roomID, e.Seat)
			eg.handlePassLocked(eg.seats[e.Seat])
		}
	case TimerAIThink:
		if eg.seatHoldsActionLocked(e.Seat) {
			eg.runAILocked(eg.seats[e.Seat])
		}
	case TimerNextRound:
		if eg.phase == PhaseRoundOver {
			eg.startNextRoundLocked()
		}
	case TimerEmptyRoom:
		log.Info("房间[%s] 空置到期，请求销毁", eg.roomID)
		if eg.host != nil {
			eg.host.RequestDestroyRoom(eg.roomID)
		}
	}
}

// handleTurnTimeoutLocked 回合超时的确定性默认动作
func (eg *XiangqiMahjong4p) handleTurnTimeoutLocked(seatIdx int) {
	if seatIdx != eg.currentPlayer {
		return
	}
	seat := eg.seats[seatIdx]
	switch eg.phase {
	case PhasePlayerTurnStart:
		log.Info("房间[%s] 座位 %d 摸牌超时，自动摸牌", eg.roomID, seatIdx)
		eg.handleDrawLocked(seat, true)
	case PhasePlayerDrawn:
		tileID := ""
		if eg.lastDrawn != nil {
			tileID = eg.lastDrawn.ID
		} else if len(seat.Hand) > 0 {
			tileID = seat.Hand[0].ID
		}
		log.Info("房间[%s] 座位 %d 出牌超时，自动打出 %s", eg.roomID, seatIdx, tileID)
		eg.handleDiscardLocked(seat, tileID, true)
	case PhaseAwaitingDiscard:
		if len(seat.Hand) == 0 {
			log.Error("房间[%s] 座位 %d 手牌为空，无法自动出牌", eg.roomID, seatIdx)
			return
		}
		log.Info("房间[%s] 座位 %d 出牌超时，自动打出首张", eg.roomID, seatIdx)
		eg.handleDiscardLocked(seat, seat.Hand[0].ID, true)
	}
}

// ---------- 结束与结算 ----------

// endRoundWinLocked 和牌结束一局
func (eg *XiangqiMahjong4p) endRoundWinLocked(winner int, winType string, winningTile *Tile, discarder int, multiHu bool) {
	eg.cancelPlayTimersLocked()
	eg.winnerSeat = winner
	eg.winType = winType
	eg.winningTile = winningTile
	eg.winningDiscarder = discarder
	eg.isDrawGame = false
	eg.prevRoundWinner = winner
	eg.clearClaimsLocked()

	switch winType {
	case WinDiscard:
		eg.seats[winner].Score += scoreDiscardWin
		if discarder >= 0 {
			eg.seats[discarder].Score -= scoreDiscardPay
		}
	default: // 自摸、天和三家付
		eg.seats[winner].Score += scoreSelfDrawWin
		for i := 0; i < 4; i++ {
			if i != winner {
				eg.seats[i].Score -= scoreSelfDrawPay
			}
		}
	}

	eg.announceLocked(fmt.Sprintf("%s 和牌！", eg.seats[winner].Name), winner, multiHu)
	log.Info("房间[%s] 第 %d 局结束：座位 %d %s 和牌", eg.roomID, eg.currentRound, winner, winType)
	eg.finishRoundLocked()
}

// endRoundDrawLocked 牌库摸空，流局
func (eg *XiangqiMahjong4p) endRoundDrawLocked() {
	eg.cancelPlayTimersLocked()
	eg.winnerSeat = -1
	eg.winType = ""
	eg.winningTile = nil
	eg.winningDiscarder = -1
	eg.isDrawGame = true
	eg.prevRoundWinner = -1
	eg.clearClaimsLocked()
	eg.announceLocked("牌库摸空，本局流局", -1, false)
	log.Info("房间[%s] 第 %d 局流局", eg.roomID, eg.currentRound)
	eg.finishRoundLocked()
}

func (eg *XiangqiMahjong4p) finishRoundLocked() {
	if eg.currentRound >= eg.numberOfRounds {
		eg.phase = PhaseGameOver
		eg.matchOver = true
		eg.state = engines.GameFinished
		eg.nextRoundCountdown = 0
		log.Info("房间[%s] 对局全部结束", eg.roomID)
		eg.broadcastState()
		eg.timers.StartDelay(TimerEmptyRoom, time.Duration(eg.tuning.EmptyRoomSeconds)*time.Second, -1)
		return
	}
	eg.phase = PhaseRoundOver
	eg.nextRoundCountdown = eg.tuning.NextRoundSeconds
	for i := 0; i < 4; i++ {
		eg.seats[i].ReadyNextRound = false
	}
	eg.broadcastState()
	eg.timers.StartCountdown(TimerNextRound, eg.tuning.NextRoundSeconds, -1)
}

// startNextRoundLocked 局间推进；流局或庄家和牌则连庄
func (eg *XiangqiMahjong4p) startNextRoundLocked() {
	eg.currentRound++
	dealerKeeps := eg.prevRoundWinner == eg.dealerIndex || eg.prevRoundWinner == -1
	if !dealerKeeps {
		eg.dealerIndex = (eg.dealerIndex + 1) % 4
	}
	eg.startRoundLocked()
}

// forceTerminateLocked 全员真人离线，强制终止
func (eg *XiangqiMahjong4p) forceTerminateLocked() {
	eg.cancelPlayTimersLocked()
	eg.timers.Cancel(TimerNextRound)
	eg.phase = PhaseGameOver
	eg.matchOver = true
	eg.isDrawGame = eg.winnerSeat == -1
	eg.state = engines.GameFinished
	log.Warn("房间[%s] 所有真人离线，对局强制终止", eg.roomID)
	eg.timers.StartDelay(TimerEmptyRoom, time.Duration(eg.tuning.EmptyRoomSeconds)*time.Second, -1)
}

func (eg *XiangqiMahjong4p) cancelPlayTimersLocked() {
	eg.timers.Cancel(TimerTurn)
	eg.timers.Cancel(TimerClaim)
	eg.timers.Cancel(TimerAIThink)
	eg.actionTimerRole = TimerNone
	eg.actionTimerRemaining = 0
}

func (eg *XiangqiMahjong4p) hasOnlineHumanLocked() bool {
	for i := 0; i < 4; i++ {
		seat := eg.seats[i]
		if seat != nil && seat.IsHuman && seat.IsOnline {
			return true
		}
	}
	return false
}

// rejectLocked 阶段/规则错误：回滚无副作用，错误下发给提交者
// 持有行动权的座位重新布置计时：真人倒计时重新计满，AI 重排一次思考延时避免卡死
func (eg *XiangqiMahjong4p) rejectLocked(seat *Seat, reason string) {
	log.Debug("房间[%s] 座位 %d 动作被拒: %s (phase=%s)", eg.roomID, seat.Index, reason, eg.phase)
	if seat.IsHuman {
		eg.pushErrorLocked(seat.UserID, reason)
		if eg.seatHoldsActionLocked(seat.Index) {
			eg.scheduleActorLocked()
		}
		return
	}
	// AI 动作被拒说明策略与状态脱节，重新排程防止状态机停摆
	if eg.seatHoldsActionLocked(seat.Index) {
		eg.scheduleActorLocked()
	}
}

func (eg *XiangqiMahjong4p) newMeldID() string {
	return fmt.Sprintf("meld_%d_%d", eg.currentRound, eg.rng.Int31())
}

// Close 释放引擎资源
func (eg *XiangqiMahjong4p) Close() {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.closed {
		return
	}
	eg.closed = true
	if eg.timers != nil {
		eg.timers.CancelAll()
	}
	if eg.searcher != nil {
		eg.searcher.Close()
	}
	eg.state = engines.GameFinished
}
