package xiangqi

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"xqmahjong/game/engines"
	"xqmahjong/game/share"
)

type hostPush struct {
	UserID  string
	Route   string
	Payload any
}

type stubHost struct {
	mu        sync.Mutex
	pushes    []hostPush
	destroyed []string
}

func (h *stubHost) PushUser(userID, route string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushes = append(h.pushes, hostPush{UserID: userID, Route: route, Payload: payload})
}

func (h *stubHost) RequestDestroyRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = append(h.destroyed, roomID)
}

func (h *stubHost) find(userID, route string) []hostPush {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hostPush
	for _, p := range h.pushes {
		if p.Route == route && (userID == "" || p.UserID == userID) {
			out = append(out, p)
		}
	}
	return out
}

func testTuning() Tuning {
	return Tuning{
		TurnSeconds:      50,
		ClaimSeconds:     50,
		AiThinkMin:       2 * time.Millisecond,
		AiThinkMax:       5 * time.Millisecond,
		NextRoundSeconds: 1,
		EmptyRoomSeconds: 60,
	}
}

// newTestEngine 四个真人入座的引擎
func newTestEngine(t *testing.T, rounds int) (*XiangqiMahjong4p, *stubHost) {
	t.Helper()
	host := &stubHost{}
	eg := NewXiangqiMahjong4p(testTuning())
	if err := eg.Initialize("room_test", host, share.RoomSettings{RoomName: "测试房", TargetHumans: 4, Rounds: rounds}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	eg.SetRand(rand.New(rand.NewSource(1)))
	for i := 0; i < 4; i++ {
		if _, err := eg.JoinSeat(fmt.Sprintf("u%d", i), fmt.Sprintf("p%d", i), i == 0); err != nil {
			t.Fatalf("join seat %d failed: %v", i, err)
		}
	}
	return eg, host
}

// redJunk 七张互不成对的红方牌，copyIdx 区分座位
func redJunk(copyIdx int) []Tile {
	kinds := []TileKind{RedShuai, RedShi, RedXiang, RedJu, RedMa, RedPao, RedBing}
	out := make([]Tile, 0, 7)
	for _, k := range kinds {
		out = append(out, tk(k, copyIdx))
	}
	return out
}

// prime 直接构造一局中的局面
func prime(eg *XiangqiMahjong4p, dealer int, hands [4][]Tile, deck []Tile, phase RoomPhase, current int) {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	eg.state = engines.GameInProgress
	eg.currentRound = 1
	eg.matchOver = false
	eg.dealerIndex = dealer
	eg.currentPlayer = current
	for i := 0; i < 4; i++ {
		eg.seats[i].ResetRound()
		eg.seats[i].IsDealer = i == dealer
		eg.seats[i].Hand = append([]Tile(nil), hands[i]...)
	}
	eg.deck = append([]Tile(nil), deck...)
	eg.discards = nil
	eg.lastDiscard = nil
	eg.lastDrawn = nil
	eg.lastDiscarder = -1
	eg.turnNumber = 1
	eg.winnerSeat = -1
	eg.winType = ""
	eg.isDrawGame = false
	eg.phase = phase
	eg.clearClaimsLocked()
}

func ev(userID string) share.GameMessageEvent {
	return share.GameMessageEvent{UserID: userID}
}

func (eg *XiangqiMahjong4p) testState() (RoomPhase, int, int) {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	return eg.phase, eg.currentPlayer, eg.claimDecider
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

func TestSelfDrawWin(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	hands := [4][]Tile{
		hand(BlackJiang, BlackJiang, BlackShi, BlackShi, BlackShi, BlackXiang, BlackXiang),
		redJunk(0), redJunk(1), redJunk(2),
	}
	prime(eg, 0, hands, []Tile{tk(BlackXiang, 2)}, PhasePlayerTurnStart, 0)

	eg.NotifyEvent(&share.DrawTileEvent{GameMessageEvent: ev("u0")})
	phase, _, _ := eg.testState()
	if phase != PhasePlayerDrawn {
		t.Fatalf("phase after draw expected PlayerDrawn, got %s", phase)
	}

	eg.NotifyEvent(&share.DeclareWinEvent{GameMessageEvent: ev("u0")})
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.phase != PhaseRoundOver {
		t.Fatalf("phase expected RoundOver, got %s", eg.phase)
	}
	if eg.winnerSeat != 0 || eg.winType != WinSelfDrawn {
		t.Fatalf("winner expected seat 0 selfDrawn, got %d %s", eg.winnerSeat, eg.winType)
	}
	if eg.seats[0].Score != scoreSelfDrawWin || eg.seats[1].Score != -scoreSelfDrawPay {
		t.Fatalf("scores wrong: %d / %d", eg.seats[0].Score, eg.seats[1].Score)
	}
	// 局终快照对所有人明牌
	snap := eg.snapshotFor(1)
	for _, tv := range snap.Seats[0].Hand {
		if tv.Kind == hiddenKind {
			t.Fatalf("round over must reveal all hands")
		}
	}
}

func TestHeavenWin(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	// 庄家初始 8 张成和：士士士 象象象 將將
	dealerHand := hand(BlackShi, BlackShi, BlackShi, BlackXiang, BlackXiang, BlackXiang, BlackJiang, BlackJiang)
	hands := [4][]Tile{dealerHand, redJunk(0), redJunk(1), redJunk(2)}
	prime(eg, 0, hands, NewDeck()[:10], PhaseAwaitingDiscard, 0)

	eg.NotifyEvent(&share.DeclareWinEvent{GameMessageEvent: ev("u0")})
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.winnerSeat != 0 || eg.winType != WinHeaven {
		t.Fatalf("heaven win expected, got %d %s", eg.winnerSeat, eg.winType)
	}
}

func TestDiscardWithoutClaimsAdvances(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	dealerHand := append(hand(BlackJiang, BlackShi, BlackXiang, BlackJu, BlackMa, BlackPao, BlackZu), tk(BlackZu, 1))
	hands := [4][]Tile{dealerHand, redJunk(0), redJunk(1), redJunk(2)}
	prime(eg, 0, hands, NewDeck()[:10], PhaseAwaitingDiscard, 0)

	eg.NotifyEvent(&share.DiscardTileEvent{GameMessageEvent: ev("u0"), TileID: tk(BlackZu, 1).ID})

	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.phase != PhasePlayerTurnStart || eg.currentPlayer != 1 {
		t.Fatalf("control must pass to seat 1, got phase=%s current=%d", eg.phase, eg.currentPlayer)
	}
	if eg.turnNumber != 2 {
		t.Fatalf("turn number expected 2, got %d", eg.turnNumber)
	}
	if len(eg.discards) != 1 || eg.lastDiscard == nil || eg.discards[0].Tile.ID != eg.lastDiscard.ID {
		t.Fatalf("discard pile head must equal lastDiscardedTile")
	}
	if eg.discards[0].Discarder != 0 {
		t.Fatalf("discarder id must be recorded")
	}
	// 出牌后回到静止张数
	if len(eg.seats[0].Hand) != 7 {
		t.Fatalf("hand after discard expected 7, got %d", len(eg.seats[0].Hand))
	}
}

func TestMultiHuOnDiscard(t *testing.T) {
	eg, host := newTestEngine(t, 4)
	defer eg.Close()

	dealerHand := append(redJunk(3), tk(BlackJu, 3))
	hands := [4][]Tile{
		dealerHand,
		hand(BlackJu, BlackJu, BlackMa, BlackMa, BlackMa, BlackPao, BlackPao),
		redJunk(1),
		{tk(BlackMa, 3), tk(BlackPao, 3), tk(BlackJiang, 0), tk(BlackJiang, 1), tk(BlackShi, 0), tk(BlackShi, 1), tk(BlackShi, 2)},
	}
	prime(eg, 0, hands, NewDeck()[:10], PhaseAwaitingDiscard, 0)

	eg.NotifyEvent(&share.DiscardTileEvent{GameMessageEvent: ev("u0"), TileID: tk(BlackJu, 3).ID})

	phase, _, decider := eg.testState()
	if phase != PhaseAwaitingPlayerClaimAction || decider != 1 {
		t.Fatalf("lowest-index win candidate must decide first, got phase=%s decider=%d", phase, decider)
	}

	eg.NotifyEvent(&share.DeclareWinEvent{GameMessageEvent: ev("u1")})

	eg.mu.Lock()
	if eg.winnerSeat != 1 || eg.winType != WinDiscard || eg.winningDiscarder != 0 {
		t.Fatalf("discard win expected for seat 1, got %d %s (discarder %d)", eg.winnerSeat, eg.winType, eg.winningDiscarder)
	}
	if eg.phase != PhaseRoundOver {
		t.Fatalf("phase expected RoundOver, got %s", eg.phase)
	}
	// 双响座位 3 的手牌也随局终明牌
	snap := eg.snapshotFor(0)
	eg.mu.Unlock()
	for _, tv := range snap.Seats[3].Hand {
		if tv.Kind == hiddenKind {
			t.Fatalf("multi-hu loser hand must be revealed at round end")
		}
	}

	multiFlagged := false
	for _, p := range host.find("", "actionAnnouncement") {
		if a, ok := p.Payload.(Announcement); ok && a.IsMultiHuTarget {
			multiFlagged = true
		}
	}
	if !multiFlagged {
		t.Fatalf("multi-hu announcement must be flagged")
	}
}

func TestClaimPriorityPreemption(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	dealerHand := append(redJunk(3), tk(BlackMa, 1))
	hands := [4][]Tile{
		dealerHand,
		append(hand(BlackJu, BlackPao), redJunk(0)[:5]...),
		append([]Tile{tk(BlackMa, 2), tk(BlackMa, 3)}, redJunk(1)[:5]...),
		redJunk(2),
	}
	prime(eg, 0, hands, NewDeck()[:10], PhaseAwaitingDiscard, 0)

	eg.NotifyEvent(&share.DiscardTileEvent{GameMessageEvent: ev("u0"), TileID: tk(BlackMa, 1).ID})

	// 碰（优先级 2）先于吃（优先级 1）拿到决策权
	phase, _, decider := eg.testState()
	if phase != PhaseAwaitingPlayerClaimAction || decider != 2 {
		t.Fatalf("triplet claimant must decide first, got phase=%s decider=%d", phase, decider)
	}

	eg.NotifyEvent(&share.ClaimTripletEvent{GameMessageEvent: ev("u2")})

	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.currentPlayer != 2 || eg.phase != PhaseAwaitingDiscard {
		t.Fatalf("claimant must become actor awaiting discard, got current=%d phase=%s", eg.currentPlayer, eg.phase)
	}
	if len(eg.seats[2].Melds) != 1 || eg.seats[2].Melds[0].Kind != MeldTriplet || !eg.seats[2].Melds[0].IsOpen {
		t.Fatalf("open triplet meld expected, got %+v", eg.seats[2].Melds)
	}
	if eg.seats[2].Melds[0].ClaimedTileID != tk(BlackMa, 1).ID {
		t.Fatalf("claimed discard id must be recorded")
	}
	// 被鸣弃牌出堆，lastDiscard 清空，座位 1 的吃候选被取消
	if len(eg.discards) != 0 || eg.lastDiscard != nil {
		t.Fatalf("consumed discard must leave the pile")
	}
	if eg.seats[1].PendingClaims != nil {
		t.Fatalf("lower-priority claim must be dropped without being offered")
	}
}

func TestInvalidClaimThenChi(t *testing.T) {
	eg, host := newTestEngine(t, 4)
	defer eg.Close()

	dealerHand := append(redJunk(3), tk(BlackMa, 1))
	hands := [4][]Tile{
		dealerHand,
		append(hand(BlackJu, BlackPao), redJunk(0)[:5]...),
		append([]Tile{tk(BlackMa, 2), tk(BlackMa, 3)}, redJunk(1)[:5]...),
		redJunk(2),
	}
	prime(eg, 0, hands, NewDeck()[:10], PhaseAwaitingDiscard, 0)
	eg.NotifyEvent(&share.DiscardTileEvent{GameMessageEvent: ev("u0"), TileID: tk(BlackMa, 1).ID})

	// 座位 2 谎报杠：候选里没有，驳回且保留决策权
	eg.NotifyEvent(&share.ClaimQuadEvent{GameMessageEvent: ev("u2")})
	if _, _, decider := eg.testState(); decider != 2 {
		t.Fatalf("decider must keep decision after invalid claim, got %d", decider)
	}
	if len(host.find("u2", "gameError")) == 0 {
		t.Fatalf("invalid claim must produce gameError")
	}

	// 过 → 轮到座位 1 的吃
	eg.NotifyEvent(&share.PassClaimEvent{GameMessageEvent: ev("u2")})
	if _, _, decider := eg.testState(); decider != 1 {
		t.Fatalf("after pass the run claimant must decide, got %d", decider)
	}

	eg.NotifyEvent(&share.ClaimRunEvent{
		GameMessageEvent: ev("u1"),
		TileIDs:          []string{tk(BlackJu, 0).ID, tk(BlackPao, 0).ID},
	})
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if len(eg.seats[1].Melds) != 1 || eg.seats[1].Melds[0].Kind != MeldRun {
		t.Fatalf("run meld expected, got %+v", eg.seats[1].Melds)
	}
	if eg.currentPlayer != 1 || eg.phase != PhaseAwaitingDiscard {
		t.Fatalf("chi claimant must become actor, got current=%d phase=%s", eg.currentPlayer, eg.phase)
	}
}

func TestConcealedQuadReplacement(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	seat2Hand := append(hand(BlackShi, BlackShi, BlackShi, BlackShi), redJunk(1)[:4]...)
	hands := [4][]Tile{redJunk(0), redJunk(3), seat2Hand, redJunk(2)}
	prime(eg, 2, hands, []Tile{tk(BlackJu, 0), tk(BlackJu, 1)}, PhasePlayerDrawn, 2)

	eg.NotifyEvent(&share.ConcealedQuadEvent{GameMessageEvent: ev("u2"), Kind: "士"})

	eg.mu.Lock()
	if eg.phase != PhasePlayerDrawn {
		t.Fatalf("replacement draw must land in PlayerDrawn, got %s", eg.phase)
	}
	if eg.lastDrawn == nil || eg.lastDrawn.ID != tk(BlackJu, 0).ID {
		t.Fatalf("replacement must come from deck head")
	}
	meld := eg.seats[2].Melds[0]
	if meld.Kind != MeldQuad || meld.IsOpen {
		t.Fatalf("concealed quad expected, got %+v", meld)
	}
	// 他家视角整组牌背，本人可见
	other := eg.snapshotFor(1)
	own := eg.snapshotFor(2)
	eg.mu.Unlock()

	otherSeat2 := other.Seats[2]
	for _, tv := range otherSeat2.Melds[0].Tiles {
		if tv.Kind != hiddenKind {
			t.Fatalf("concealed quad kinds must be hidden from others")
		}
	}
	if otherSeat2.Melds[0].Kind != string(MeldQuad) {
		t.Fatalf("designation must stay visible")
	}
	for _, tv := range own.Seats[2].Melds[0].Tiles {
		if tv.Kind == hiddenKind {
			t.Fatalf("owner must see own quad kinds")
		}
	}
}

func TestConcealedQuadWithEmptyDeck(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	seat2Hand := append(hand(BlackShi, BlackShi, BlackShi, BlackShi), redJunk(1)[:4]...)
	hands := [4][]Tile{redJunk(0), redJunk(3), seat2Hand, redJunk(2)}
	prime(eg, 2, hands, nil, PhasePlayerDrawn, 2)

	eg.NotifyEvent(&share.ConcealedQuadEvent{GameMessageEvent: ev("u2"), Kind: "士"})

	phase, _, _ := eg.testState()
	// 牌库空：无补张，直接出牌，本局不结束
	if phase != PhaseAwaitingDiscard {
		t.Fatalf("empty-deck replacement must fall through to AwaitingDiscard, got %s", phase)
	}
}

func TestOfflineSubstitutionAndReconnect(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	// 第 8 张不能用兵：redJunk 三家都差一张兵就和，AI 打出兵会被荣和
	seat1Hand := append(hand(BlackJiang, BlackShi, BlackXiang, BlackJu, BlackMa, BlackZu, BlackZu), tk(BlackMa, 1))
	hands := [4][]Tile{redJunk(0), seat1Hand, redJunk(1), redJunk(2)}
	prime(eg, 1, hands, NewDeck()[:10], PhasePlayerDrawn, 1)

	wasHost, stillManned := eg.LeaveSeat("u1")
	if wasHost || !stillManned {
		t.Fatalf("leave expected non-host with humans remaining")
	}

	// AI 在思考延时后代为出牌并推进回合
	waitFor(t, 2*time.Second, func() bool {
		phase, current, _ := eg.testState()
		return phase == PhasePlayerTurnStart && current == 2
	})

	idx, ok := eg.RebindSeat("p1", "u1b")
	if !ok || idx != 1 {
		t.Fatalf("rebind expected seat 1, got %d ok=%v", idx, ok)
	}
	snap := eg.Snapshot("u1b").(*GameSnapshot)
	if !snap.Seats[1].IsOnline {
		t.Fatalf("rebound seat must be online")
	}
	for _, tv := range snap.Seats[1].Hand {
		if tv.Kind == hiddenKind {
			t.Fatalf("reconnected player must see own hand")
		}
	}
}

func TestDrawGameOnExhaustionAndDealerRetained(t *testing.T) {
	eg, _ := newTestEngine(t, 4)
	defer eg.Close()

	hands := [4][]Tile{redJunk(0), redJunk(3), redJunk(1), redJunk(2)}
	prime(eg, 1, hands, nil, PhasePlayerTurnStart, 1)

	eg.NotifyEvent(&share.DrawTileEvent{GameMessageEvent: ev("u1")})

	eg.mu.Lock()
	if eg.phase != PhaseRoundOver || !eg.isDrawGame || eg.winnerSeat != -1 {
		t.Fatalf("draw game expected, got phase=%s drawGame=%v winner=%d", eg.phase, eg.isDrawGame, eg.winnerSeat)
	}
	if eg.nextRoundCountdown != eg.tuning.NextRoundSeconds {
		t.Fatalf("inter-round countdown must start")
	}
	eg.mu.Unlock()

	// 全员确认立即开下一局；流局连庄
	for i := 0; i < 4; i++ {
		eg.NotifyEvent(&share.ConfirmNextRoundEvent{GameMessageEvent: ev(fmt.Sprintf("u%d", i))})
	}
	eg.mu.Lock()
	defer eg.mu.Unlock()
	if eg.currentRound != 2 {
		t.Fatalf("next round expected, got %d", eg.currentRound)
	}
	if eg.dealerIndex != 1 {
		t.Fatalf("dealer must be retained after draw game, got %d", eg.dealerIndex)
	}
	// 新局从整副牌发出，总张数守恒
	total := len(eg.deck) + len(eg.discards)
	for i := 0; i < 4; i++ {
		total += eg.seats[i].TileTotal()
	}
	if total != DeckSize {
		t.Fatalf("tile conservation broken: %d", total)
	}
}

func TestTurnTimeoutAutoActions(t *testing.T) {
	host := &stubHost{}
	tuning := testTuning()
	tuning.TurnSeconds = 1
	eg := NewXiangqiMahjong4p(tuning)
	if err := eg.Initialize("room_timeout", host, share.RoomSettings{RoomName: "t", TargetHumans: 4, Rounds: 4}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	eg.SetRand(rand.New(rand.NewSource(1)))
	for i := 0; i < 4; i++ {
		eg.JoinSeat(fmt.Sprintf("u%d", i), fmt.Sprintf("p%d", i), i == 0)
	}
	defer eg.Close()

	hands := [4][]Tile{redJunk(0), redJunk(3), redJunk(1), redJunk(2)}
	prime(eg, 0, hands, NewDeck()[:10], PhasePlayerTurnStart, 0)
	eg.mu.Lock()
	eg.scheduleActorLocked()
	eg.mu.Unlock()

	// 超时自动摸牌、再超时自动打出摸到的牌，控制权移交
	waitFor(t, 5*time.Second, func() bool {
		phase, current, _ := eg.testState()
		return current != 0 || phase == PhaseAwaitingPlayerClaimAction
	})
}

func TestReentrancyGuard(t *testing.T) {
	eg, host := newTestEngine(t, 4)
	defer eg.Close()

	hands := [4][]Tile{redJunk(0), redJunk(3), redJunk(1), redJunk(2)}
	prime(eg, 0, hands, NewDeck()[:10], PhasePlayerTurnStart, 0)

	eg.mu.Lock()
	seat := eg.seats[0]
	eg.mu.Unlock()
	if !seat.BeginAction() {
		t.Fatalf("guard acquire failed")
	}
	eg.NotifyEvent(&share.DrawTileEvent{GameMessageEvent: ev("u0")})
	seat.EndAction()

	if len(host.find("u0", "gameError")) == 0 {
		t.Fatalf("in-flight action must be rejected")
	}
	phase, _, _ := eg.testState()
	if phase != PhasePlayerTurnStart {
		t.Fatalf("guarded event must not mutate state, got %s", phase)
	}
}

func TestFullMatchRunsToCompletion(t *testing.T) {
	host := &stubHost{}
	tuning := testTuning()
	tuning.TurnSeconds = 1
	tuning.ClaimSeconds = 1
	eg := NewXiangqiMahjong4p(tuning)
	if err := eg.Initialize("room_soak", host, share.RoomSettings{RoomName: "soak", TargetHumans: 1, FillWithAI: true, Rounds: 1}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	eg.SetRand(rand.New(rand.NewSource(99)))
	if _, err := eg.JoinSeat("u0", "p0", true); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	defer eg.Close()

	if err := eg.StartMatch("u0"); err != nil {
		t.Fatalf("start match failed: %v", err)
	}

	// 驱动真人座位，AI 自行行动；每步校验总张数守恒
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		eg.mu.Lock()
		phase := eg.phase
		current := eg.currentPlayer
		decider := eg.claimDecider
		var hostTile string
		if len(eg.seats[0].Hand) > 0 {
			hostTile = eg.seats[0].Hand[0].ID
		}
		total := len(eg.deck) + len(eg.discards)
		for i := 0; i < 4; i++ {
			total += eg.seats[i].TileTotal()
		}
		eg.mu.Unlock()

		if phase == PhaseGameOver {
			return
		}
		if phase != PhaseWaitingForPlayers && phase != PhaseDealing && total != DeckSize {
			t.Fatalf("tile conservation broken: %d in phase %s", total, phase)
		}

		base := ev("u0")
		switch {
		case phase == PhasePlayerTurnStart && current == 0:
			eg.NotifyEvent(&share.DrawTileEvent{GameMessageEvent: base})
		case (phase == PhasePlayerDrawn || phase == PhaseAwaitingDiscard) && current == 0:
			eg.NotifyEvent(&share.DiscardTileEvent{GameMessageEvent: base, TileID: hostTile})
		case phase == PhaseAwaitingPlayerClaimAction && decider == 0:
			eg.NotifyEvent(&share.PassClaimEvent{GameMessageEvent: base})
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("match did not finish in time")
}

func TestJoinLeaveAndHostReassign(t *testing.T) {
	host := &stubHost{}
	eg := NewXiangqiMahjong4p(testTuning())
	eg.Initialize("room_seats", host, share.RoomSettings{RoomName: "t", TargetHumans: 4, Rounds: 4})
	eg.SetRand(rand.New(rand.NewSource(1)))
	defer eg.Close()

	for i := 0; i < 4; i++ {
		idx, err := eg.JoinSeat(fmt.Sprintf("u%d", i), fmt.Sprintf("p%d", i), i == 0)
		if err != nil || idx != i {
			t.Fatalf("join expected seat %d, got %d err=%v", i, idx, err)
		}
	}
	if _, err := eg.JoinSeat("u4", "p4", false); err == nil {
		t.Fatalf("fifth join must fail")
	}

	// 等待阶段离开释放座位，新人补最小空位
	eg.LeaveSeat("u1")
	if idx, err := eg.JoinSeat("u5", "p5", false); err != nil || idx != 1 {
		t.Fatalf("rejoin expected lowest free seat 1, got %d err=%v", idx, err)
	}

	// 房主离开后转给最小座位在线真人
	wasHost, _ := eg.LeaveSeat("u0")
	if !wasHost {
		t.Fatalf("u0 must be host")
	}
	newHost, ok := eg.ReassignHost()
	if !ok || newHost != "u5" {
		t.Fatalf("host must transfer to lowest online seat, got %s", newHost)
	}
}

func TestStartMatchRequiresFillOrFour(t *testing.T) {
	host := &stubHost{}
	eg := NewXiangqiMahjong4p(testTuning())
	eg.Initialize("room_fill", host, share.RoomSettings{RoomName: "t", TargetHumans: 2, FillWithAI: false, Rounds: 1})
	eg.SetRand(rand.New(rand.NewSource(1)))
	defer eg.Close()

	eg.JoinSeat("u0", "p0", true)
	if err := eg.StartMatch("u0"); err == nil {
		t.Fatalf("start without AI fill must fail when seats are short")
	}
	if err := eg.StartMatch("u1"); err == nil {
		t.Fatalf("non-host start must fail")
	}
}
