package xiangqi

import (
	"fmt"
	"sort"

	"xqmahjong/common/log"
)

// 鸣牌仲裁：顺序逐家决策
// 弃牌后收集所有候选，按优先级降序、座位升序依次给出决策权
// 任一有效宣告立即执行并取消其余候选，不续接低优先级

// resolveClaimsLocked 弃牌后的候选收集
func (eg *XiangqiMahjong4p) resolveClaimsLocked(discard Tile, discarder int) {
	eg.clearClaimsLocked()

	nextSeat := (discarder + 1) % 4
	for i := 0; i < 4; i++ {
		if i == discarder {
			continue
		}
		seat := eg.seats[i]
		var claims []ClaimAction
		if eg.searcher.WinOn(seat.Hand, seat.Melds, &discard) {
			claims = append(claims, ClaimWin)
			eg.winCandSeats = append(eg.winCandSeats, i)
		}
		if CanMingGang(seat.Hand, discard) {
			claims = append(claims, ClaimQuad)
		}
		if CanPeng(seat.Hand, discard) {
			claims = append(claims, ClaimTriplet)
		}
		// 只有下家可以吃
		if i == nextSeat && len(ChiOptions(seat.Hand, discard)) > 0 {
			claims = append(claims, ClaimRun)
		}
		if len(claims) == 0 {
			continue
		}
		seat.PendingClaims = claims
		best := 0
		for _, c := range claims {
			if p := claimPriority(c); p > best {
				best = p
			}
		}
		eg.claimQueue = append(eg.claimQueue, claimEntry{Seat: i, Priority: best})
	}

	if len(eg.claimQueue) == 0 {
		eg.advanceTurnLocked(nextSeat)
		return
	}

	sort.SliceStable(eg.claimQueue, func(a, b int) bool {
		if eg.claimQueue[a].Priority != eg.claimQueue[b].Priority {
			return eg.claimQueue[a].Priority > eg.claimQueue[b].Priority
		}
		return eg.claimQueue[a].Seat < eg.claimQueue[b].Seat
	})
	eg.phase = PhaseAwaitingClaimsResolution
	eg.offerNextClaimLocked()
}

// offerNextClaimLocked 把决策权交给队首候选
func (eg *XiangqiMahjong4p) offerNextClaimLocked() {
	if len(eg.claimQueue) == 0 {
		// 没人要，控制权交给下家
		next := (eg.lastDiscarder + 1) % 4
		eg.clearClaimsLocked()
		eg.advanceTurnLocked(next)
		return
	}

	entry := eg.claimQueue[0]
	eg.claimQueue = eg.claimQueue[1:]
	eg.claimDecider = entry.Seat
	seat := eg.seats[entry.Seat]

	eg.chiOptions = nil
	if seat.HasClaim(ClaimRun) && eg.lastDiscard != nil {
		eg.chiOptions = ChiOptions(seat.Hand, *eg.lastDiscard)
	}

	eg.phase = PhaseAwaitingPlayerClaimAction
	log.Debug("房间[%s] 座位 %d 进入鸣牌决策: %v", eg.roomID, entry.Seat, seat.PendingClaims)
	eg.broadcastState()
	eg.scheduleActorLocked()
}

// handlePassLocked 放弃鸣牌，轮到下一个候选
func (eg *XiangqiMahjong4p) handlePassLocked(seat *Seat) {
	if eg.phase != PhaseAwaitingPlayerClaimAction || seat.Index != eg.claimDecider {
		eg.rejectLocked(seat, "现在没有待决策的鸣牌")
		return
	}
	seat.PendingClaims = nil
	eg.claimDecider = -1
	eg.offerNextClaimLocked()
}

// handleClaimLocked 执行鸣牌宣告
// tileIDs 仅吃牌使用：客户端选中的两张手牌
func (eg *XiangqiMahjong4p) handleClaimLocked(seat *Seat, action ClaimAction, tileIDs []string) {
	if eg.phase != PhaseAwaitingPlayerClaimAction || seat.Index != eg.claimDecider {
		eg.rejectLocked(seat, "现在不能鸣牌")
		return
	}
	if !seat.HasClaim(action) {
		eg.rejectLocked(seat, "该动作不在候选里")
		return
	}
	if eg.lastDiscard == nil {
		log.Error("房间[%s] 鸣牌时没有弃牌，内部状态异常", eg.roomID)
		eg.endRoundDrawLocked()
		return
	}
	discard := *eg.lastDiscard

	// 规则复核：非法宣告只移除该候选项并继续仲裁
	switch action {
	case ClaimWin:
		if !eg.searcher.WinOn(seat.Hand, seat.Melds, &discard) {
			eg.invalidClaimLocked(seat, action, "没有和牌")
			return
		}
		multiHu := len(eg.winCandSeats) > 1
		eg.endRoundWinLocked(seat.Index, WinDiscard, &discard, eg.lastDiscarder, multiHu)
		return

	case ClaimQuad:
		if !CanMingGang(seat.Hand, discard) {
			eg.invalidClaimLocked(seat, action, "牌不够，杠不成")
			return
		}
		consumed := eg.consumeDiscardLocked()
		rest, removed, _ := RemoveN(seat.Hand, discard.Kind, 3)
		seat.Hand = rest
		seat.Melds = append(seat.Melds, Meld{
			ID:            eg.newMeldID(),
			Kind:          MeldQuad,
			Tiles:         sortMeldTiles(append(removed, consumed)),
			IsOpen:        true,
			FromSeat:      eg.lastDiscarder,
			ClaimedTileID: consumed.ID,
		})
		eg.announceLocked(fmt.Sprintf("%s 杠！", seat.Name), seat.Index, false)
		eg.finishNonWinClaimLocked(seat, true)
		return

	case ClaimTriplet:
		if !CanPeng(seat.Hand, discard) {
			eg.invalidClaimLocked(seat, action, "牌不够，碰不成")
			return
		}
		consumed := eg.consumeDiscardLocked()
		rest, removed, _ := RemoveN(seat.Hand, discard.Kind, 2)
		seat.Hand = rest
		seat.Melds = append(seat.Melds, Meld{
			ID:            eg.newMeldID(),
			Kind:          MeldTriplet,
			Tiles:         sortMeldTiles(append(removed, consumed)),
			IsOpen:        true,
			FromSeat:      eg.lastDiscarder,
			ClaimedTileID: consumed.ID,
		})
		eg.announceLocked(fmt.Sprintf("%s 碰！", seat.Name), seat.Index, false)
		eg.finishNonWinClaimLocked(seat, false)
		return

	case ClaimRun:
		pair, ok := eg.pickChiPairLocked(seat, tileIDs)
		if !ok {
			eg.invalidClaimLocked(seat, action, "所选两张牌组不成顺子")
			return
		}
		consumed := eg.consumeDiscardLocked()
		seat.RemoveTileByID(pair[0].ID)
		seat.RemoveTileByID(pair[1].ID)
		seat.Melds = append(seat.Melds, Meld{
			ID:            eg.newMeldID(),
			Kind:          MeldRun,
			Tiles:         sortMeldTiles([]Tile{pair[0], pair[1], consumed}),
			IsOpen:        true,
			FromSeat:      eg.lastDiscarder,
			ClaimedTileID: consumed.ID,
		})
		eg.announceLocked(fmt.Sprintf("%s 吃！", seat.Name), seat.Index, false)
		eg.finishNonWinClaimLocked(seat, false)
		return
	}

	eg.rejectLocked(seat, "未知鸣牌动作")
}

// pickChiPairLocked 校验客户端选中的吃牌对；AI 不带 tileIDs 时取第一个候选
func (eg *XiangqiMahjong4p) pickChiPairLocked(seat *Seat, tileIDs []string) ([2]Tile, bool) {
	options := eg.chiOptions
	if len(options) == 0 && eg.lastDiscard != nil {
		options = ChiOptions(seat.Hand, *eg.lastDiscard)
	}
	if len(options) == 0 {
		return [2]Tile{}, false
	}
	if len(tileIDs) == 0 {
		return options[0], true
	}
	if len(tileIDs) != 2 {
		return [2]Tile{}, false
	}
	for _, opt := range options {
		if (opt[0].ID == tileIDs[0] && opt[1].ID == tileIDs[1]) ||
			(opt[0].ID == tileIDs[1] && opt[1].ID == tileIDs[0]) {
			return opt, true
		}
	}
	return [2]Tile{}, false
}

// invalidClaimLocked 非法宣告：移除该候选，剩余候选继续
func (eg *XiangqiMahjong4p) invalidClaimLocked(seat *Seat, action ClaimAction, reason string) {
	log.Warn("房间[%s] 座位 %d 非法鸣牌 %s: %s", eg.roomID, seat.Index, action, reason)
	if seat.IsHuman {
		eg.pushErrorLocked(seat.UserID, reason)
	}
	if seat.DropClaim(action) == 0 {
		eg.claimDecider = -1
		eg.offerNextClaimLocked()
		return
	}
	// 还有其他候选，重新计时继续等该座位决策
	eg.scheduleActorLocked()
	eg.broadcastState()
}

// finishNonWinClaimLocked 非和牌鸣牌收尾：鸣牌者成为行动者
// 杠要补张，吃碰直接进入出牌
func (eg *XiangqiMahjong4p) finishNonWinClaimLocked(seat *Seat, isQuad bool) {
	eg.clearClaimsLocked()
	eg.currentPlayer = seat.Index
	VisualSort(seat.Hand)
	if isQuad {
		eg.replacementDrawLocked(seat)
		return
	}
	eg.lastDrawn = nil
	eg.phase = PhaseAwaitingDiscard
	eg.broadcastState()
	eg.scheduleActorLocked()
}

// consumeDiscardLocked 拿走被鸣的弃牌
// 约定它必须是牌堆最新一张，不是则告警并按 ID 剔除
func (eg *XiangqiMahjong4p) consumeDiscardLocked() Tile {
	target := *eg.lastDiscard
	if n := len(eg.discards); n > 0 && eg.discards[n-1].Tile.ID == target.ID {
		eg.discards = eg.discards[:n-1]
	} else {
		log.Warn("房间[%s] 被鸣弃牌 %s 不在堆顶，按 ID 剔除", eg.roomID, target.ID)
		for i := len(eg.discards) - 1; i >= 0; i-- {
			if eg.discards[i].Tile.ID == target.ID {
				eg.discards = append(eg.discards[:i], eg.discards[i+1:]...)
				break
			}
		}
	}
	eg.lastDiscard = nil
	return target
}

// clearClaimsLocked 清空仲裁状态
func (eg *XiangqiMahjong4p) clearClaimsLocked() {
	eg.claimQueue = nil
	eg.claimDecider = -1
	eg.chiOptions = nil
	eg.winCandSeats = nil
	for i := 0; i < 4; i++ {
		if eg.seats[i] != nil {
			eg.seats[i].PendingClaims = nil
		}
	}
}
