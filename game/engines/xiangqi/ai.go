package xiangqi

import (
	"xqmahjong/common/log"
)

// AI 策略：无状态，按阶段产出一个合法动作
// 决策顺序与真人可用动作一致，直接调用引擎内部处理器执行

// runAILocked 为 AI 或离线真人座位代行动作
func (eg *XiangqiMahjong4p) runAILocked(seat *Seat) {
	if seat == nil {
		return
	}
	switch eg.phase {
	case PhaseAwaitingPlayerClaimAction, PhaseActionPendingChiChoice:
		if seat.Index != eg.claimDecider {
			return
		}
		eg.aiClaimLocked(seat)
	case PhasePlayerTurnStart:
		if seat.Index != eg.currentPlayer {
			return
		}
		if len(ConcealedQuadKinds(seat.Hand, nil)) > 0 {
			eg.handleConcealedQuadLocked(seat, ConcealedQuadKinds(seat.Hand, nil)[0].String())
			return
		}
		eg.handleDrawLocked(seat, false)
	case PhasePlayerDrawn:
		if seat.Index != eg.currentPlayer {
			return
		}
		if CheckWin(seat.Hand, seat.Melds).Win {
			eg.handleDeclareWinLocked(seat)
			return
		}
		if kinds := ConcealedQuadKinds(seat.Hand, nil); len(kinds) > 0 {
			eg.handleConcealedQuadLocked(seat, kinds[0].String())
			return
		}
		if eg.lastDrawn != nil {
			if kinds := UpgradeQuadKinds(seat.Melds, *eg.lastDrawn); len(kinds) > 0 {
				eg.handleUpgradeQuadLocked(seat, kinds[0].String())
				return
			}
		}
		eg.aiDiscardLocked(seat)
	case PhaseAwaitingDiscard:
		if seat.Index != eg.currentPlayer {
			return
		}
		eg.aiDiscardLocked(seat)
	default:
		log.Debug("房间[%s] AI 座位 %d 在阶段 %s 无动作", eg.roomID, seat.Index, eg.phase)
	}
}

// aiClaimLocked 响应弃牌：胡 > 杠 > 碰 > 吃 > 过
func (eg *XiangqiMahjong4p) aiClaimLocked(seat *Seat) {
	if seat.HasClaim(ClaimWin) {
		eg.handleClaimLocked(seat, ClaimWin, nil)
		return
	}
	if seat.HasClaim(ClaimQuad) {
		eg.handleClaimLocked(seat, ClaimQuad, nil)
		return
	}
	if seat.HasClaim(ClaimTriplet) {
		eg.handleClaimLocked(seat, ClaimTriplet, nil)
		return
	}
	if seat.HasClaim(ClaimRun) {
		eg.handleClaimLocked(seat, ClaimRun, nil)
		return
	}
	eg.handlePassLocked(seat)
}

func (eg *XiangqiMahjong4p) aiDiscardLocked(seat *Seat) {
	tileID := BestDiscard(seat.Hand, eg.discards)
	if tileID == "" {
		log.Error("房间[%s] AI 座位 %d 无牌可出", eg.roomID, seat.Index)
		return
	}
	eg.handleDiscardLocked(seat, tileID, false)
}

// BestDiscard 弃牌挑选：逐张打分，分低者先弃
// 平分时先比序值小，再比组号小
func BestDiscard(hand []Tile, discards []DiscardedTileInfo) string {
	if len(hand) == 0 {
		return ""
	}

	var freq [KindCount]int
	for _, d := range discards {
		freq[d.Tile.Kind]++
	}

	bestID := ""
	bestScore := 0
	bestOrder := 0
	bestGroup := 0
	for _, t := range hand {
		score := scoreDiscardCandidate(hand, t, &freq)
		better := bestID == "" || score < bestScore
		if !better && score == bestScore {
			if t.Kind.OrderValue() != bestOrder {
				better = t.Kind.OrderValue() < bestOrder
			} else if t.Kind.Group() != bestGroup {
				better = t.Kind.Group() < bestGroup
			}
		}
		if better {
			bestID = t.ID
			bestScore = score
			bestOrder = t.Kind.OrderValue()
			bestGroup = t.Kind.Group()
		}
	}
	return bestID
}

// scoreDiscardCandidate 候选牌保留价值
// 对子 +5、刻子 +15、四张 +25、拆潜在顺子 +8、序值 ×2、危险度 ×2、弃牌频率 ×-3
func scoreDiscardCandidate(hand []Tile, t Tile, freq *[KindCount]int) int {
	count := CountOfKind(hand, t.Kind)
	score := 0
	if count >= 2 {
		score += 5
	}
	if count >= 3 {
		score += 15
	}
	if count >= 4 {
		score += 25
	}

	// 打掉它会不会拆散一个潜在顺子
	rest := make([]Tile, 0, len(hand)-1)
	skipped := false
	for _, h := range hand {
		if !skipped && h.ID == t.ID {
			skipped = true
			continue
		}
		rest = append(rest, h)
	}
	if len(ChiOptions(rest, t)) > 0 {
		score += 8
	}

	score += 2 * t.Kind.OrderValue()
	score += 2 * dangerEstimate(t.Kind, freq)
	score -= 3 * freq[t.Kind]
	return score
}

// dangerEstimate 别家要这张的风险估计：弃得越少越危险
func dangerEstimate(kind TileKind, freq *[KindCount]int) int {
	danger := 0
	switch freq[kind] {
	case 0:
		danger = 5
	case 1:
		danger = 3
	case 2:
		danger = 1
	}
	if kind.Group() != 0 {
		danger += 2
	}
	return danger
}
