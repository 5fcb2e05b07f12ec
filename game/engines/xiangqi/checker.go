package xiangqi

import "fmt"

// 规则判定均为纯函数，不触碰引擎状态

// CountOfKind 统计某牌种张数
func CountOfKind(tiles []Tile, kind TileKind) int {
	count := 0
	for _, t := range tiles {
		if t.Kind == kind {
			count++
		}
	}
	return count
}

// CanPeng 手里有两张同种即可碰
func CanPeng(hand []Tile, t Tile) bool {
	return CountOfKind(hand, t.Kind) >= 2
}

// CanMingGang 手里有三张同种即可明杠别家弃牌
func CanMingGang(hand []Tile, t Tile) bool {
	return CountOfKind(hand, t.Kind) >= 3
}

// ChiOptions 返回所有能与弃牌组成固定顺子的手牌对
// 只给定义，是否轮到下家由引擎判
func ChiOptions(hand []Tile, t Tile) [][2]Tile {
	run, ok := RunFor(t.Kind)
	if !ok {
		return nil
	}

	others := make([]TileKind, 0, 2)
	for _, rk := range run {
		if rk != t.Kind {
			others = append(others, rk)
		}
	}
	if len(others) != 2 {
		return nil
	}

	var firstTiles, secondTiles []Tile
	for _, ht := range hand {
		switch ht.Kind {
		case others[0]:
			firstTiles = append(firstTiles, ht)
		case others[1]:
			secondTiles = append(secondTiles, ht)
		}
	}

	var options [][2]Tile
	for _, a := range firstTiles {
		for _, b := range secondTiles {
			options = append(options, [2]Tile{a, b})
		}
	}
	return options
}

// ConcealedQuadKinds 有效手牌（含摸到的牌）里凑满 4 张的牌种
func ConcealedQuadKinds(hand []Tile, drawn *Tile) []TileKind {
	var counts [KindCount]int
	for _, t := range hand {
		counts[t.Kind]++
	}
	if drawn != nil {
		counts[drawn.Kind]++
	}

	var kinds []TileKind
	for k := 0; k < KindCount; k++ {
		if counts[k] >= 4 {
			kinds = append(kinds, TileKind(k))
		}
	}
	return kinds
}

// UpgradeQuadKinds 摸到的牌能补成杠的已亮刻子牌种
func UpgradeQuadKinds(melds []Meld, drawn Tile) []TileKind {
	var kinds []TileKind
	for _, m := range melds {
		if m.Kind == MeldTriplet && m.IsOpen && len(m.Tiles) > 0 && m.Tiles[0].Kind == drawn.Kind {
			kinds = append(kinds, drawn.Kind)
		}
	}
	return kinds
}

// RemoveN 从手牌取走 n 张指定牌种，保留牌身份
func RemoveN(hand []Tile, kind TileKind, n int) (rest []Tile, removed []Tile, err error) {
	if CountOfKind(hand, kind) < n {
		return nil, nil, fmt.Errorf("手牌 %s 不足 %d 张", kind, n)
	}
	rest = make([]Tile, 0, len(hand)-n)
	removed = make([]Tile, 0, n)
	for _, t := range hand {
		if t.Kind == kind && len(removed) < n {
			removed = append(removed, t)
			continue
		}
		rest = append(rest, t)
	}
	return rest, removed, nil
}

// WinResult 和牌搜索结果，任一可行拆分即成立
type WinResult struct {
	Win    bool
	Pair   []Tile
	Groups [][]Tile
}

// CheckWin 和牌判定
// 目标形：全局 2 组（刻/杠/顺）+ 1 对，已亮组合按每个 1 组折算
// 深度优先：先取对子，再组内先刻后顺
func CheckWin(hand []Tile, existingMelds []Meld) WinResult {
	needGroups := 2
	for _, m := range existingMelds {
		switch m.Kind {
		case MeldRun, MeldTriplet, MeldQuad:
			needGroups--
		}
	}
	if needGroups < 0 {
		return WinResult{}
	}
	if len(hand) != needGroups*3+2 {
		return WinResult{}
	}

	var counts [KindCount]int
	tilesByKind := make(map[TileKind][]Tile, KindCount)
	for _, t := range hand {
		counts[t.Kind]++
		tilesByKind[t.Kind] = append(tilesByKind[t.Kind], t)
	}

	var pairKind TileKind = -1
	var groupKinds [][]TileKind

	if !winDFS(&counts, true, needGroups, &pairKind, &groupKinds) {
		return WinResult{}
	}

	// 物化：从每种的牌堆里按序取走
	take := func(kind TileKind, n int) []Tile {
		pool := tilesByKind[kind]
		taken := pool[:n]
		tilesByKind[kind] = pool[n:]
		return append([]Tile(nil), taken...)
	}

	result := WinResult{Win: true, Pair: take(pairKind, 2)}
	for _, gk := range groupKinds {
		if len(gk) == 1 {
			result.Groups = append(result.Groups, take(gk[0], 3))
			continue
		}
		group := make([]Tile, 0, 3)
		for _, k := range gk {
			group = append(group, take(k, 1)...)
		}
		result.Groups = append(result.Groups, sortMeldTiles(group))
	}
	return result
}

// winDFS 拆分搜索：needPair 时枚举对子，其后按最小非零牌种先试刻子再试顺子
func winDFS(counts *[KindCount]int, needPair bool, needGroups int, pairKind *TileKind, groups *[][]TileKind) bool {
	if needPair {
		for k := 0; k < KindCount; k++ {
			if counts[k] < 2 {
				continue
			}
			counts[k] -= 2
			if winDFS(counts, false, needGroups, pairKind, groups) {
				counts[k] += 2
				*pairKind = TileKind(k)
				return true
			}
			counts[k] += 2
		}
		return false
	}

	if needGroups == 0 {
		for k := 0; k < KindCount; k++ {
			if counts[k] != 0 {
				return false
			}
		}
		return true
	}

	first := -1
	for k := 0; k < KindCount; k++ {
		if counts[k] > 0 {
			first = k
			break
		}
	}
	if first == -1 {
		return false
	}

	// 刻子优先
	if counts[first] >= 3 {
		counts[first] -= 3
		if winDFS(counts, false, needGroups-1, pairKind, groups) {
			counts[first] += 3
			*groups = append(*groups, []TileKind{TileKind(first)})
			return true
		}
		counts[first] += 3
	}

	// 固定顺子
	for _, run := range RunTable {
		inRun := false
		for _, rk := range run {
			if int(rk) == first {
				inRun = true
				break
			}
		}
		if !inRun {
			continue
		}
		if counts[run[0]] > 0 && counts[run[1]] > 0 && counts[run[2]] > 0 {
			counts[run[0]]--
			counts[run[1]]--
			counts[run[2]]--
			if winDFS(counts, false, needGroups-1, pairKind, groups) {
				counts[run[0]]++
				counts[run[1]]++
				counts[run[2]]++
				*groups = append(*groups, []TileKind{run[0], run[1], run[2]})
				return true
			}
			counts[run[0]]++
			counts[run[1]]++
			counts[run[2]]++
		}
	}

	return false
}
