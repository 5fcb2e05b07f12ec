package xiangqi

import (
	"github.com/dgraph-io/ristretto"
)

// Searcher 和牌判定的带缓存封装
// 弃牌后收集鸣牌候选、复核荣和宣告时会对同形手牌反复查询，键只看牌种分布
type Searcher struct {
	cache *ristretto.Cache
}

func NewSearcher() *Searcher {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	if err != nil {
		// 配置是常量，失败只可能是参数非法
		panic(err)
	}
	return &Searcher{cache: cache}
}

// WinOn 手牌（可外加一张）是否和牌
func (s *Searcher) WinOn(hand []Tile, melds []Meld, extra *Tile) bool {
	effective := hand
	if extra != nil {
		effective = make([]Tile, 0, len(hand)+1)
		effective = append(effective, hand...)
		effective = append(effective, *extra)
	}

	key := winKey(effective, melds)
	if v, ok := s.cache.Get(key); ok {
		if win, ok := v.(bool); ok {
			return win
		}
	}

	win := CheckWin(effective, melds).Win
	s.cache.Set(key, win, 1)
	return win
}

func (s *Searcher) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// winKey 牌种分布 + 已亮组数，与物理牌 ID 无关
func winKey(tiles []Tile, melds []Meld) string {
	var buf [KindCount + 1]byte
	for _, t := range tiles {
		buf[t.Kind]++
	}
	groups := byte(0)
	for _, m := range melds {
		switch m.Kind {
		case MeldRun, MeldTriplet, MeldQuad:
			groups++
		}
	}
	buf[KindCount] = groups
	return string(buf[:])
}
