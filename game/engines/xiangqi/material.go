package xiangqi

import (
	"encoding/json"
	"fmt"
	"sort"
)

type Suit int

const (
	SuitBlack Suit = iota // 黑方
	SuitRed               // 红方
)

// TileKind 象棋麻将 14 种牌
type TileKind int

const (
	BlackJiang TileKind = iota // 將
	BlackShi                   // 士
	BlackXiang                 // 象
	BlackJu                    // 車
	BlackMa                    // 馬
	BlackPao                   // 包
	BlackZu                    // 卒
	RedShuai                   // 帥
	RedShi                     // 仕
	RedXiang                   // 相
	RedJu                      // 俥
	RedMa                      // 傌
	RedPao                     // 炮
	RedBing                    // 兵

	KindCount = 14
)

type kindMeta struct {
	Suit  Suit
	Group int // 0: 兵卒（不能组顺子），1: 將士象，2: 車馬包
	Order int // 组内序值 0-3
	Name  string
}

var kindTable = [KindCount]kindMeta{
	BlackJiang: {SuitBlack, 1, 3, "將"},
	BlackShi:   {SuitBlack, 1, 2, "士"},
	BlackXiang: {SuitBlack, 1, 1, "象"},
	BlackJu:    {SuitBlack, 2, 3, "車"},
	BlackMa:    {SuitBlack, 2, 2, "馬"},
	BlackPao:   {SuitBlack, 2, 1, "包"},
	BlackZu:    {SuitBlack, 0, 0, "卒"},
	RedShuai:   {SuitRed, 1, 3, "帥"},
	RedShi:     {SuitRed, 1, 2, "仕"},
	RedXiang:   {SuitRed, 1, 1, "相"},
	RedJu:      {SuitRed, 2, 3, "俥"},
	RedMa:      {SuitRed, 2, 2, "傌"},
	RedPao:     {SuitRed, 2, 1, "炮"},
	RedBing:    {SuitRed, 0, 0, "兵"},
}

func (k TileKind) Valid() bool {
	return k >= 0 && k < KindCount
}

func (k TileKind) Suit() Suit {
	return kindTable[k].Suit
}

func (k TileKind) Group() int {
	return kindTable[k].Group
}

func (k TileKind) OrderValue() int {
	return kindTable[k].Order
}

func (k TileKind) String() string {
	if !k.Valid() {
		return "?"
	}
	return kindTable[k].Name
}

// KindFromName 由展示名解析牌种
func KindFromName(name string) (TileKind, bool) {
	for i := 0; i < KindCount; i++ {
		if kindTable[i].Name == name {
			return TileKind(i), true
		}
	}
	return -1, false
}

func (k TileKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *TileKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	kind, ok := KindFromName(name)
	if !ok {
		return fmt.Errorf("未知牌种: %s", name)
	}
	*k = kind
	return nil
}

// Tile 一张实体牌，ID 在一次洗牌生成内唯一（{牌种}_{0..3}）
type Tile struct {
	Kind TileKind `json:"kind"`
	ID   string   `json:"id"`
}

// RunTable 四组固定顺子（同花色同组，序值 {1,2,3}）
var RunTable = [4][3]TileKind{
	{BlackJiang, BlackShi, BlackXiang},
	{BlackJu, BlackMa, BlackPao},
	{RedShuai, RedShi, RedXiang},
	{RedJu, RedMa, RedPao},
}

// RunFor 返回包含该牌种的顺子定义；兵卒没有
func RunFor(k TileKind) ([3]TileKind, bool) {
	if k.Group() == 0 {
		return [3]TileKind{}, false
	}
	for _, run := range RunTable {
		for _, rk := range run {
			if rk == k {
				return run, true
			}
		}
	}
	return [3]TileKind{}, false
}

// IsRun 三个牌种（无序）是否构成固定顺子之一
func IsRun(a, b, c TileKind) bool {
	for _, run := range RunTable {
		if containsAll(run, a, b, c) {
			return true
		}
	}
	return false
}

func containsAll(run [3]TileKind, kinds ...TileKind) bool {
	used := [3]bool{}
	for _, k := range kinds {
		found := false
		for i, rk := range run {
			if !used[i] && rk == k {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type MeldKind string

const (
	MeldRun     MeldKind = "run"
	MeldTriplet MeldKind = "triplet"
	MeldQuad    MeldKind = "quad"
	MeldPair    MeldKind = "pair" // 仅和牌搜索中间态
)

// Meld 已成型的组合
type Meld struct {
	ID            string   `json:"id"`
	Kind          MeldKind `json:"kind"`
	Tiles         []Tile   `json:"tiles"`
	IsOpen        bool     `json:"isOpen"`
	FromSeat      int      `json:"fromSeat"`      // 来自别家弃牌时的座位，否则 -1
	ClaimedTileID string   `json:"claimedTileId"` // 被吃/碰/杠的那张弃牌
}

// groupRank 组排序映射：1, 2, 0
func groupRank(g int) int {
	switch g {
	case 1:
		return 0
	case 2:
		return 1
	default:
		return 2
	}
}

// VisualSort 手牌展示排序：黑前红后，组序 1-2-0，组内序值降序
// 该序同时保证同花色同组的牌相邻（吃牌检测 ChiOptions 不依赖手牌顺序）
func VisualSort(hand []Tile) []Tile {
	sort.SliceStable(hand, func(i, j int) bool {
		a, b := hand[i].Kind, hand[j].Kind
		if a.Suit() != b.Suit() {
			return a.Suit() < b.Suit()
		}
		if groupRank(a.Group()) != groupRank(b.Group()) {
			return groupRank(a.Group()) < groupRank(b.Group())
		}
		if a.OrderValue() != b.OrderValue() {
			return a.OrderValue() > b.OrderValue()
		}
		return hand[i].ID < hand[j].ID
	})
	return hand
}

// sortMeldTiles 组合内按序值排序
func sortMeldTiles(tiles []Tile) []Tile {
	sort.SliceStable(tiles, func(i, j int) bool {
		if tiles[i].Kind.OrderValue() != tiles[j].Kind.OrderValue() {
			return tiles[i].Kind.OrderValue() > tiles[j].Kind.OrderValue()
		}
		return tiles[i].ID < tiles[j].ID
	})
	return tiles
}
