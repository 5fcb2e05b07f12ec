package xiangqi

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// DeckSize 每种 4 张，共 56 张
const DeckSize = KindCount * 4

// NewDeck 生成一副有序牌，ID 为 {牌种}_{0..3}
func NewDeck() []Tile {
	deck := make([]Tile, 0, DeckSize)
	for k := 0; k < KindCount; k++ {
		kind := TileKind(k)
		for copyIdx := 0; copyIdx < 4; copyIdx++ {
			deck = append(deck, Tile{
				Kind: kind,
				ID:   fmt.Sprintf("%s_%d", kind, copyIdx),
			})
		}
	}
	return deck
}

// Shuffle 就地 Fisher–Yates 洗牌
// rng 为 nil 时用密码学熵播种（测试注入固定种子）
func Shuffle(deck []Tile, rng *rand.Rand) []Tile {
	if rng == nil {
		rng = rand.New(rand.NewSource(cryptoSeed()))
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
