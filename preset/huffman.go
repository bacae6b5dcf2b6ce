package preset

import (
	"container/heap"
	"sort"

	"github.com/linne-codec/linne/internal/bitstream"
)

// HuffmanCode is a canonical Huffman code built once, when package preset
// is initialized, from a preset's coefficient frequency table, then treated
// as immutable. Encoder.SetParameters and Decoder.SetHeader do not rebuild
// it; they reuse the preset's code.
type HuffmanCode struct {
	codeOf    map[uint32]code // symbol -> (bits, length)
	symbolOf  map[code]uint32 // (bits, length) -> symbol, for decode
	maxLength uint8
}

type code struct {
	bits uint32
	len  uint8
}

type huffmanLeaf struct {
	symbol uint32
	freq   uint64
}

type huffmanNode struct {
	freq        uint64
	minSymbol   uint32 // smallest leaf symbol under this node, used as the tie-break key
	left, right *huffmanNode
	leaf        *huffmanLeaf
}

type nodeHeap []*huffmanNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].minSymbol < h[j].minSymbol
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*huffmanNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BuildHuffmanCode constructs a canonical Huffman code from a symbol
// frequency table, with deterministic tie-breaking on (frequency, symbol)
// at every merge step so two processes given the same table always
// produce byte-identical codes.
func BuildHuffmanCode(frequencies map[uint32]uint64) *HuffmanCode {
	lengths := huffmanCodeLengths(frequencies)
	return canonicalizeLengths(lengths)
}

func huffmanCodeLengths(frequencies map[uint32]uint64) map[uint32]uint8 {
	symbols := make([]uint32, 0, len(frequencies))
	for s := range frequencies {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	if len(symbols) == 1 {
		return map[uint32]uint8{symbols[0]: 1}
	}

	h := make(nodeHeap, 0, len(symbols))
	for _, s := range symbols {
		h = append(h, &huffmanNode{
			freq:      frequencies[s],
			minSymbol: s,
			leaf:      &huffmanLeaf{symbol: s, freq: frequencies[s]},
		})
	}
	heap.Init(&h)

	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffmanNode)
		b := heap.Pop(&h).(*huffmanNode)
		minSym := a.minSymbol
		if b.minSymbol < minSym {
			minSym = b.minSymbol
		}
		merged := &huffmanNode{freq: a.freq + b.freq, minSymbol: minSym, left: a, right: b}
		heap.Push(&h, merged)
	}

	root := h[0]
	lengths := make(map[uint32]uint8, len(symbols))
	var walk func(n *huffmanNode, depth uint8)
	walk = func(n *huffmanNode, depth uint8) {
		if n.leaf != nil {
			l := depth
			if l == 0 {
				l = 1
			}
			lengths[n.leaf.symbol] = l
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
	return lengths
}

// canonicalizeLengths assigns canonical codes given each symbol's code
// length: symbols are ordered by (length, symbol), and codes are assigned
// as consecutive integers, left-shifted whenever the length increases.
func canonicalizeLengths(lengths map[uint32]uint8) *HuffmanCode {
	symbols := make([]uint32, 0, len(lengths))
	for s := range lengths {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if lengths[symbols[i]] != lengths[symbols[j]] {
			return lengths[symbols[i]] < lengths[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	hc := &HuffmanCode{
		codeOf:   make(map[uint32]code, len(symbols)),
		symbolOf: make(map[code]uint32, len(symbols)),
	}

	var curCode uint32
	var curLen uint8
	for _, s := range symbols {
		l := lengths[s]
		if l > curLen {
			curCode <<= (l - curLen)
			curLen = l
		}
		c := code{bits: curCode, len: l}
		hc.codeOf[s] = c
		hc.symbolOf[c] = s
		if l > hc.maxLength {
			hc.maxLength = l
		}
		curCode++
	}
	return hc
}

// Put writes symbol's canonical code to w.
func (hc *HuffmanCode) Put(w *bitstream.Writer, symbol uint32) error {
	c := hc.codeOf[symbol]
	return w.PutBits(c.bits, uint(c.len))
}

// Get reads one symbol from r, walking bit by bit until a canonical code
// matches (canonical codes are prefix-free by construction).
func (hc *HuffmanCode) Get(r *bitstream.Reader) (uint32, error) {
	var bits uint32
	for length := uint8(1); length <= hc.maxLength; length++ {
		bit, err := r.GetBits(1)
		if err != nil {
			return 0, err
		}
		bits = (bits << 1) | bit
		if sym, ok := hc.symbolOf[code{bits: bits, len: length}]; ok {
			return sym, nil
		}
	}
	return 0, errDecodeNoMatch
}
