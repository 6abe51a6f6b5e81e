// This file implements the ordered map under MemStore as a generic skip
// list. A skip list maintains multiple forward-pointer layers over a sorted
// linked list; each key is promoted to higher levels with probability p,
// forming express lanes that let searches skip over large ranges. Operations
// start at the highest populated level and descend when advancing would
// overshoot the target key.
//
// Properties
// - Expected time complexity for get/set/delete: O(log n)
// - Space complexity: O(n)
// - Probabilistic balancing controlled by promotion probability p (0.25)
// - Deterministic iteration order by key via level-0 forward pointers

package state

import (
	"iter"
	"math/rand"
	"time"

	"github.com/maurofama99/risingwave/pkg/utils"
)

type skipListNode[K any, V any] struct {
	key      K
	value    V
	forwards []*skipListNode[K, V] // Forward pointers per level (0..level-1).
}

// skipList is a probabilistically balanced ordered map. Key order is defined
// entirely by the compare function given at construction, so byte-slice keys
// work as well as ordered scalars.
type skipList[K any, V any] struct {
	head            *skipListNode[K, V]
	compare         utils.CompareFn[K]
	level, maxLevel int
	p               float64 // Probability that a node is promoted to the next level.
	rnd             *rand.Rand
}

func newSkipList[K any, V any](compare utils.CompareFn[K]) *skipList[K, V] {
	const defaultMaxLevel = 16
	const defaultP = 0.25
	return &skipList[K, V]{
		head:     &skipListNode[K, V]{forwards: make([]*skipListNode[K, V], defaultMaxLevel)},
		compare:  compare,
		level:    1,
		maxLevel: defaultMaxLevel,
		p:        defaultP,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *skipList[K, V]) randomLevel() int {
	lvl := 1
	for lvl < s.maxLevel && s.rnd.Float64() < s.p {
		lvl++
	}
	return lvl
}

// findPredecessors walks from the top level down, recording the last node
// before key at every level. The level-0 successor of the last predecessor is
// the candidate match.
func (s *skipList[K, V]) findPredecessors(key K) []*skipListNode[K, V] {
	update := make([]*skipListNode[K, V], s.maxLevel)
	node := s.head
	for lvl := s.level - 1; lvl >= 0; lvl-- {
		for next := node.forwards[lvl]; next != nil && s.compare(next.key, key) < 0; next = node.forwards[lvl] {
			node = next
		}
		update[lvl] = node
	}
	return update
}

// get returns the value for key or ErrKeyNotFound if the key is absent.
func (s *skipList[K, V]) get(key K) (V, error) {
	node := s.head
	for lvl := s.level - 1; lvl >= 0; lvl-- {
		for next := node.forwards[lvl]; next != nil && s.compare(next.key, key) < 0; next = node.forwards[lvl] {
			node = next
		}
	}
	if candidate := node.forwards[0]; candidate != nil && s.compare(candidate.key, key) == 0 {
		return candidate.value, nil
	}
	var zero V
	return zero, ErrKeyNotFound
}

// set inserts a new key/value or updates an existing one in place, reporting
// whether the key was already present.
func (s *skipList[K, V]) set(key K, value V) (alreadyExists bool) {
	update := s.findPredecessors(key)
	if next := update[0].forwards[0]; next != nil && s.compare(next.key, key) == 0 {
		next.value = value
		return true
	}

	lvl := s.randomLevel()
	if lvl > s.level {
		for i := s.level; i < lvl; i++ {
			update[i] = s.head
		}
		s.level = lvl
	}
	newNode := &skipListNode[K, V]{key: key, value: value, forwards: make([]*skipListNode[K, V], lvl)}
	for i := 0; i < lvl; i++ {
		newNode.forwards[i] = update[i].forwards[i]
		update[i].forwards[i] = newNode
	}
	return false
}

// delete removes key from the list or returns ErrKeyNotFound.
func (s *skipList[K, V]) delete(key K) error {
	update := s.findPredecessors(key)
	target := update[0].forwards[0]
	if target == nil || s.compare(target.key, key) != 0 {
		return ErrKeyNotFound
	}
	for i := 0; i < s.level; i++ {
		if update[i].forwards[i] == target {
			update[i].forwards[i] = target.forwards[i]
		}
	}
	// Trim empty top levels.
	for s.level > 1 && s.head.forwards[s.level-1] == nil {
		s.level--
	}
	return nil
}

// ascend iterates pairs in key order, starting at the first key >= from.
func (s *skipList[K, V]) ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		node := s.head
		for lvl := s.level - 1; lvl >= 0; lvl-- {
			for next := node.forwards[lvl]; next != nil && s.compare(next.key, from) < 0; next = node.forwards[lvl] {
				node = next
			}
		}
		for node = node.forwards[0]; node != nil; node = node.forwards[0] {
			if !yield(node.key, node.value) {
				return
			}
		}
	}
}
