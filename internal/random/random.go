// Package random предоставляет единый инжектируемый источник случайности
// для движка историй: броски исходов должны быть тестируемыми и, в
// продакшене, не воспроизводимыми игроком внутри сессии.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mathrand "math/rand"
	"sync"
	"time"
)

// Source — источник равномерной случайности.
type Source interface {
	// IntN возвращает равномерное целое из [0, n). Паникует при n <= 0.
	IntN(n int) int
	// Float64 возвращает равномерное значение из [0, 1).
	Float64() float64
}

// Roll возвращает бросок исхода: равномерное целое из [1, 100].
func Roll(src Source) int {
	return src.IntN(100) + 1
}

type lockedSource struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// New создает продакшен-источник: генератор math/rand, засеянный из
// crypto/rand, чтобы последовательность не была предсказуемой заранее.
// Потокобезопасен.
func New() Source {
	var seed int64
	if err := binary.Read(rand.Reader, binary.LittleEndian, &seed); err != nil {
		// crypto/rand недоступен — деградируем до времени
		seed = time.Now().UnixNano()
	}
	if seed == math.MinInt64 {
		seed = 0
	}
	return &lockedSource{rng: mathrand.New(mathrand.NewSource(seed))}
}

// NewSeeded создает детерминированный источник для тестов и
// воспроизводимых «флейворных» значений. Потокобезопасен.
func NewSeeded(seed int64) Source {
	return &lockedSource{rng: mathrand.New(mathrand.NewSource(seed))}
}
