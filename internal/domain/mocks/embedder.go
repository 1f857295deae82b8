// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
)

// DefaultDimensions is the vector size produced by Embedder when Dimensions is zero.
const DefaultDimensions = 16

// Embedder is a mock implementation of ports.Embedder.
//
// Texts without a fixed vector get a bag-of-words hash vector, so texts that
// share words are similar and identical texts produce identical vectors.
type Embedder struct {
	// Vectors fixes the embedding of any text containing the key.
	Vectors map[string][]float32
	// Dimensions of generated vectors.
	Dimensions int
	// Err fails every call.
	Err error
	// FailOn fails any text containing one of these substrings with a
	// permanent provider error. A batch containing such a text fails whole.
	FailOn []string
	// Block makes every call wait until it is closed or the context ends.
	Block chan struct{}
	// Started receives a value, without blocking, whenever a call begins.
	Started chan struct{}

	mu                  sync.Mutex
	EmbedCallCount      int
	EmbedBatchCallCount int
	EmbeddedTexts       []string
}

// Embed returns the embedding for a single text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCallCount++
	m.mu.Unlock()

	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if err := m.check(text); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.EmbeddedTexts = append(m.EmbeddedTexts, text)
	m.mu.Unlock()
	return m.vector(text), nil
}

// EmbedBatch returns embeddings for multiple texts.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.EmbedBatchCallCount++
	m.mu.Unlock()

	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	for _, text := range texts {
		if err := m.check(text); err != nil {
			return nil, err
		}
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vector(text)
	}
	m.mu.Lock()
	m.EmbeddedTexts = append(m.EmbeddedTexts, texts...)
	m.mu.Unlock()
	return result, nil
}

// Calls returns the total number of Embed and EmbedBatch calls.
func (m *Embedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EmbedCallCount + m.EmbedBatchCallCount
}

// Texts returns a copy of every successfully embedded text.
func (m *Embedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.EmbeddedTexts...)
}

// Reset clears call tracking.
func (m *Embedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCallCount = 0
	m.EmbedBatchCallCount = 0
	m.EmbeddedTexts = nil
}

func (m *Embedder) begin(ctx context.Context) error {
	if m.Started != nil {
		select {
		case m.Started <- struct{}{}:
		default:
		}
	}
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

func (m *Embedder) check(text string) error {
	for _, s := range m.FailOn {
		if strings.Contains(text, s) {
			return apperror.Provider(errors.New("mock embedding rejected "+s), false)
		}
	}
	return nil
}

func (m *Embedder) vector(text string) []float32 {
	for key, v := range m.Vectors {
		if strings.Contains(text, key) {
			return append([]float32(nil), v...)
		}
	}
	return HashVector(text, m.Dimensions)
}

// HashVector returns a normalized bag-of-words vector for text.
func HashVector(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
