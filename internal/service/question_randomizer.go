package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/lshigami/testcert/internal/model"
)

// QuestionRandomizer produces a per-session ordering of a test's questions.
type QuestionRandomizer interface {
	Randomize(questions []model.Question) []model.Question
}

type questionRandomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewQuestionRandomizer() QuestionRandomizer {
	return NewSeededQuestionRandomizer(time.Now().UnixNano())
}

func NewSeededQuestionRandomizer(seed int64) QuestionRandomizer {
	return &questionRandomizer{rng: rand.New(rand.NewSource(seed))}
}

// Randomize shuffles question order, then each question's options
// independently. The input is not modified; CorrectAnswer is kept verbatim
// so scoring still matches by value.
func (r *questionRandomizer) Randomize(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	copy(out, questions)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		options := append([]string(nil), out[i].Options...)
		r.shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })
		out[i].Options = options
	}
	return out
}

// shuffle is a Fisher–Yates pass from the tail.
func (r *questionRandomizer) shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		swap(i, j)
	}
}
