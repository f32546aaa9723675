package coach

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/park285/leela-coach/pkg/coachdto"
)

// Journal is the append-only critique log for the current game, plus the
// engine analysis carried between successive classifications. The carried
// analysis is the evaluation of the position the next move will be played
// from, kept raw in the side-to-move perspective the bridge reports.
type Journal struct {
	mu        sync.Mutex
	critiques []coachdto.Critique
	carried   *coachdto.Analysis
	startedAt time.Time
}

func NewJournal() *Journal {
	return &Journal{startedAt: time.Now()}
}

// Append stamps the critique with its sequence number and time and adds it
// to the log. Entries are never mutated after this.
func (j *Journal) Append(c coachdto.Critique) coachdto.Critique {
	j.mu.Lock()
	defer j.mu.Unlock()
	c.Seq = len(j.critiques) + 1
	c.RecordedAt = time.Now()
	j.critiques = append(j.critiques, c)
	return c
}

// Critiques returns a copy of the log, oldest first.
func (j *Journal) Critiques() []coachdto.Critique {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]coachdto.Critique(nil), j.critiques...)
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.critiques)
}

// Carried returns the analysis carried from the previous recorded move, or
// nil right after a clear, in which case the next classification has no
// score-before and comes out Unknown.
func (j *Journal) Carried() *coachdto.Analysis {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.carried == nil {
		return nil
	}
	cp := *j.carried
	return &cp
}

// SetCarried replaces the carried analysis after a successful record.
func (j *Journal) SetCarried(a *coachdto.Analysis) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.carried = a
}

// Clear wipes the log and the carried analysis for a new game.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.critiques = nil
	j.carried = nil
	j.startedAt = time.Now()
}

// Record packages the current log as an archivable game record.
func (j *Journal) Record(result string) coachdto.GameRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return coachdto.GameRecord{
		ID:        uuid.NewString(),
		Result:    result,
		StartedAt: j.startedAt,
		EndedAt:   time.Now(),
		Critiques: append([]coachdto.Critique(nil), j.critiques...),
	}
}
