package coach

import (
	"sync"

	"github.com/park285/leela-coach/pkg/coachdto"
)

// LiveCallback observes live-state changes.
type LiveCallback func(coachdto.LiveSnapshot)

type liveCallbackEntry struct {
	id       int
	callback LiveCallback
}

// LiveState is the single mutable slot holding the most recent published
// evaluation: feedback text, best-move hint, score, position characteristics
// and the busy flag. Every completed analysis overwrites it, last write wins.
// Observers read snapshots and must tolerate eventual consistency.
type LiveState struct {
	mu   sync.RWMutex
	snap coachdto.LiveSnapshot

	cbM  sync.RWMutex
	subs []liveCallbackEntry
}

func NewLiveState() *LiveState {
	return &LiveState{}
}

func (l *LiveState) Snapshot() coachdto.LiveSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

func (l *LiveState) Subscribe(cb LiveCallback) int {
	l.cbM.Lock()
	defer l.cbM.Unlock()
	id := len(l.subs) + 1
	l.subs = append(l.subs, liveCallbackEntry{id: id, callback: cb})
	return id
}

func (l *LiveState) Unsubscribe(id int) {
	l.cbM.Lock()
	defer l.cbM.Unlock()
	for i, sub := range l.subs {
		if sub.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			break
		}
	}
}

// ApplyAnalysis overwrites the evaluation fields. The busy flag is managed
// separately and survives the overwrite.
func (l *LiveState) ApplyAnalysis(a *coachdto.Analysis) {
	if a == nil {
		return
	}
	l.mu.Lock()
	l.snap.FEN = a.FEN
	l.snap.Feedback = a.Feedback
	l.snap.BestMove = a.BestMove
	l.snap.ScoreCP = a.ScoreCP
	l.snap.ScoreMate = a.ScoreMate
	l.snap.Characteristics = a.Characteristics
	snap := l.snap
	l.mu.Unlock()
	l.publish(snap)
}

// SetBestMove replaces only the best-move hint. Engine-move exchanges land
// here; they never overwrite the analysis evaluation.
func (l *LiveState) SetBestMove(move string) {
	l.mu.Lock()
	l.snap.BestMove = move
	snap := l.snap
	l.mu.Unlock()
	l.publish(snap)
}

// SetFeedback replaces only the feedback text. Request failures surface
// their description here without touching recorded critiques.
func (l *LiveState) SetFeedback(text string) {
	l.mu.Lock()
	l.snap.Feedback = text
	snap := l.snap
	l.mu.Unlock()
	l.publish(snap)
}

// SetBusy flips the busy flag when a scheduled unit starts and ends.
func (l *LiveState) SetBusy(busy bool) {
	l.mu.Lock()
	if l.snap.Busy == busy {
		l.mu.Unlock()
		return
	}
	l.snap.Busy = busy
	snap := l.snap
	l.mu.Unlock()
	l.publish(snap)
}

// Reset empties the slot for a new game.
func (l *LiveState) Reset() {
	l.mu.Lock()
	busy := l.snap.Busy
	l.snap = coachdto.LiveSnapshot{Busy: busy}
	snap := l.snap
	l.mu.Unlock()
	l.publish(snap)
}

func (l *LiveState) publish(snap coachdto.LiveSnapshot) {
	l.cbM.RLock()
	subs := make([]liveCallbackEntry, len(l.subs))
	copy(subs, l.subs)
	l.cbM.RUnlock()
	for _, sub := range subs {
		if sub.callback != nil {
			sub.callback(snap)
		}
	}
}
