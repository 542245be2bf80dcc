package service

import "sync"

// TurnState describe en qué punto está el turno de una sesión.
type TurnState string

const (
	TurnIdle                   TurnState = "idle"
	TurnAwaitingClassification TurnState = "awaiting_classification"
	TurnAwaitingGeneration     TurnState = "awaiting_generation"
	TurnComplete               TurnState = "complete"
)

// turnGuard serializa turnos dentro del proceso. Mientras una sesión está tomada,
// cualquier otro intento se rechaza, incluso en Complete.
type turnGuard struct {
	mu     sync.Mutex
	held   map[string]struct{}
	states map[string]TurnState
}

func newTurnGuard() *turnGuard {
	return &turnGuard{
		held:   make(map[string]struct{}),
		states: make(map[string]TurnState),
	}
}

// tryAcquire toma la sesión sin cambiar su estado observable.
func (g *turnGuard) tryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[sessionID]; ok {
		return false
	}
	g.held[sessionID] = struct{}{}
	return true
}

func (g *turnGuard) set(sessionID string, state TurnState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state == TurnIdle {
		delete(g.states, sessionID)
		return
	}
	g.states[sessionID] = state
}

// release suelta la sesión y la devuelve a Idle.
func (g *turnGuard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, sessionID)
	delete(g.states, sessionID)
}

func (g *turnGuard) state(sessionID string) TurnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.states[sessionID]; ok {
		return s
	}
	return TurnIdle
}
