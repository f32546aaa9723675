package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// State is the session's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// StateCallback observes connection state transitions.
type StateCallback func(State)

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

const (
	defaultDialTimeout  = 10 * time.Second
	defaultPingInterval = 20 * time.Second
	defaultWriteTimeout = 5 * time.Second

	// Floor for analyse/engine_move waits. The bridge may take the full
	// think time plus MultiPV overhead before the reply appears.
	defaultCallTimeout = 20 * time.Second

	newGameTimeout = 5 * time.Second
)

// Option adjusts session behavior.
type Option func(*Session)

func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.dialTimeout = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// Session owns the physical connection to the engine bridge: the
// connect/close lifecycle, the receive loop that routes every inbound
// message, and the periodic keep-alive ping. All request correlation runs
// through its router; callers wanting single-flight ordering submit through a
// Scheduler on top of Call.
type Session struct {
	wsURL  string
	logger *zap.Logger

	dialTimeout  time.Duration
	pingInterval time.Duration
	writeTimeout time.Duration

	router *router

	mu      sync.Mutex // guards conn, state, lastErr, stopCh, closing
	conn    *websocket.Conn
	state   State
	lastErr error
	stopCh  chan struct{}
	closing bool

	writeMu sync.Mutex

	cbM      sync.RWMutex
	stateCbs []stateCallbackEntry

	wg sync.WaitGroup
}

func NewSession(wsURL string, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		wsURL:        wsURL,
		logger:       logger,
		dialTimeout:  defaultDialTimeout,
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		router:       newRouter(logger),
		state:        StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the bridge. It is a no-op when already connected. On failure
// the error is also recorded and readable through LastError.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		err = fmt.Errorf("dial %s: %w", s.wsURL, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state == StateConnected {
		// Lost a connect race; keep the existing connection.
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "duplicate connect")
		return nil
	}
	s.conn = conn
	s.lastErr = nil
	s.closing = false
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.state = StateConnected
	s.mu.Unlock()
	s.notifyState(StateConnected)

	s.wg.Add(2)
	go s.listen(conn)
	go s.keepAlive(conn, stopCh)

	s.logger.Info("engine bridge connected", zap.String("url", s.wsURL))
	return nil
}

// Close stops the keep-alive, closes the transport, and fails every pending
// request with ErrNotConnected. It waits for the session goroutines to exit
// unless ctx ends first.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	conn := s.conn
	s.stopKeepAliveLocked()
	s.mu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "session closed")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError reports the most recent connect or transport failure. It is
// cleared on a successful connect.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) OnStateChange(cb StateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.stateCbs) + 1
	s.stateCbs = append(s.stateCbs, stateCallbackEntry{id: id, callback: cb})
	return id
}

func (s *Session) RemoveStateCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.stateCbs {
		if cb.id == id {
			s.stateCbs = append(s.stateCbs[:i], s.stateCbs[i+1:]...)
			break
		}
	}
}

func (s *Session) notifyState(state State) {
	s.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(s.stateCbs))
	copy(callbacks, s.stateCbs)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Call transmits cmd and waits for the first inbound message whose
// discriminator is in accepts. The pending registration is installed before
// the frame is written so a fast reply can never arrive unmatched, and it is
// withdrawn the instant the timeout or ctx fires so a late reply cannot be
// mis-delivered to a future caller.
func (s *Session) Call(ctx context.Context, cmd Command, accepts []Kind, timeout time.Duration) (Message, error) {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	p := s.router.register(accepts...)

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	err := s.write(wctx, conn, cmd)
	cancel()
	if err != nil {
		s.router.deregister(p.id)
		return nil, fmt.Errorf("send %s: %w", cmd.Cmd, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-p.ch:
		return res.msg, res.err
	case <-timer.C:
		if s.router.deregister(p.id) {
			return nil, fmt.Errorf("%w: no %s reply within %s", ErrTimeout, cmd.Cmd, timeout)
		}
		// Resolved while the timer fired; the result is already buffered.
		res := <-p.ch
		return res.msg, res.err
	case <-ctx.Done():
		if s.router.deregister(p.id) {
			return nil, ctx.Err()
		}
		res := <-p.ch
		return res.msg, res.err
	}
}

// Analyse requests an evaluation of fen with movetime milliseconds of search.
func (s *Session) Analyse(ctx context.Context, fen string, movetime int) (*Analysis, error) {
	msg, err := s.Call(ctx, Command{Cmd: cmdAnalyse, FEN: fen, Movetime: movetime},
		[]Kind{KindAnalysis}, requestTimeout(movetime))
	if err != nil {
		return nil, err
	}
	a, ok := msg.(*Analysis)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s reply to analyse", ErrDecodeFailed, msg.Kind())
	}
	return a, nil
}

// EngineMove asks the engine to choose a move for the side to move in fen.
func (s *Session) EngineMove(ctx context.Context, fen string, movetime int) (*EngineMove, error) {
	msg, err := s.Call(ctx, Command{Cmd: cmdEngineMove, FEN: fen, Movetime: movetime},
		[]Kind{KindEngineMove}, requestTimeout(movetime))
	if err != nil {
		return nil, err
	}
	m, ok := msg.(*EngineMove)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s reply to engine_move", ErrDecodeFailed, msg.Kind())
	}
	return m, nil
}

// NewGame clears the engine's transposition state between games.
func (s *Session) NewGame(ctx context.Context) error {
	_, err := s.Call(ctx, Command{Cmd: cmdNewGame}, []Kind{KindNewGameOK}, newGameTimeout)
	return err
}

// requestTimeout pads the think time with a margin for MultiPV overhead and
// never drops below the fixed defaultCallTimeout floor.
func requestTimeout(movetimeMS int) time.Duration {
	t := time.Duration(movetimeMS)*time.Millisecond + 5*time.Second
	if t < defaultCallTimeout {
		return defaultCallTimeout
	}
	return t
}

func (s *Session) write(ctx context.Context, conn *websocket.Conn, cmd Command) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsjson.Write(ctx, conn, cmd)
}

// listen reads frames until the transport fails or the session closes, then
// tears the connection down exactly once.
func (s *Session) listen(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		_, raw, err := conn.Read(context.Background())
		if err != nil {
			s.teardown(conn, err)
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Session) handleFrame(raw []byte) {
	kind, ok := probeKind(raw)
	if !ok {
		s.logger.Debug("dropping message without type", zap.ByteString("raw", raw))
		return
	}
	msg, err := decodeKind(kind, raw)
	if err != nil {
		if !s.router.routeFailure(kind, err) {
			s.logger.Debug("dropping undecodable message",
				zap.String("type", string(kind)), zap.Error(err))
		}
		return
	}
	if !s.router.route(msg) && kind != KindPong && kind != KindInfo {
		s.logger.Debug("dropping unmatched reply", zap.String("type", string(kind)))
	}
}

// keepAlive sends an application-level ping every interval while connected.
// The send is fire-and-forget: no pending request is registered and the pong
// is discarded by the router.
func (s *Session) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
			err := s.write(ctx, conn, Command{Cmd: cmdPing})
			cancel()
			if err != nil {
				// The receive loop surfaces the actual transport failure.
				s.logger.Debug("keep-alive ping failed", zap.Error(err))
			}
		}
	}
}

// teardown flips the session to Disconnected and fails every pending request,
// with ErrNotConnected on an explicit close and the transport cause otherwise.
func (s *Session) teardown(conn *websocket.Conn, readErr error) {
	s.mu.Lock()
	if s.conn != conn {
		// A newer connection owns the session.
		s.mu.Unlock()
		return
	}
	var cause error
	if s.closing {
		cause = ErrNotConnected
	} else {
		cause = fmt.Errorf("connection lost: %w", readErr)
		s.lastErr = cause
	}
	s.conn = nil
	s.stopKeepAliveLocked()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.router.failAll(cause)
	s.notifyState(StateDisconnected)
	if !errors.Is(cause, ErrNotConnected) {
		s.logger.Warn("engine bridge connection lost", zap.Error(readErr))
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// caller must hold s.mu.
func (s *Session) stopKeepAliveLocked() {
	if s.stopCh == nil {
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}
