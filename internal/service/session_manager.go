package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"wellbeing-companion/internal/domain"
	"wellbeing-companion/internal/llm"
	"wellbeing-companion/internal/repository"
	"wellbeing-companion/internal/safety"
)

// SafetyClassifier es la vista que el manager necesita del clasificador.
type SafetyClassifier interface {
	Classify(utterance string) safety.Verdict
}

// ChatStore es el subconjunto del store que usa el manager.
type ChatStore interface {
	repository.ChatMessageRepository
	repository.ChatSessionRepository
}

// SessionManagerConfig agrupa los límites del protocolo de turnos.
type SessionManagerConfig struct {
	Staleness         time.Duration
	GenerationTimeout time.Duration
	MaxMessageRunes   int
}

// SessionView es lo que la UI recibe al abrir el chat.
type SessionView struct {
	Session             domain.ChatSession   `json:"session"`
	Messages            []domain.ChatMessage `json:"messages"`
	ShowCrisisResources bool                 `json:"show_crisis_resources"`
	CrisisResources     []safety.Hotline     `json:"crisis_resources,omitempty"`
}

// AnnotatedReply es el resultado de un turno completo.
type AnnotatedReply struct {
	SessionID           string             `json:"session_id"`
	UserMessage         domain.ChatMessage `json:"user_message"`
	Reply               domain.ChatMessage `json:"reply"`
	Verdict             safety.Verdict     `json:"verdict"`
	Fallback            bool               `json:"fallback"`
	ShowCrisisResources bool               `json:"show_crisis_resources"`
	CrisisResources     []safety.Hotline   `json:"crisis_resources,omitempty"`
}

// SessionManager es dueño del protocolo de turnos: guarda el mensaje del usuario,
// clasifica, pide la respuesta (o usa el fallback) y persiste el intercambio.
type SessionManager struct {
	store      ChatStore
	classifier SafetyClassifier
	generator  llm.Generator
	events     EventBus
	locker     TurnLocker
	logger     *zap.Logger
	cfg        SessionManagerConfig

	turns *turnGuard
	now   func() time.Time
	pick  func(n int) int
}

// NewSessionManager arma el manager. events y locker son opcionales.
func NewSessionManager(
	store ChatStore,
	classifier SafetyClassifier,
	generator llm.Generator,
	events EventBus,
	locker TurnLocker,
	logger *zap.Logger,
	cfg SessionManagerConfig,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 4 * time.Hour
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 25 * time.Second
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = 4000
	}
	return &SessionManager{
		store:      store,
		classifier: classifier,
		generator:  generator,
		events:     events,
		locker:     locker,
		logger:     logger,
		cfg:        cfg,
		turns:      newTurnGuard(),
		now:        func() time.Time { return time.Now().UTC() },
		pick:       rand.IntN,
	}
}

// ActiveSession resuelve (o crea) la sesión activa del dispositivo.
func (m *SessionManager) ActiveSession(ctx context.Context, deviceID string) (domain.ChatSession, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.ChatSession{}, fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	session, err := m.store.GetOrCreateActive(ctx, deviceID, m.cfg.Staleness, m.now())
	if err != nil {
		return domain.ChatSession{}, err
	}
	return session, nil
}

// SessionForDevice devuelve la sesión solo si pertenece al dispositivo.
func (m *SessionManager) SessionForDevice(ctx context.Context, deviceID, sessionID string) (domain.ChatSession, error) {
	session, err := m.store.GetByID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.ChatSession{}, err
	}
	if session.DeviceID != strings.TrimSpace(deviceID) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadSession devuelve la sesión activa con su historial. Una sesión vacía recibe
// exactamente un saludo antes de devolverse.
func (m *SessionManager) LoadSession(ctx context.Context, deviceID string) (SessionView, error) {
	session, err := m.ActiveSession(ctx, deviceID)
	if err != nil {
		return SessionView{}, err
	}

	messages, err := m.store.ListBySessionID(ctx, session.ID)
	if err != nil {
		return SessionView{}, err
	}

	// Si hay un turno en curso, acá o en otra instancia, ese turno se encarga del saludo.
	if len(messages) == 0 {
		release, lockErr := m.acquireTurn(ctx, session.ID)
		if lockErr == nil {
			messages, err = m.greetIfEmpty(ctx, session.ID)
			release()
			if err != nil {
				return SessionView{}, err
			}
		}
	}

	view := SessionView{
		Session:             session,
		Messages:            messages,
		ShowCrisisResources: session.CrisisFlag,
	}
	if session.CrisisFlag {
		view.CrisisResources = safety.DefaultHotlines()
	}
	return view, nil
}

// greetIfEmpty se llama con el turno tomado.
func (m *SessionManager) greetIfEmpty(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	messages, err := m.store.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	greeting, err := m.store.Append(ctx, sessionID, domain.ChatMessage{
		Sender:     domain.SenderCompanion,
		Text:       pickGreeting(m.pick),
		SafetyFlag: domain.SafetyFlagNone,
		CreatedAt:  m.now(),
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session greeted", zap.String("session_id", sessionID), zap.String("message_id", greeting.ID))
	return []domain.ChatMessage{greeting}, nil
}

// SendToDevice envía text a la sesión activa del dispositivo.
func (m *SessionManager) SendToDevice(ctx context.Context, deviceID, text string) (AnnotatedReply, error) {
	if _, err := m.validateText(text); err != nil {
		return AnnotatedReply{}, err
	}
	session, err := m.ActiveSession(ctx, deviceID)
	if err != nil {
		return AnnotatedReply{}, err
	}
	return m.SendMessage(ctx, session.ID, text)
}

// SendMessage ejecuta un turno completo sobre la sesión.
//
// Errores: ErrInvalidInput, ErrSessionNotFound, ErrSessionEnded, ErrTurnInProgress,
// ErrTurnCanceled y *repository.StorageError. Las fallas del generador nunca se devuelven:
// el turno termina con FallbackReply.
func (m *SessionManager) SendMessage(ctx context.Context, sessionID, text string) (AnnotatedReply, error) {
	utterance, err := m.validateText(text)
	if err != nil {
		return AnnotatedReply{}, err
	}

	session, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		return AnnotatedReply{}, err
	}
	if session.Ended() {
		return AnnotatedReply{}, ErrSessionEnded
	}

	release, err := m.acquireTurn(ctx, session.ID)
	if err != nil {
		return AnnotatedReply{}, err
	}
	defer release()

	// Con el turno tomado se relee: un EndSession pudo cerrarla entre la lectura y el lock.
	session, err = m.store.GetByID(ctx, session.ID)
	if err != nil {
		return AnnotatedReply{}, m.turnErr(ctx, err)
	}
	if session.Ended() {
		return AnnotatedReply{}, ErrSessionEnded
	}
	m.turns.set(session.ID, TurnAwaitingClassification)

	history, err := m.greetIfEmpty(ctx, session.ID)
	if err != nil {
		return AnnotatedReply{}, m.turnErr(ctx, err)
	}

	verdict := m.classify(utterance)
	flag := domain.SafetyFlagNone
	if verdict.IsCrisis() {
		flag = domain.SafetyFlagCrisisDetected
	}

	userMsg, err := m.store.Append(ctx, session.ID, domain.ChatMessage{
		Sender:     domain.SenderUser,
		Text:       utterance,
		SafetyFlag: flag,
		CreatedAt:  m.now(),
	})
	if err != nil {
		return AnnotatedReply{}, m.turnErr(ctx, err)
	}

	if verdict.IsCrisis() {
		m.logger.Warn("crisis signal detected",
			zap.String("session_id", session.ID),
			zap.String("message_id", userMsg.ID),
			zap.String("matched_signal", verdict.MatchedSignal),
		)
		if err := m.store.MarkCrisis(ctx, session.ID, verdict.MatchedSignal); err != nil {
			return AnnotatedReply{}, m.turnErr(ctx, err)
		}
	}

	m.turns.set(session.ID, TurnAwaitingGeneration)
	reply, fallback, err := m.generate(ctx, session.ID, history, utterance)
	if err != nil {
		return AnnotatedReply{}, err
	}

	replyMsg, err := m.store.Append(ctx, session.ID, domain.ChatMessage{
		Sender:        domain.SenderCompanion,
		Text:          reply.Text,
		SafetyFlag:    flag,
		SuggestedTool: reply.SuggestedTool,
		CreatedAt:     m.now(),
	})
	if err != nil {
		return AnnotatedReply{}, m.turnErr(ctx, err)
	}
	m.turns.set(session.ID, TurnComplete)

	out := AnnotatedReply{
		SessionID:           session.ID,
		UserMessage:         userMsg,
		Reply:               replyMsg,
		Verdict:             verdict,
		Fallback:            fallback,
		ShowCrisisResources: verdict.IsCrisis(),
	}
	if verdict.IsCrisis() {
		out.CrisisResources = safety.DefaultHotlines()
	}

	m.logger.Info("turn completed",
		zap.String("session_id", session.ID),
		zap.String("message_id", replyMsg.ID),
		zap.String("safety_flag", string(flag)),
		zap.Bool("fallback", fallback),
	)
	m.publish(ctx, session, out)
	return out, nil
}

// generate llama al generador con su propio timeout. Un error del generador se absorbe
// con el fallback; solo la cancelación del llamador corta el turno.
func (m *SessionManager) generate(ctx context.Context, sessionID string, history []domain.ChatMessage, utterance string) (llm.Reply, bool, error) {
	genCtx, cancel := context.WithTimeout(ctx, m.cfg.GenerationTimeout)
	defer cancel()

	reply, err := m.generator.Generate(genCtx, history, utterance)
	if ctxErr := ctx.Err(); ctxErr != nil {
		m.logger.Info("turn canceled during generation", zap.String("session_id", sessionID))
		return llm.Reply{}, false, fmt.Errorf("%w: %w", ErrTurnCanceled, ctxErr)
	}
	if err == nil && strings.TrimSpace(reply.Text) == "" {
		err = &llm.GenerationError{Kind: llm.KindMalformed, Provider: "unknown", Err: errors.New("empty reply")}
	}
	if err != nil {
		m.logger.Warn("generation failed, using fallback reply",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return llm.Reply{Text: FallbackReply}, true, nil
	}
	reply.Text = strings.TrimSpace(reply.Text)
	return reply, false, nil
}

// EndSession cierra la sesión del dispositivo. Cerrar dos veces no es error.
func (m *SessionManager) EndSession(ctx context.Context, deviceID, sessionID string) (domain.ChatSession, error) {
	session, err := m.SessionForDevice(ctx, deviceID, sessionID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	release, err := m.acquireTurn(ctx, session.ID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	defer release()

	if err := m.store.End(ctx, session.ID, m.now()); err != nil {
		return domain.ChatSession{}, err
	}
	m.logger.Info("session ended", zap.String("session_id", session.ID), zap.String("device_id", session.DeviceID))
	return m.store.GetByID(ctx, session.ID)
}

// acquireTurn toma el guard local y, si está configurado, el lock distribuido.
// Si Redis falla se sigue solo con el guard local.
func (m *SessionManager) acquireTurn(ctx context.Context, sessionID string) (func(), error) {
	if !m.turns.tryAcquire(sessionID) {
		return nil, ErrTurnInProgress
	}
	local := func() { m.turns.release(sessionID) }
	if m.locker == nil {
		return local, nil
	}

	unlock, ok, err := m.locker.Acquire(ctx, sessionID)
	switch {
	case err != nil:
		m.logger.Warn("turn lock unavailable, continuing with local guard",
			zap.String("session_id", sessionID), zap.Error(err))
		return local, nil
	case !ok:
		local()
		return nil, ErrTurnInProgress
	}
	return func() {
		unlock()
		local()
	}, nil
}

// TurnState informa el estado del turno de la sesión en este proceso.
func (m *SessionManager) TurnState(sessionID string) TurnState {
	return m.turns.state(sessionID)
}

func (m *SessionManager) validateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: message text is empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(trimmed); n > m.cfg.MaxMessageRunes {
		return "", fmt.Errorf("%w: message has %d characters, max is %d", ErrInvalidInput, n, m.cfg.MaxMessageRunes)
	}
	return trimmed, nil
}

func (m *SessionManager) classify(utterance string) safety.Verdict {
	if m.classifier == nil {
		return safety.Verdict{Level: safety.LevelNone}
	}
	return m.classifier.Classify(utterance)
}

// turnErr distingue la cancelación del llamador de una falla del store.
func (m *SessionManager) turnErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionEnded) {
		return fmt.Errorf("%w: %w", ErrTurnCanceled, ctxErr)
	}
	return err
}

func (m *SessionManager) publish(ctx context.Context, session domain.ChatSession, reply AnnotatedReply) {
	if m.events == nil {
		return
	}
	// El turno ya está guardado: el evento no depende de que el llamador siga esperando.
	pctx := context.WithoutCancel(ctx)
	at := m.now()

	events := []Event{{
		Type:      EventTurnCompleted,
		DeviceID:  session.DeviceID,
		SessionID: session.ID,
		MessageID: reply.Reply.ID,
		Fallback:  reply.Fallback,
		At:        at,
	}}
	if reply.Verdict.IsCrisis() {
		events = append(events, Event{
			Type:          EventCrisisDetected,
			DeviceID:      session.DeviceID,
			SessionID:     session.ID,
			MessageID:     reply.Reply.ID,
			MatchedSignal: reply.Verdict.MatchedSignal,
			Hotlines:      reply.CrisisResources,
			At:            at,
		})
	}
	for _, ev := range events {
		if err := m.events.Publish(pctx, ev); err != nil {
			m.logger.Warn("publish event failed",
				zap.String("session_id", session.ID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}
