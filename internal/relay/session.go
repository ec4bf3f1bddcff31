package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/practicelab/relay/internal/audio"
	"github.com/practicelab/relay/internal/feedback"
	"github.com/practicelab/relay/internal/metrics"
	"github.com/practicelab/relay/internal/prompts"
	"github.com/practicelab/relay/internal/realtime"
	"github.com/practicelab/relay/internal/store"
)

// State is the session's position in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	DefaultSnapshotInterval = 30 * time.Second
	inboxSize               = 128
	upstreamBufferSize      = 64
)

// Client is the session's handle on the caller's socket.
type Client interface {
	Send(v any) error
	Close() error
}

// Upstream is the session's handle on the realtime speech connection.
type Upstream interface {
	Send(v any) error
	ReadLoop(ctx context.Context, out chan<- realtime.Event) error
	Close() error
}

// Config is the per-session wiring. Store is required; Feedback may be nil.
type Config struct {
	Profile  store.Profile
	Practice store.Practice

	Store    store.Store
	Feedback feedback.Generator

	Model              string
	Voice              string
	TranscriptionModel string

	MaxDuration      time.Duration
	SnapshotInterval time.Duration
	Now              func() time.Time
	Logger           *slog.Logger
}

// Session bridges one client socket to one upstream connection. All event
// handling happens on the goroutine that calls Run (or HandleEvent directly).
type Session struct {
	cfg      Config
	client   Client
	upstream Upstream
	life     *Lifecycle
	persist  *Persister
	log      *slog.Logger

	state             State
	trigger           string
	userSpeaking      float64
	assistantSpeaking float64

	inbox chan Event
	done  chan struct{}
	once  sync.Once
	bg    sync.WaitGroup
}

// New builds a session in the connecting state. Call Start, then Run.
func New(cfg Config, client Client, upstream Upstream) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", cfg.Practice.SessionID, "practice", string(cfg.Practice.Kind))

	return &Session{
		cfg:      cfg,
		client:   client,
		upstream: upstream,
		persist:  NewPersister(log),
		log:      log,
		state:    StateConnecting,
		inbox:    make(chan Event, inboxSize),
		done:     make(chan struct{}),
	}
}

func (s *Session) State() State { return s.state }

// Speaking returns the user and assistant speaking-time accumulators in seconds.
func (s *Session) Speaking() (user, assistant float64) {
	return s.userSpeaking, s.assistantSpeaking
}

// Start configures the upstream session and arms the deadline timer.
func (s *Session) Start() error {
	if s.state != StateConnecting {
		return nil
	}
	voice := s.cfg.Practice.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}
	err := s.upstream.Send(realtime.SessionUpdate(realtime.SessionConfig{
		Model:              s.cfg.Model,
		Instructions:       prompts.ForPractice(s.cfg.Practice, s.cfg.Profile),
		Voice:              voice,
		TranscriptionModel: s.cfg.TranscriptionModel,
		SampleRate:         audio.DefaultSampleRate,
	}))
	if err != nil {
		return err
	}
	s.life = NewLifecycle(s.cfg.MaxDuration, s.cfg.Now)
	s.life.Arm(func() { s.Post(Timeout{}) })
	s.state = StateActive
	metrics.SessionsTotal.WithLabelValues(string(s.cfg.Practice.Kind)).Inc()
	s.log.Info("session started", "max_duration", s.cfg.MaxDuration)
	return nil
}

// Post queues ev for the session loop. It reports false once the loop has exited.
func (s *Session) Post(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- ev:
		return true
	case <-s.done:
		return false
	}
}

// End asks the session to finalize. Used on server shutdown.
func (s *Session) End() {
	s.Post(EndSession{})
}

// Run processes events until the session is closed or ctx ends. Start must
// have succeeded first.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	upCh := make(chan realtime.Event, upstreamBufferSize)
	upErr := make(chan error, 1)
	go func() { upErr <- s.upstream.ReadLoop(runCtx, upCh) }()

	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for s.state != StateClosed {
		select {
		case <-ctx.Done():
			s.HandleEvent(ctx, Disconnect{})
		case ev := <-s.inbox:
			s.HandleEvent(ctx, ev)
		case ev := <-upCh:
			s.HandleEvent(ctx, UpstreamEvent{Event: ev})
		case err := <-upErr:
			s.drainUpstream(ctx, upCh)
			s.HandleEvent(ctx, UpstreamClosed{Err: err})
			upErr = nil
		case <-ticker.C:
			s.HandleEvent(ctx, SnapshotTick{})
		}
	}
	return nil
}

// drainUpstream handles frames the reader queued before it stopped.
func (s *Session) drainUpstream(ctx context.Context, upCh chan realtime.Event) {
	for {
		select {
		case ev := <-upCh:
			s.HandleEvent(ctx, UpstreamEvent{Event: ev})
		default:
			return
		}
	}
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		if s.life != nil {
			s.life.Disarm()
		}
		s.persist.Close()
		close(s.done)
		s.bg.Wait()
	})
}

// HandleEvent is the single dispatch point for every session input.
func (s *Session) HandleEvent(ctx context.Context, ev Event) {
	if s.state == StateClosed {
		return
	}
	switch e := ev.(type) {
	case CompleteAudio:
		s.countClient(e)
		s.onCompleteAudio(e)
	case CancelResponse:
		s.countClient(e)
		s.onCancelResponse()
	case UserMessage:
		s.countClient(e)
		s.onUserMessage()
	case EndSession:
		s.countClient(e)
		s.finalize("end_session")
	case Disconnect:
		s.onDisconnect()
	case UpstreamEvent:
		s.onUpstream(e.Event)
	case UpstreamClosed:
		if e.Err != nil && !errors.Is(e.Err, context.Canceled) {
			s.log.Info("upstream closed", "error", e.Err)
		}
		s.finalize("upstream_closed")
	case Timeout:
		s.finalize("timeout")
	case SnapshotTick:
		if s.state == StateActive {
			s.snapshot()
		}
	case FeedbackReady:
		s.sendClient(feedbackMessage(e.MessageID, e.Feedback))
	}
}

func (s *Session) countClient(ev Event) {
	metrics.ClientEvents.WithLabelValues(ev.eventName()).Inc()
}

// expired routes a client action into finalize once the deadline has passed,
// whether or not the timer has fired yet.
func (s *Session) expired() bool {
	if s.state != StateActive {
		return true
	}
	if s.life.Expired() {
		s.finalize("timeout")
		return true
	}
	return false
}

func (s *Session) onCompleteAudio(e CompleteAudio) {
	if s.expired() {
		return
	}
	pcm := e.Audio
	if wav := audio.ParseWAV(e.Audio); len(wav.Samples) > 0 {
		mono, err := audio.ToMono24k(wav)
		if err != nil {
			// Header rate is not plausible; forward the bytes untouched and count nothing.
			s.log.Warn("utterance not resampled", "sample_rate", wav.SampleRate, "error", err)
		} else {
			d := wav.Duration()
			s.userSpeaking += d
			metrics.SpeakingSeconds.WithLabelValues(string(store.RoleUser)).Add(d)
			pcm = audio.EncodePCM16(mono)
		}
	}
	msgs := []any{
		realtime.AppendAudio(base64.StdEncoding.EncodeToString(pcm)),
		realtime.CommitAudio(),
		realtime.CreateResponse(),
		realtime.ClearAudio(),
	}
	for _, m := range msgs {
		if err := s.upstream.Send(m); err != nil {
			s.log.Warn("upstream send failed", "error", err)
			return
		}
	}
}

func (s *Session) onCancelResponse() {
	if s.expired() {
		return
	}
	if err := s.upstream.Send(realtime.CancelResponse()); err != nil {
		s.log.Warn("cancel response failed", "error", err)
	}
}

// onUserMessage only applies the deadline guard; text turns are not relayed.
func (s *Session) onUserMessage() {
	s.expired()
}

func (s *Session) onDisconnect() {
	if s.life != nil {
		s.life.Disarm()
	}
	if s.state == StateActive {
		s.snapshot()
	}
	if err := s.upstream.Close(); err != nil {
		s.log.Debug("upstream close", "error", err)
	}
	_ = s.client.Close()
	s.state = StateClosed
	s.log.Info("client disconnected")
}

func (s *Session) onUpstream(ev realtime.Event) {
	typ := realtime.Canonical(ev.Type)
	metrics.UpstreamEvents.WithLabelValues(typ).Inc()
	if s.state != StateActive {
		return
	}

	switch typ {
	case realtime.EventItemCreated:
		if ev.Item != nil && ev.Item.Role == string(store.RoleUser) {
			s.sendClient(userTextDelta(ev.Item.ID, ""))
		}
	case realtime.EventInputTranscriptionDelta:
		s.sendClient(userTextDelta(ev.ItemID, ev.Delta))
	case realtime.EventInputTranscriptionDone:
		s.onUserTranscript(ev.ItemID, ev.Transcript)
	case realtime.EventOutputAudioDelta:
		s.onAssistantAudio(ev.ItemID, ev.Delta)
	case realtime.EventOutputAudioDone:
		s.sendClient(assistantAudioDone(ev.ItemID))
	case realtime.EventOutputTranscriptDelta:
		s.sendClient(assistantTextDelta(ev.ItemID, ev.Delta))
	case realtime.EventOutputTranscriptDone:
		s.saveMessage(store.RoleAssistant, ev.Transcript, nil)
	case realtime.EventError:
		if ev.Error != nil {
			s.log.Warn("upstream error", "type", ev.Error.Type, "code", ev.Error.Code, "message", ev.Error.Message)
		} else {
			s.log.Warn("upstream error")
		}
	default:
		s.log.Debug("upstream event", "type", ev.Type)
	}
}

func (s *Session) onAssistantAudio(itemID, delta string) {
	pcm, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		s.log.Warn("assistant audio decode", "item_id", itemID, "error", err)
	} else {
		d := audio.PCM16Duration(pcm, audio.DefaultSampleRate)
		s.assistantSpeaking += d
		metrics.SpeakingSeconds.WithLabelValues(string(store.RoleAssistant)).Add(d)
	}
	s.sendClient(assistantAudioDelta(itemID, delta))
}

// onUserTranscript stores the transcript, then hands feedback generation to a
// background task once the row exists.
func (s *Session) onUserTranscript(itemID, transcript string) {
	s.log.Debug("user transcript", "item_id", itemID, "chars", len(transcript))
	s.saveMessage(store.RoleUser, transcript, func(msg store.Message) {
		if s.cfg.Feedback == nil {
			return
		}
		s.bg.Add(1)
		go s.generateFeedback(msg)
	})
	s.snapshot()
}

func (s *Session) saveMessage(role store.Role, content string, then func(store.Message)) {
	msg := store.Message{
		SessionID: s.cfg.Practice.SessionID,
		Kind:      s.cfg.Practice.Kind,
		Role:      role,
		Content:   content,
	}
	s.persist.Enqueue("create_"+string(role)+"_message", func(ctx context.Context) error {
		created, err := s.cfg.Store.CreateMessage(ctx, msg)
		if err != nil {
			return err
		}
		if then != nil {
			then(created)
		}
		return nil
	})
}

func (s *Session) generateFeedback(msg store.Message) {
	defer s.bg.Done()
	kind := s.cfg.Practice.Kind

	listCtx, cancelList := context.WithTimeout(context.Background(), s.persist.timeout)
	history, err := s.cfg.Store.ListMessages(listCtx, kind, msg.SessionID)
	cancelList()
	if err != nil {
		s.log.Warn("history lookup failed", "error", err)
	}
	var prior []store.Message
	for _, m := range history {
		if m.ID != msg.ID {
			prior = append(prior, m)
		}
	}

	fb, err := s.cfg.Feedback.Generate(context.Background(), feedback.Request{
		Kind:       kind,
		Transcript: msg.Content,
		Profile:    s.cfg.Profile,
		Practice:   s.cfg.Practice,
		History:    prior,
	})
	if err != nil {
		s.log.Warn("feedback generation failed", "message_id", msg.ID, "error", err)
		return
	}
	attachCtx, cancelAttach := context.WithTimeout(context.Background(), s.persist.timeout)
	err = s.cfg.Store.AttachFeedback(attachCtx, kind, msg.ID, fb)
	cancelAttach()
	if err != nil {
		metrics.PersistErrors.WithLabelValues("attach_feedback").Inc()
		s.log.Warn("attach feedback failed", "message_id", msg.ID, "error", err)
		return
	}
	s.Post(FeedbackReady{MessageID: msg.ID, Feedback: fb})
}

func (s *Session) durations() store.DurationSnapshot {
	return store.DurationSnapshot{
		Elapsed:           s.life.Elapsed().Seconds(),
		UserSpeaking:      s.userSpeaking,
		AssistantSpeaking: s.assistantSpeaking,
	}
}

func (s *Session) snapshot() {
	d := s.durations()
	kind, id := s.cfg.Practice.Kind, s.cfg.Practice.SessionID
	s.persist.Enqueue("snapshot_duration", func(ctx context.Context) error {
		return s.cfg.Store.SnapshotDuration(ctx, kind, id, d)
	})
}

// finalize ends the session exactly once: persist the final durations, tell
// the client, then close both sockets.
func (s *Session) finalize(trigger string) {
	if s.life == nil || !s.life.TryEnd() {
		return
	}
	s.state = StateEnding
	s.trigger = trigger
	s.life.Disarm()

	d := s.durations()
	kind, id := s.cfg.Practice.Kind, s.cfg.Practice.SessionID
	s.persist.Enqueue("finalize_duration", func(ctx context.Context) error {
		return s.cfg.Store.FinalizeDuration(ctx, kind, id, d)
	})
	s.persist.Flush()

	s.sendClient(sessionEnded())
	if err := s.client.Close(); err != nil {
		s.log.Debug("client close", "error", err)
	}
	if err := s.upstream.Close(); err != nil {
		s.log.Debug("upstream close", "error", err)
	}
	s.state = StateClosed

	metrics.SessionsEnded.WithLabelValues(trigger).Inc()
	metrics.SessionDuration.Observe(d.Elapsed)
	s.log.Info("session ended",
		"trigger", trigger,
		"elapsed_s", d.Elapsed,
		"user_speaking_s", d.UserSpeaking,
		"assistant_speaking_s", d.AssistantSpeaking,
	)
}

// Trigger names what ended the session, or "" if it has not been finalized.
func (s *Session) Trigger() string { return s.trigger }

func (s *Session) sendClient(v any) {
	if err := s.client.Send(v); err != nil {
		s.log.Debug("client send failed", "error", err)
	}
}
