package access

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/scheduler"
	"github.com/fastygo/storefront-guard/pkg/token"
	"github.com/fastygo/storefront-guard/repository"
	"github.com/fastygo/storefront-guard/usecase/auth"
	"github.com/fastygo/storefront-guard/usecase/session"
)

// Collaborators are the backend calls the gate depends on. Any may be nil.
type Collaborators struct {
	RefreshToken     func(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout           func(ctx context.Context) error
	CheckSession     func(ctx context.Context) (bool, error)
	CheckPermissions func(ctx context.Context, user *domain.User, req Requirements) (bool, error)
}

// SecuritySource supplies assessments.
type SecuritySource interface {
	Assessment() (domain.Assessment, bool)
	Subscribe(fn func(domain.Assessment)) func()
}

// Resetter is implemented by security sources whose assessment belongs to a
// session and is discarded when it ends.
type Resetter interface {
	Reset()
}

// Observer receives decision telemetry.
type Observer interface {
	ObserveDecision(domain.Decision)
	ObserveSessionExtension(err error)
}

type Config struct {
	Requirements     Requirements
	Session          session.Config
	RefreshThreshold time.Duration
	// PollInterval drives the token refresh check.
	PollInterval time.Duration
	// RecheckInterval drives the server session check and the status flag reload.
	RecheckInterval time.Duration
	CallTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Session:          session.DefaultConfig(),
		RefreshThreshold: token.DefaultRefreshThreshold,
		PollInterval:     30 * time.Second,
		RecheckInterval:  60 * time.Second,
		CallTimeout:      5 * time.Second,
	}
}

// Gate owns the current access decision.
type Gate struct {
	auth     *auth.UseCase
	session  *session.Monitor
	security SecuritySource
	status   repository.StatusRepository
	collab   Collaborators
	sched    scheduler.Scheduler
	cfg      Config
	observer Observer
	logger   *zap.Logger

	evalMu sync.Mutex

	mu            sync.Mutex
	decision      domain.Decision
	creds         *domain.Credentials
	maintenance   bool
	lockedUntil   time.Time
	verifyErr     error
	verdicts      map[string]bool
	failedRefresh string
	running       bool
	handles       []scheduler.Handle
	unsubscribe   []func()
	nextSub       int
	subs          map[int]func(domain.Decision)
}

// NewGate wires the gate. status and security may be nil.
func NewGate(
	authUC *auth.UseCase,
	security SecuritySource,
	status repository.StatusRepository,
	collab Collaborators,
	sched scheduler.Scheduler,
	cfg Config,
	observer Observer,
	logger *zap.Logger,
) *Gate {
	def := DefaultConfig()
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = def.RefreshThreshold
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = def.RecheckInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		auth:     authUC,
		security: security,
		status:   status,
		collab:   collab,
		sched:    sched,
		cfg:      cfg,
		observer: observer,
		logger:   logger.Named("access"),
		decision: domain.DecisionChecking,
		verdicts: make(map[string]bool),
		subs:     make(map[int]func(domain.Decision)),
	}
	g.session = session.NewMonitor(sched, cfg.Session, g.refreshTokens, logger)
	return g
}

// Session exposes the timeout monitor driven by the gate.
func (g *Gate) Session() *session.Monitor { return g.session }

// Start restores stored credentials, subscribes to security updates, arms
// the poll and re-check timers and evaluates once.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = true
	g.mu.Unlock()

	creds, err := g.auth.Current(ctx)
	switch {
	case err == nil:
		g.setCredentials(creds)
		g.startSession(creds)
	case errors.Is(err, domain.ErrCredentialsNotFound):
	default:
		g.logger.Warn("failed to restore credentials", zap.Error(err))
	}
	g.reloadStatus(ctx)

	var unsubscribe []func()
	if g.security != nil {
		unsubscribe = append(unsubscribe, g.security.Subscribe(g.onAssessment))
	}
	unsubscribe = append(unsubscribe, g.session.OnExpired(func() { g.reevaluate(context.Background()) }))

	handles := []scheduler.Handle{
		g.sched.Every(g.cfg.PollInterval, func() { g.Poll(context.Background()) }),
		g.sched.Every(g.cfg.RecheckInterval, func() { g.Recheck(context.Background()) }),
	}

	g.mu.Lock()
	g.handles = handles
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.reevaluate(ctx)
	return nil
}

// Stop cancels every timer and subscription. It is idempotent.
func (g *Gate) Stop() {
	g.mu.Lock()
	handles := g.handles
	unsubscribe := g.unsubscribe
	g.handles = nil
	g.unsubscribe = nil
	g.running = false
	g.mu.Unlock()

	defer g.session.Stop()
	for _, h := range handles {
		h.Cancel()
	}
	for _, fn := range unsubscribe {
		fn()
	}
}

// Login stores a new token pair and starts the session window.
func (g *Gate) Login(ctx context.Context, pair domain.TokenPair, user *domain.User) (domain.Decision, error) {
	creds, err := g.auth.Login(ctx, pair, user)
	if err != nil {
		return g.Decision(), err
	}
	g.setCredentials(creds)
	g.session.Start(time.Time{})
	g.reloadStatus(ctx)
	return g.reevaluate(ctx), nil
}

// Logout ends the session locally and on the backend.
func (g *Gate) Logout(ctx context.Context) error {
	return g.endSession(ctx, "logout")
}

// ExtendSession refreshes the token and renews the session window.
// A failed refresh forces a logout.
// Without stored credentials there is nothing to extend.
func (g *Gate) ExtendSession(ctx context.Context) error {
	g.mu.Lock()
	signedIn := g.creds != nil
	g.mu.Unlock()
	if !signedIn {
		return domain.ErrSessionExpired
	}

	err := g.session.ExtendSession(ctx)
	if g.observer != nil {
		g.observer.ObserveSessionExtension(err)
	}
	if err != nil {
		if logoutErr := g.endSession(ctx, "session extension failed"); logoutErr != nil {
			g.logger.Error("forced logout failed", zap.Error(logoutErr))
		}
		return err
	}
	g.reevaluate(ctx)
	return nil
}

// Touch records user activity.
func (g *Gate) Touch(ctx context.Context) error {
	g.session.Touch()
	return g.auth.Touch(ctx)
}

// SetMaintenance toggles maintenance mode for every client sharing the status store.
func (g *Gate) SetMaintenance(ctx context.Context, enabled bool) error {
	if g.status != nil {
		if err := g.status.SetMaintenance(ctx, enabled); err != nil {
			return err
		}
	}
	g.mu.Lock()
	g.maintenance = enabled
	g.mu.Unlock()
	g.reevaluate(ctx)
	return nil
}

// Lock locks the current user out until the given time. A past time unlocks.
func (g *Gate) Lock(ctx context.Context, until time.Time) error {
	g.mu.Lock()
	userID := credentialUserID(g.creds)
	g.mu.Unlock()
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if g.status != nil {
		if err := g.status.Lock(ctx, userID, until); err != nil {
			return err
		}
	}
	g.mu.Lock()
	g.lockedUntil = until
	g.mu.Unlock()
	g.reevaluate(ctx)
	return nil
}

// Decision returns the current decision for the configured requirements.
func (g *Gate) Decision() domain.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// User returns the signed-in user, or nil.
func (g *Gate) User() *domain.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.creds == nil {
		return nil
	}
	return g.creds.User
}

// Evaluate decides an ad-hoc requirement set against the current facts
// without changing the gate's own decision.
func (g *Gate) Evaluate(ctx context.Context, req Requirements) domain.Decision {
	facts, creds, verifyErr := g.snapshot()
	return g.settle(ctx, Decide(facts, req), creds, req, verifyErr)
}

// Subscribe registers fn for decision changes. The returned func unregisters it.
func (g *Gate) Subscribe(fn func(domain.Decision)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextSub++
	id := g.nextSub
	g.subs[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subs, id)
	}
}

// Poll refreshes the access token when it is about to expire. A token whose
// refresh failed is not retried; the failure surfaces as a decision instead.
func (g *Gate) Poll(ctx context.Context) {
	g.mu.Lock()
	creds := g.creds
	failed := g.failedRefresh
	g.mu.Unlock()

	if creds != nil && creds.AccessToken != failed &&
		token.ShouldRefresh(creds.AccessToken, g.sched.Now(), g.cfg.RefreshThreshold) {
		if err := g.refreshTokens(ctx); err != nil {
			g.mu.Lock()
			g.failedRefresh = creds.AccessToken
			g.mu.Unlock()
			g.logger.Warn("token refresh failed", zap.Error(err))
		}
	}
	g.reevaluate(ctx)
}

// Recheck asks the backend whether the session is still valid and reloads
// the maintenance and lockout flags. An invalid session forces a logout.
func (g *Gate) Recheck(ctx context.Context) {
	g.reloadStatus(ctx)

	g.mu.Lock()
	signedIn := g.creds != nil
	g.mu.Unlock()

	if signedIn && g.collab.CheckSession != nil {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		valid, err := g.collab.CheckSession(callCtx)
		cancel()
		switch {
		case err != nil:
			g.logger.Warn("session check failed", zap.Error(err))
			g.mu.Lock()
			g.verifyErr = err
			g.mu.Unlock()
		case !valid:
			if err := g.endSession(ctx, "session rejected by backend"); err != nil {
				g.logger.Error("forced logout failed", zap.Error(err))
			}
			return
		default:
			g.mu.Lock()
			g.verifyErr = nil
			g.mu.Unlock()
		}
	}
	g.reevaluate(ctx)
}

func (g *Gate) onAssessment(a domain.Assessment) {
	ctx := context.Background()
	g.mu.Lock()
	signedIn := g.creds != nil
	g.mu.Unlock()

	if signedIn && a.HasCritical() {
		g.logger.Warn("critical threat while signed in, forcing logout", zap.Int("score", a.Score))
		if err := g.endSession(ctx, "critical security threat"); err != nil {
			g.logger.Error("forced logout failed", zap.Error(err))
		}
		return
	}
	g.reevaluate(ctx)
}

// refreshTokens exchanges the refresh token and stores the new pair.
func (g *Gate) refreshTokens(ctx context.Context) error {
	g.mu.Lock()
	creds := g.creds
	g.mu.Unlock()
	if creds == nil || creds.RefreshToken == "" || g.collab.RefreshToken == nil {
		return domain.ErrRefreshFailed
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	pair, err := g.collab.RefreshToken(callCtx, creds.RefreshToken)
	if err != nil {
		return err
	}
	updated, err := g.auth.ApplyRefresh(ctx, pair)
	if err != nil {
		return err
	}
	g.setCredentials(updated)
	return nil
}

// endSession calls the logout collaborator, clears stored credentials and
// stops the session monitor. Collaborator failures are logged, never fatal.
func (g *Gate) endSession(ctx context.Context, reason string) error {
	if g.collab.Logout != nil {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		if err := g.collab.Logout(callCtx); err != nil {
			g.logger.Warn("backend logout failed", zap.Error(err))
		}
		cancel()
	}
	clearErr := g.auth.Clear(ctx)
	g.session.Stop()

	g.mu.Lock()
	g.creds = nil
	g.lockedUntil = time.Time{}
	g.verifyErr = nil
	g.failedRefresh = ""
	g.verdicts = make(map[string]bool)
	g.mu.Unlock()

	if r, ok := g.security.(Resetter); ok {
		r.Reset()
	}

	g.logger.Info("session ended", zap.String("reason", reason))
	g.reevaluate(ctx)
	return clearErr
}

func (g *Gate) setCredentials(creds *domain.Credentials) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creds = creds
	g.failedRefresh = ""
	g.verdicts = make(map[string]bool)
}

func (g *Gate) startSession(creds *domain.Credentials) {
	var expiresAt time.Time
	if !creds.LastActivity.IsZero() {
		expiresAt = creds.LastActivity.Add(g.cfg.sessionDuration())
	}
	g.session.Start(expiresAt)
}

func (g *Gate) reloadStatus(ctx context.Context) {
	if g.status == nil {
		return
	}
	maintenance, err := g.status.Maintenance(ctx)
	if err != nil {
		g.logger.Warn("failed to load maintenance flag", zap.Error(err))
	} else {
		g.mu.Lock()
		g.maintenance = maintenance
		g.mu.Unlock()
	}

	g.mu.Lock()
	userID := credentialUserID(g.creds)
	g.mu.Unlock()
	if userID == "" {
		return
	}
	until, err := g.status.LockedUntil(ctx, userID)
	if err != nil {
		g.logger.Warn("failed to load lockout", zap.String("user_id", userID), zap.Error(err))
		return
	}
	g.mu.Lock()
	g.lockedUntil = until
	g.mu.Unlock()
}

func (g *Gate) snapshot() (Facts, *domain.Credentials, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.sched.Now()
	facts := Facts{
		Now:         now,
		Maintenance: g.maintenance,
		LockedUntil: g.lockedUntil,
	}
	// A token that does not decode counts as no credential at all.
	if g.creds != nil && token.Decode(g.creds.AccessToken) != nil {
		facts.Authenticated = true
		facts.User = g.creds.User
		facts.SessionExpired = !token.IsValid(g.creds.AccessToken, now) ||
			g.session.State() == session.StateExpired
	}
	if g.security != nil {
		if a, ok := g.security.Assessment(); ok {
			facts.Assessment = &a
		}
	}
	return facts, g.creds, g.verifyErr
}

// settle turns a provisional authenticated into a final one by awaiting the
// permission check.
func (g *Gate) settle(ctx context.Context, d domain.Decision, creds *domain.Credentials, req Requirements, verifyErr error) domain.Decision {
	if d != domain.DecisionAuthenticated || creds == nil {
		return d
	}
	if verifyErr != nil {
		return domain.DecisionError
	}
	if g.collab.CheckPermissions == nil {
		return d
	}

	key := creds.AccessToken + "#" + req.Key()
	g.mu.Lock()
	verdict, cached := g.verdicts[key]
	g.mu.Unlock()
	if !cached {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		ok, err := g.collab.CheckPermissions(callCtx, creds.User, req)
		cancel()
		if err != nil {
			g.logger.Warn("permission check failed", zap.Error(err))
			return domain.DecisionError
		}
		verdict = ok
		g.mu.Lock()
		g.verdicts[key] = ok
		g.mu.Unlock()
	}
	if !verdict {
		return domain.DecisionAccessDenied
	}
	return domain.DecisionAuthenticated
}

// reevaluate recomputes the gate's own decision and notifies on change.
// Listeners run after the evaluation lock is released so they may call back into the gate.
func (g *Gate) reevaluate(ctx context.Context) domain.Decision {
	prev, next, subs := g.decide(ctx)
	if next != prev {
		g.logger.Info("access decision changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next)))
		if g.observer != nil {
			g.observer.ObserveDecision(next)
		}
		for _, fn := range subs {
			fn(next)
		}
	}
	return next
}

func (g *Gate) decide(ctx context.Context) (prev, next domain.Decision, subs []func(domain.Decision)) {
	g.evalMu.Lock()
	defer g.evalMu.Unlock()

	facts, creds, verifyErr := g.snapshot()
	next = g.settle(ctx, Decide(facts, g.cfg.Requirements), creds, g.cfg.Requirements, verifyErr)

	g.mu.Lock()
	defer g.mu.Unlock()
	prev = g.decision
	g.decision = next
	if next != prev {
		subs = make([]func(domain.Decision), 0, len(g.subs))
		for _, fn := range g.subs {
			subs = append(subs, fn)
		}
	}
	return prev, next, subs
}

func (c Config) sessionDuration() time.Duration {
	if c.Session.SessionDuration > 0 {
		return c.Session.SessionDuration
	}
	return session.DefaultConfig().SessionDuration
}

func credentialUserID(creds *domain.Credentials) string {
	if creds == nil || creds.User == nil {
		return ""
	}
	return creds.User.ID
}
