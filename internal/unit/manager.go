package unit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Provisioning outcomes reported to an Observer.
const (
	OutcomeRunning = "running" // unit was already up
	OutcomeCreated = "created" // unit was created and started
	OutcomeAdopted = "adopted" // another gateway created it first
	OutcomeFailed  = "failed"
)

// Observer receives the outcome of every EnsureRunning call.
type Observer interface {
	ObserveProvision(outcome string, elapsed time.Duration)
}

// Options configures a Manager.
type Options struct {
	Image      string
	Network    string
	NamePrefix string
	DataPath   string
	User       string
	Port       int
	AutoRemove bool

	// StartupGrace is how long to wait after starting a unit before handing
	// out its address.
	StartupGrace time.Duration

	// ProvisionRate limits cold starts per second across all keys.
	// Zero disables the limit.
	ProvisionRate  float64
	ProvisionBurst int

	Logger   *slog.Logger
	Observer Observer
}

// DefaultOptions returns the options the gateway uses unless configured
// otherwise.
func DefaultOptions() Options {
	return Options{
		Image:          "partql_engine",
		Network:        "partql_network",
		NamePrefix:     "partql_engine",
		DataPath:       "/etc/data",
		User:           "root",
		Port:           8080,
		AutoRemove:     true,
		StartupGrace:   2 * time.Second,
		ProvisionBurst: 1,
	}
}

// Manager makes sure the unit of a partition key is running.
type Manager struct {
	backend Backend
	naming  Naming
	opts    Options
	limiter *rate.Limiter
	flights singleflight.Group
	logger  *slog.Logger
}

// NewManager creates a Manager provisioning on backend.
func NewManager(backend Backend, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limit := rate.Inf
	if opts.ProvisionRate > 0 {
		limit = rate.Limit(opts.ProvisionRate)
	}
	burst := opts.ProvisionBurst
	if burst < 1 {
		burst = 1
	}

	return &Manager{
		backend: backend,
		naming:  Naming{Prefix: opts.NamePrefix, Port: opts.Port},
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Unit returns the unit that owns key without provisioning it.
func (m *Manager) Unit(key string) Unit {
	return m.naming.Unit(key)
}

// EnsureRunning returns the address of the unit owning key, creating and
// starting it first if needed. Concurrent calls for the same key share one
// provisioning attempt.
//
// Cancelling ctx makes EnsureRunning return early but does not abort a
// provisioning attempt already under way.
func (m *Manager) EnsureRunning(ctx context.Context, key string) (string, error) {
	start := time.Now()
	u := m.naming.Unit(key)

	running, err := m.backend.UnitRunning(ctx, u.Name)
	if err != nil {
		m.observe(OutcomeFailed, start)
		return "", &ProvisioningError{Unit: u.Name, Op: OpLookup, Err: err}
	}
	if running {
		m.observe(OutcomeRunning, start)
		return u.Address(), nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(u.Name, func() (any, error) {
		return m.provision(detached, u)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.observe(OutcomeFailed, start)
			return "", res.Err
		}
		m.observe(res.Val.(string), start)
		return u.Address(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// provision runs the create sequence for u and returns the outcome.
func (m *Manager) provision(ctx context.Context, u Unit) (string, error) {
	logger := m.logger.With("unit", u.Name, "fingerprint", u.Fingerprint)

	if err := m.limiter.Wait(ctx); err != nil {
		return "", &ProvisioningError{Unit: u.Name, Op: OpThrottle, Err: err}
	}

	// A flight that finished just before this one started may already have
	// brought the unit up.
	running, err := m.backend.UnitRunning(ctx, u.Name)
	if err != nil {
		return "", &ProvisioningError{Unit: u.Name, Op: OpLookup, Err: err}
	}
	if running {
		return OutcomeRunning, nil
	}

	if err := m.backend.EnsureVolume(ctx, u.Volume); err != nil {
		return "", &ProvisioningError{Unit: u.Name, Op: OpVolume, Err: err}
	}

	outcome := OutcomeCreated
	id, err := m.backend.CreateUnit(ctx, Spec{
		Name:       u.Name,
		Image:      m.opts.Image,
		Network:    m.opts.Network,
		Volume:     u.Volume,
		DataPath:   m.opts.DataPath,
		User:       m.opts.User,
		Port:       u.Port,
		AutoRemove: m.opts.AutoRemove,
	})
	switch {
	case errors.Is(err, ErrUnitExists):
		logger.Debug("unit created elsewhere, starting by name")
		outcome = OutcomeAdopted
		id = u.Name
	case err != nil:
		return "", &ProvisioningError{Unit: u.Name, Op: OpCreate, Err: err}
	}

	if err := m.backend.StartUnit(ctx, id); err != nil {
		return "", &ProvisioningError{Unit: u.Name, Op: OpStart, Err: err}
	}

	if m.opts.StartupGrace > 0 {
		timer := time.NewTimer(m.opts.StartupGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", &ProvisioningError{Unit: u.Name, Op: OpWait, Err: ctx.Err()}
		}
	}

	logger.Info("unit provisioned", "outcome", outcome, "volume", u.Volume)
	return outcome, nil
}

func (m *Manager) observe(outcome string, start time.Time) {
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveProvision(outcome, time.Since(start))
	}
}

