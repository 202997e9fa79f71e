// Package supervisor runs one Telegram bot per active restaurant instance
// and keeps the worker table consistent with the instance registry.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/telegram"
	tele "gopkg.in/telebot.v4"
)

const updateBuffer = 64

// InstanceLister loads the instances to supervise at boot.
type InstanceLister interface {
	ListActive(ctx context.Context) ([]store.BotInstance, error)
}

// Decryptor recovers a plaintext bot token from its stored form.
type Decryptor interface {
	Decrypt(stored string) (string, error)
}

// RestartPolicy bounds how a crashed worker is brought back.
type RestartPolicy struct {
	MaxRestarts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the backoff before restart attempt n (0-based), doubling
// from BaseDelay and capped at MaxDelay.
func (p RestartPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 0; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Options wires a Supervisor.
type Options struct {
	Instances InstanceLister
	Vault     Decryptor
	Policy    RestartPolicy

	// Wire mounts the restaurant bot's handlers on a freshly built bot.
	Wire func(bot *tele.Bot, inst store.BotInstance)

	// APIBaseURL overrides the provider endpoint (tests, local emulators).
	APIBaseURL string

	Metrics *metrics.Metrics

	// NewBot overrides bot construction in tests.
	NewBot func(token string, poller tele.Poller) (*tele.Bot, error)
}

type worker struct {
	instanceID   string
	restaurantID string
	token        string
	poller       *feedPoller

	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the worker table. Each worker runs one bot whose updates
// arrive through Dispatch; a worker failure never touches its siblings.
type Supervisor struct {
	opts Options

	mu      sync.RWMutex
	workers map[string]*worker
	wg      sync.WaitGroup
}

func New(opts Options) *Supervisor {
	if opts.NewBot == nil {
		base := opts.APIBaseURL
		opts.NewBot = func(token string, poller tele.Poller) (*tele.Bot, error) {
			return tele.NewBot(tele.Settings{
				Token:  token,
				URL:    base,
				Poller: poller,
				Client: telegram.BuildHTTPClient(),
			})
		}
	}
	return &Supervisor{
		opts:    opts,
		workers: make(map[string]*worker),
	}
}

// Start boots a worker for every active instance. One instance failing to
// start is logged and skipped; the rest keep coming up.
func (s *Supervisor) Start(ctx context.Context) error {
	instances, err := s.opts.Instances.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active instances: %w", err)
	}
	started := 0
	for _, inst := range instances {
		if err := s.StartWorker(ctx, inst); err != nil {
			logger.SUP.Error("worker start failed",
				slog.String("event", "sup.start"),
				slog.String("instance_id", inst.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		started++
	}
	logger.SUP.Info("supervisor started",
		slog.String("event", "sup.start"),
		slog.Int("workers", started),
		slog.Int("instances", len(instances)),
	)
	return nil
}

// StartWorker decrypts the instance credential and brings its bot up.
func (s *Supervisor) StartWorker(ctx context.Context, inst store.BotInstance) error {
	token, err := s.opts.Vault.Decrypt(inst.EncryptedToken)
	if err != nil {
		return fmt.Errorf("decrypt credential for instance %s: %w", inst.ID, err)
	}

	s.mu.Lock()
	if _, exists := s.workers[inst.ID]; exists {
		s.mu.Unlock()
		return domain.Conflictf("worker for instance %s already running", inst.ID)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		instanceID:   inst.ID,
		restaurantID: inst.RestaurantID,
		token:        token,
		poller:       newFeedPoller(updateBuffer),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	s.workers[inst.ID] = w
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.BotWorkers.Inc()
	}

	s.wg.Add(1)
	go s.runWorker(wctx, w, inst)
	return nil
}

// StopWorker shuts one worker down and waits for its loop to exit.
func (s *Supervisor) StopWorker(instanceID string) error {
	s.mu.Lock()
	w, ok := s.workers[instanceID]
	if ok {
		delete(s.workers, instanceID)
	}
	s.mu.Unlock()
	if !ok {
		return domain.NotFoundf("worker for instance %s", instanceID)
	}
	w.cancel()
	<-w.done
	return nil
}

// Shutdown stops every worker and waits for all loops to exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	for id, w := range s.workers {
		delete(s.workers, id)
		w.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	logger.SUP.Info("supervisor stopped", slog.String("event", "sup.stop"))
}

// Dispatch routes a decoded provider update to its instance's worker.
func (s *Supervisor) Dispatch(instanceID string, upd tele.Update) error {
	s.mu.RLock()
	w, ok := s.workers[instanceID]
	s.mu.RUnlock()
	if !ok {
		return domain.NotFoundf("no running worker for instance %s", instanceID)
	}
	select {
	case w.poller.updates <- upd:
		return nil
	default:
		return fmt.Errorf("worker %s update queue full: %w", instanceID, domain.ErrInvalidState)
	}
}

// Running reports whether the instance currently has a live worker.
func (s *Supervisor) Running(instanceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.workers[instanceID]
	return ok
}

// WorkerCount returns the size of the worker table.
func (s *Supervisor) WorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// runWorker keeps one bot alive until its context is cancelled, restarting
// per policy when the loop exits unexpectedly. Exhausting the restart budget
// removes the worker from the table; other workers are unaffected.
func (s *Supervisor) runWorker(ctx context.Context, w *worker, inst store.BotInstance) {
	defer s.wg.Done()
	defer close(w.done)
	defer func() {
		if s.opts.Metrics != nil {
			s.opts.Metrics.BotWorkers.Dec()
		}
		s.mu.Lock()
		if cur, ok := s.workers[w.instanceID]; ok && cur == w {
			delete(s.workers, w.instanceID)
		}
		s.mu.Unlock()
	}()

	log := logger.SUP.With(
		slog.String("instance_id", w.instanceID),
		slog.String("restaurant_id", w.restaurantID),
		slog.String("token", logger.TokenPrefix(w.token)),
	)

	restarts := 0
	for {
		err := s.runBotOnce(ctx, w, inst)
		if ctx.Err() != nil {
			log.Info("worker stopped", slog.String("event", "sup.worker"))
			return
		}

		if restarts >= s.opts.Policy.MaxRestarts {
			log.Error("worker gave up, restart budget exhausted",
				slog.String("event", "sup.worker"),
				slog.Int("restarts", restarts),
				slog.String("err", errString(err)),
			)
			return
		}

		delay := s.opts.Policy.Delay(restarts)
		restarts++
		if s.opts.Metrics != nil {
			s.opts.Metrics.BotRestarts.WithLabelValues(w.instanceID).Inc()
		}
		log.Warn("worker crashed, restarting",
			slog.String("event", "sup.worker"),
			slog.Int("attempt", restarts),
			slog.Duration("backoff", logger.RoundMS(delay)),
			slog.String("err", errString(err)),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runBotOnce builds the bot and blocks until its loop exits or the context
// is cancelled. A nil return means a clean stop.
func (s *Supervisor) runBotOnce(ctx context.Context, w *worker, inst store.BotInstance) error {
	bot, err := s.opts.NewBot(w.token, w.poller)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}
	if s.opts.Wire != nil {
		s.opts.Wire(bot, inst)
	}

	loopDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				loopDone <- fmt.Errorf("bot loop panic: %v", r)
			}
		}()
		bot.Start()
		loopDone <- nil
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-loopDone
		return nil
	case err := <-loopDone:
		if err == nil {
			err = errors.New("bot loop exited unexpectedly")
		}
		return err
	}
}

func errString(err error) string {
	if err == nil {
		return "loop exited"
	}
	return err.Error()
}
