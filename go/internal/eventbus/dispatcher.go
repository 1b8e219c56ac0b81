package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
)

type Config struct {
	QueueSize      int           `yaml:"queue_size"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func DefaultConfig() Config {
	return Config{
		QueueSize:      1024,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher queues domain events in memory and hands them to every
// publisher from a single goroutine, preserving record order.
type Dispatcher struct {
	publishers []Publisher
	config     Config
	queue      chan *events.Event

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	lastEvent atomic.Int64 // unix nanos of the last dispatched event
}

// Stats is a point-in-time view of the dispatcher counters.
type Stats struct {
	Running       bool      `json:"running"`
	Queued        int       `json:"queued"`
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	Dropped       uint64    `json:"dropped"`
	LastEventTime time.Time `json:"last_event_time,omitempty"`
}

func NewDispatcher(cfg Config, publishers ...Publisher) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Dispatcher{
		publishers: publishers,
		config:     cfg,
		queue:      make(chan *events.Event, cfg.QueueSize),
		stopChan:   make(chan struct{}),
	}
}

// Record enqueues an event without blocking. Events are dropped when the
// queue is full.
func (d *Dispatcher) Record(event *events.Event) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Str("room_code", event.RoomCode).
			Msg("event bus queue full, dropping event")
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("event dispatcher already running")
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Info().
		Int("publishers", len(d.publishers)).
		Int("queue_size", d.config.QueueSize).
		Msg("event dispatcher started")
	return nil
}

// Stop flushes queued events and waits for the dispatcher to exit.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("event dispatcher not running")
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()

	log.Info().Msg("event dispatcher stopped")
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			d.drain()
			return
		case event := <-d.queue:
			d.dispatch(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.dispatch(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event *events.Event) {
	d.lastEvent.Store(time.Now().UnixNano())
	for _, p := range d.publishers {
		if err := d.publishWithRetry(ctx, p, event); err != nil {
			d.failed.Add(1)
			log.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Str("room_code", event.RoomCode).
				Msg("failed to publish event")
		}
	}
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, p Publisher, event *events.Event) error {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		pctx, cancel := d.publishContext(ctx)
		err := p.Publish(pctx, event)
		cancel()
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		d.published.Add(1)
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (d *Dispatcher) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.PublishTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.config.PublishTimeout)
}

// Stats reports publish counters. Published and Failed count deliveries per
// publisher, so one event sent to two publishers counts twice.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	st := Stats{
		Running:   running,
		Queued:    len(d.queue),
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
	if ns := d.lastEvent.Load(); ns != 0 {
		st.LastEventTime = time.Unix(0, ns)
	}
	return st
}
