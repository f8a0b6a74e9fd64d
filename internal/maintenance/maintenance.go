// Package maintenance stores the trading maintenance switches. Locking FULL
// halts every other state.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tradepairs/pairs-backend/internal/metrics"
	"github.com/tradepairs/pairs-backend/pkg/kv"
)

type State string

const (
	Full              State = "FULL"
	OpenMarginTrades  State = "OPEN_MARGIN_TRADES"
	AddToMarginTrades State = "ADD_TO_MARGIN_TRADES"
	CloseMarginTrades State = "CLOSE_MARGIN_TRADES"
	PerpetualTrades   State = "PERPETUAL_TRADES"
)

// HashKey is the kv hash holding one field per state.
const HashKey = "pairs:maintenance"

// Topic carries Switch updates to live subscribers.
const Topic = "maintenance"

var ErrUnknownState = errors.New("unknown maintenance state")

var states = []State{Full, OpenMarginTrades, AddToMarginTrades, CloseMarginTrades, PerpetualTrades}

// States returns every maintenance state, FULL first.
func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

// ParseState accepts a state name in any case.
func ParseState(s string) (State, error) {
	candidate := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range states {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Switch is the stored record of a single state.
type Switch struct {
	State     State     `json:"state"`
	Locked    bool      `json:"locked"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Publisher fans out switch changes.
type Publisher interface {
	Publish(ctx context.Context, topic string, data any) error
}

type Service struct {
	store     kv.Store
	publisher Publisher
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	now       func() time.Time

	// loads coalesces concurrent reads of the switch hash.
	loads singleflight.Group

	mu sync.Mutex
	// known holds the newest record seen per state. A store that lost records,
	// such as an empty fallback after a failover, is repaired from it.
	known map[State]Switch
}

// NewService creates a maintenance service. publisher and m may be nil.
func NewService(store kv.Store, publisher Publisher, logger *zap.SugaredLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		known:     make(map[State]Switch),
	}
}

// Seed writes a record for every state missing from the store. States in
// locked start locked; switches already stored keep their value.
func (s *Service) Seed(ctx context.Context, locked []State) error {
	lockedSet := make(map[State]bool, len(locked))
	for _, st := range locked {
		lockedSet[st] = true
	}

	existing, err := s.store.HGetAll(ctx, HashKey)
	if err != nil {
		return fmt.Errorf("load maintenance switches: %w", err)
	}

	for _, st := range states {
		if raw, ok := existing[string(st)]; ok {
			sw, err := decodeSwitch(st, raw)
			if err != nil {
				return err
			}
			s.remember(sw)
			continue
		}
		sw := Switch{State: st, Locked: lockedSet[st], UpdatedBy: "config", UpdatedAt: s.now().UTC()}
		if err := s.write(ctx, sw); err != nil {
			return err
		}
		s.remember(sw)
	}

	s.logger.Infow("Maintenance switches seeded", "locked", locked)
	return nil
}

// Status returns the record of every state in States order. States never
// seeded or set are reported unlocked.
func (s *Service) Status(ctx context.Context) ([]Switch, error) {
	v, err, _ := s.loads.Do(HashKey, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Switch)), nil
}

// load reads the switch hash and writes back every known switch the store is
// missing or holds an older record of.
func (s *Service) load(ctx context.Context) ([]Switch, error) {
	raw, err := s.store.HGetAll(ctx, HashKey)
	if err != nil {
		return nil, fmt.Errorf("load maintenance switches: %w", err)
	}

	out := make([]Switch, 0, len(states))
	for _, st := range states {
		sw := Switch{State: st}
		value, stored := raw[string(st)]
		if stored {
			if sw, err = decodeSwitch(st, value); err != nil {
				return nil, err
			}
		}
		out = append(out, sw)
	}

	var restore []Switch
	s.mu.Lock()
	for i, sw := range out {
		_, stored := raw[string(sw.State)]
		cur, seen := s.known[sw.State]
		switch {
		case seen && (!stored || cur.UpdatedAt.After(sw.UpdatedAt)):
			out[i] = cur
			restore = append(restore, cur)
		case stored:
			s.known[sw.State] = sw
		}
	}
	s.mu.Unlock()

	for _, sw := range restore {
		if err := s.write(ctx, sw); err != nil {
			s.logger.Warnw("Failed to restore maintenance switch", "state", sw.State, "error", err)
			continue
		}
		s.logger.Warnw("Restored maintenance switch missing from store", "state", sw.State, "locked", sw.Locked)
	}
	return out, nil
}

// CheckAll reports whether each state is effectively locked.
func (s *Service) CheckAll(ctx context.Context) (map[State]bool, error) {
	switches, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	full := switches[0].Locked
	out := make(map[State]bool, len(switches))
	for _, sw := range switches {
		out[sw.State] = full || sw.Locked
	}
	return out, nil
}

// Check reports whether state is locked, either directly or through FULL.
func (s *Service) Check(ctx context.Context, state State) (bool, error) {
	if _, err := ParseState(string(state)); err != nil {
		return false, err
	}

	all, err := s.CheckAll(ctx)
	if err != nil {
		return false, err
	}
	return all[state], nil
}

func (s *Service) remember(sw Switch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.known[sw.State]; ok && cur.UpdatedAt.After(sw.UpdatedAt) {
		return
	}
	s.known[sw.State] = sw
}

func decodeSwitch(state State, raw []byte) (Switch, error) {
	var sw Switch
	if err := json.Unmarshal(raw, &sw); err != nil {
		return Switch{}, fmt.Errorf("decode maintenance switch %s: %w", state, err)
	}
	sw.State = state
	return sw, nil
}

// Set stores a switch and publishes the change.
func (s *Service) Set(ctx context.Context, state State, locked bool, actor string) (Switch, error) {
	if _, err := ParseState(string(state)); err != nil {
		return Switch{}, err
	}

	sw := Switch{State: state, Locked: locked, UpdatedBy: actor, UpdatedAt: s.now().UTC()}
	if err := s.write(ctx, sw); err != nil {
		return Switch{}, err
	}
	s.remember(sw)

	s.metrics.RecordMaintenanceToggle(ctx, string(state), locked)
	s.logger.Infow("Maintenance switch updated", "state", state, "locked", locked, "actor", actor)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, Topic, sw); err != nil {
			s.logger.Warnw("Failed to publish maintenance update", "state", state, "error", err)
		}
	}
	return sw, nil
}

func (s *Service) write(ctx context.Context, sw Switch) error {
	value, err := json.Marshal(sw)
	if err != nil {
		return err
	}
	if err := s.store.HSet(ctx, HashKey, string(sw.State), value); err != nil {
		return fmt.Errorf("write maintenance switch %s: %w", sw.State, err)
	}
	return nil
}
