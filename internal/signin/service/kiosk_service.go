package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/BikerAndy/site-signin/internal/observability"
	"github.com/BikerAndy/site-signin/internal/signin/ids"
	"github.com/BikerAndy/site-signin/internal/signin/ledger"
	"github.com/BikerAndy/site-signin/internal/signin/policy"
	"github.com/BikerAndy/site-signin/internal/signin/store"
	"github.com/BikerAndy/site-signin/internal/signin/types"
)

var (
	ErrUnknownWorker = errors.New("worker not found")
	ErrAdminPIN      = errors.New("admin pin does not match")
)

// Outcome is the result of a sign-in or sign-out attempt. Event is nil when
// the attempt was rejected.
type Outcome struct {
	Result policy.Result
	Worker types.WorkerProfile
	Event  *types.VisitEvent
	OnSite int
}

type Options struct {
	// NewID defaults to ids.NewID.
	NewID func() string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// KioskService owns the kiosk state: settings, worker directory and visit
// ledger. Every mutation is validated, applied in memory and then persisted
// before the call returns. Persistence failures are logged, never returned;
// the in-memory state stays authoritative for the life of the process.
//
// A key whose Load failed with a store error is never written again until a
// later Load reads it, so the blob it still holds cannot be overwritten by
// the empty state that replaced it in memory.
type KioskService struct {
	mu     sync.Mutex
	kv     store.KVStore
	logger *log.Logger
	newID  func() string
	clock  func() time.Time

	settings  policy.Settings
	directory *ledger.Directory
	ledger    *ledger.Ledger

	// unreadable holds keys whose last Load returned a store error.
	unreadable map[string]bool
}

func NewKioskService(kv store.KVStore, logger *log.Logger, opt Options) *KioskService {
	if opt.NewID == nil {
		opt.NewID = ids.NewID
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	return &KioskService{
		kv:        kv,
		logger:    logger,
		newID:     opt.NewID,
		clock:     opt.Clock,
		settings:   policy.Defaults(),
		directory:  ledger.NewDirectory(nil),
		ledger:     ledger.NewLedger(nil, opt.NewID),
		unreadable: make(map[string]bool),
	}
}

// Load replaces the in-memory state with the persisted blobs. Missing or
// unreadable blobs fall back to defaults; see loadBlob. Load may be called
// again to retry keys a previous Load could not read.
func (s *KioskService) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.unreadable)

	workers := loadBlob[[]types.WorkerProfile](ctx, s, store.KeyWorkers)
	visits := loadBlob[[]types.VisitEvent](ctx, s, store.KeyVisits)
	patch := loadBlob[policy.Patch](ctx, s, store.KeySettings)

	s.directory = ledger.NewDirectory(workers)
	s.ledger = ledger.NewLedger(visits, s.newID)
	s.settings = policy.Merge(policy.Defaults(), patch)

	observability.OnSite.Set(float64(len(s.ledger.Roster(nil))))
	s.logger.Printf("state loaded: site=%q workers=%d visits=%d",
		s.settings.SiteName, s.directory.Len(), s.ledger.Len())
}

// loadBlob decodes key into a T. It returns the zero T when the key is
// missing, unreadable or unparsable. An unreadable key is marked so that
// persistLocked skips it. An unparsable blob is copied to
// "<key>.corrupt.<timestamp>" first, so the next save cannot destroy it.
func loadBlob[T any](ctx context.Context, s *KioskService, key string) T {
	var zero T

	raw, ok, err := s.kv.Load(ctx, key)
	if err != nil {
		observability.PersistErrors.WithLabelValues(key, "load").Inc()
		s.logger.Printf("load %s: %v (using defaults, writes to %s held until it loads)", key, err, key)
		s.unreadable[key] = true
		return zero
	}
	if !ok {
		return zero
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		observability.PersistErrors.WithLabelValues(key, "decode").Inc()
		backup := key + ".corrupt." + ids.Format(s.clock())
		s.logger.Printf("decode %s: %v (using defaults, raw blob kept as %s)", key, err, backup)
		if err := s.kv.Save(ctx, backup, raw); err != nil {
			s.logger.Printf("save %s: %v", backup, err)
		}
		return zero
	}
	return v
}

func (s *KioskService) SignIn(ctx context.Context, req types.SignInRequest) (Outcome, error) {
	return s.record(ctx, types.DirectionIn, req)
}

func (s *KioskService) SignOut(ctx context.Context, req types.SignInRequest) (Outcome, error) {
	return s.record(ctx, types.DirectionOut, req)
}

func (s *KioskService) record(ctx context.Context, dir types.Direction, req types.SignInRequest) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker := trimProfile(req.Worker)
	if worker.ID != "" {
		if _, ok := s.directory.Find(worker.ID); !ok {
			return Outcome{}, ErrUnknownWorker
		}
	}

	res := policy.Validate(s.settings, dir, worker, req.Declarations)
	if !res.OK {
		observability.SignInRejected.WithLabelValues(string(dir), string(res.Reason)).Inc()
		return Outcome{Result: res, Worker: worker, OnSite: s.onSiteLocked()}, nil
	}

	if worker.ID == "" {
		worker.ID = s.newID()
	}

	ev := types.VisitEvent{
		WorkerID:  worker.ID,
		Direction: dir,
		Timestamp: ids.Format(s.clock()),
	}
	if dir == types.DirectionIn {
		ev.PPEWorn = policy.NormalizePPE(req.Declarations.PPEWorn)
		ev.InductionConfirmed = req.Declarations.InductionConfirmed
		ev.RAMSConfirmed = req.Declarations.RAMSConfirmed
		ev.Notes = strings.TrimSpace(req.Declarations.Notes)
	}

	s.directory.Upsert(worker)
	stored := s.ledger.Append(ev)
	s.persistLocked(ctx, store.KeyWorkers, store.KeyVisits)

	onSite := s.onSiteLocked()
	observability.VisitsRecorded.WithLabelValues(string(dir)).Inc()
	observability.OnSite.Set(float64(onSite))

	return Outcome{Result: res, Worker: worker, Event: &stored, OnSite: onSite}, nil
}

// Roster returns the workers currently on site.
func (s *KioskService) Roster() []types.RosterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Roster(s.directory.Lookup())
}

func (s *KioskService) OnSite(workerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.OnSite(workerID)
}

func (s *KioskService) Workers() []types.WorkerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.All()
}

func (s *KioskService) Worker(id string) (types.WorkerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.Find(id)
}

func (s *KioskService) Visits() []types.VisitEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.All()
}

// Settings returns the full settings, admin PIN included.
func (s *KioskService) Settings() policy.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return policy.Merge(s.settings, policy.Patch{})
}

// PPECatalog returns the fixed list of PPE items a worker can declare.
func (s *KioskService) PPECatalog() []policy.PPEItem {
	return policy.Catalog()
}

func (s *KioskService) CheckPIN(pin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.CheckPIN(pin)
}

// UpdateSettings applies patch when pin matches and persists the result
// before returning.
func (s *KioskService) UpdateSettings(ctx context.Context, pin string, patch policy.Patch) (policy.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.CheckPIN(pin) {
		return policy.Settings{}, ErrAdminPIN
	}

	s.settings = policy.Merge(s.settings, patch)
	s.persistLocked(ctx, store.KeySettings)
	s.logger.Printf("settings updated: site=%q induction=%t rams=%t ppe=%v",
		s.settings.SiteName, s.settings.RequireInduction, s.settings.RequireRAMS, s.settings.RequirePPE)

	return policy.Merge(s.settings, policy.Patch{}), nil
}

// ResetAll clears the worker directory and visit ledger together when pin
// matches. Settings are kept.
func (s *KioskService) ResetAll(ctx context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.CheckPIN(pin) {
		return ErrAdminPIN
	}

	workers, visits := s.directory.Len(), s.ledger.Len()
	ledger.Reset(s.directory, s.ledger)
	s.persistLocked(ctx, store.KeyWorkers, store.KeyVisits)
	observability.OnSite.Set(0)

	s.logger.Printf("reset: cleared %d workers and %d visits", workers, visits)
	return nil
}

func (s *KioskService) onSiteLocked() int {
	return len(s.ledger.Roster(nil))
}

// persistLocked writes the given keys in one SaveAll. Caller holds s.mu,
// which keeps writes to each key in mutation order. The write is detached
// from ctx cancellation: once a mutation is applied in memory it is saved
// even if the caller has gone away. Keys marked unreadable are skipped.
func (s *KioskService) persistLocked(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)

	entries := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if s.unreadable[k] {
			observability.PersistErrors.WithLabelValues(k, "held").Inc()
			s.logger.Printf("save %s skipped: stored blob was not read", k)
			continue
		}
		var v any
		switch k {
		case store.KeyWorkers:
			v = s.directory.All()
		case store.KeyVisits:
			v = s.ledger.All()
		case store.KeySettings:
			v = s.settings.AsPatch()
		}
		b, err := json.Marshal(v)
		if err != nil {
			observability.PersistErrors.WithLabelValues(k, "encode").Inc()
			s.logger.Printf("encode %s: %v", k, err)
			return
		}
		entries[k] = b
	}
	if len(entries) == 0 {
		return
	}

	if err := s.kv.SaveAll(ctx, entries); err != nil {
		for k := range entries {
			observability.PersistErrors.WithLabelValues(k, "save").Inc()
		}
		s.logger.Printf("save %v: %v", keys, err)
	}
}

func trimProfile(p types.WorkerProfile) types.WorkerProfile {
	return types.WorkerProfile{
		ID:               strings.TrimSpace(p.ID),
		Name:             strings.TrimSpace(p.Name),
		Company:          strings.TrimSpace(p.Company),
		Role:             strings.TrimSpace(p.Role),
		CSCS:             strings.TrimSpace(p.CSCS),
		Phone:            strings.TrimSpace(p.Phone),
		Email:            strings.TrimSpace(p.Email),
		EmergencyContact: strings.TrimSpace(p.EmergencyContact),
		VehicleReg:       strings.TrimSpace(p.VehicleReg),
	}
}
