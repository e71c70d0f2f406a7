package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

const (
	// defaultFlushEvery is how many appended checkpoints accumulate
	// before the session document is rewritten.
	defaultFlushEvery = 5
	// defaultResumeWindow is how far back a session may reach and
	// still be adopted by a new run.
	defaultResumeWindow = 7 * 24 * time.Hour
	// defaultRetention is how long finished or abandoned sessions
	// stay on disk before the lazy purge removes them.
	defaultRetention = 30 * 24 * time.Hour

	sessionFileExt = ".json"
)

// Store owns a sessions directory: one JSON document per session, a
// cross-process writer lock, and the resume bookkeeping. A Store writes
// at most one active session at a time; all mutating methods are safe
// for concurrent use by parallel workers.
type Store struct {
	dir          string
	flushEvery   int
	resumeWindow time.Duration
	retention    time.Duration
	finals       map[plan.Kind]stage.Name
	log          *slog.Logger

	mu        sync.RWMutex
	lock      *FileLock
	sess      *Session
	path      string
	pending   int
	byTarget  map[string][]int
	completed map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithFlushEvery overrides the append count between flushes.
func WithFlushEvery(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.flushEvery = n
		}
	}
}

// WithResumeWindow overrides how old a session may be and still resume.
func WithResumeWindow(d time.Duration) Option {
	return func(s *Store) {
		s.resumeWindow = d
	}
}

// WithResumeDisabled makes Start always create a fresh session.
func WithResumeDisabled() Option {
	return func(s *Store) {
		s.resumeWindow = 0
	}
}

// WithRetention overrides how long session files are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		s.retention = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore opens a sessions directory, creating it if needed. finals
// maps each target kind to the last enabled stage of its sequence;
// a target is considered complete once that stage has a checkpoint.
// Expired session files are purged lazily here, never during a run.
func NewStore(dir string, finals map[plan.Kind]stage.Name, opts ...Option) (*Store, error) {
	s := &Store{
		dir:          dir,
		flushEvery:   defaultFlushEvery,
		resumeWindow: defaultResumeWindow,
		retention:    defaultRetention,
		finals:       finals,
		log:          slog.Default(),
		lock:         NewFileLock(dir),
		byTarget:     make(map[string][]int),
		completed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, azerrors.New(azerrors.ErrCodeSessionIO,
			fmt.Sprintf("cannot create sessions directory %s", dir), err)
	}

	s.purgeExpired()
	return s, nil
}

// Start begins a session for the given operation. When a resumable
// session exists (same operation type, same input hash, inside the
// resume window, not yet complete), it is adopted and resumed=true.
// Otherwise a fresh session is created.
func (s *Store) Start(operationType string, totalTargets int, inputHash string) (resumed bool, err error) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		return false, azerrors.SessionError("cannot acquire session lock", err)
	}
	if !acquired {
		return false, azerrors.New(azerrors.ErrCodeSessionLocked,
			"another azmig process is writing to this sessions directory", nil).
			WithDetail("lock", s.lock.Path()).
			WithSuggestion("wait for the other run to finish, or point --sessions-dir elsewhere")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior := s.findResumable(operationType, inputHash); prior != nil {
		s.adopt(prior)
		s.sess.LastUpdated = time.Now().UTC()
		if err := s.flushLocked(); err != nil {
			return false, err
		}
		s.log.Info("resuming checkpoint session",
			"session_id", s.sess.SessionID,
			"completed", s.sess.CompletedCount,
			"total", s.sess.TotalTargets)
		return true, nil
	}

	now := time.Now().UTC()
	s.sess = &Session{
		SessionID:      uuid.NewString(),
		OperationType:  operationType,
		StartedAt:      now,
		LastUpdated:    now,
		TotalTargets:   totalTargets,
		ConfigFileHash: inputHash,
	}
	s.path = filepath.Join(s.dir, s.sess.SessionID+sessionFileExt)
	s.byTarget = make(map[string][]int)
	s.completed = make(map[string]bool)
	if err := s.flushLocked(); err != nil {
		return false, err
	}

	s.log.Info("created checkpoint session",
		"session_id", s.sess.SessionID,
		"operation", operationType,
		"targets", totalTargets)
	return false, nil
}

// Append records one stage outcome. The session document is rewritten
// after every flushEvery appends; Finalize flushes the remainder.
func (s *Store) Append(targetName string, res stage.CheckResult, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return azerrors.InternalError("checkpoint append before session start", nil)
	}

	cp := Checkpoint{
		TargetName:           targetName,
		Stage:                string(res.Stage),
		Status:               string(res.Status),
		Timestamp:            time.Now().UTC(),
		ResultData:           encodeResult(res),
		ExecutionTimeSeconds: elapsed.Seconds(),
	}
	s.sess.Checkpoints = append(s.sess.Checkpoints, cp)
	s.byTarget[targetName] = append(s.byTarget[targetName], len(s.sess.Checkpoints)-1)
	s.sess.LastUpdated = cp.Timestamp

	s.pending++
	if s.pending >= s.flushEvery {
		return s.flushLocked()
	}
	return nil
}

// CompleteTarget marks a target finished: advisory issues are attached
// to its final checkpoint and the session counters are updated.
func (s *Store) CompleteTarget(targetName string, aggregate stage.Status, issues []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return azerrors.InternalError("target completion before session start", nil)
	}
	if s.completed[targetName] {
		return nil
	}

	if idxs := s.byTarget[targetName]; len(idxs) > 0 && len(issues) > 0 {
		last := idxs[len(idxs)-1]
		if s.sess.Checkpoints[last].ResultData == nil {
			s.sess.Checkpoints[last].ResultData = make(map[string]any)
		}
		s.sess.Checkpoints[last].ResultData["advisories"] = issues
	}

	s.completed[targetName] = true
	s.sess.CompletedCount++
	switch aggregate {
	case stage.StatusFailed:
		s.sess.FailedCount++
	case stage.StatusSkipped:
		s.sess.SkippedCount++
	}
	s.sess.LastUpdated = time.Now().UTC()

	s.pending++
	if s.pending >= s.flushEvery {
		return s.flushLocked()
	}
	return nil
}

// IsTargetCompleted reports whether the session already holds a full
// result for the target, either from this run or from the resumed one.
func (s *Store) IsTargetCompleted(targetName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[targetName]
}

// TargetResult rebuilds a target's outcome from its checkpoints.
func (s *Store) TargetResult(targetName string) (stage.TargetOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byTarget[targetName]
	if len(idxs) == 0 {
		return stage.TargetOutcome{}, azerrors.New(azerrors.ErrCodeUnknownTarget,
			fmt.Sprintf("no checkpoints recorded for target %q", targetName), nil)
	}

	var (
		results    []stage.CheckResult
		advisories []string
		kind       plan.Kind
	)
	for _, idx := range idxs {
		cp := s.sess.Checkpoints[idx]
		res, adv, err := decodeResult(cp.ResultData)
		if err != nil {
			return stage.TargetOutcome{}, azerrors.New(azerrors.ErrCodeSessionCorrupt,
				fmt.Sprintf("checkpoint for %s/%s is malformed", targetName, cp.Stage), err)
		}
		if res.Stage == "" {
			res.Stage = stage.Name(cp.Stage)
		}
		if res.Status == "" {
			res.Status = stage.Status(cp.Status)
		}
		if k, ok := stage.KindOf(res.Stage); ok {
			kind = k
		}
		results = append(results, res)
		if len(adv) > 0 {
			advisories = adv
		}
	}

	return stage.TargetOutcome{
		TargetName: targetName,
		Kind:       kind,
		Status:     stage.Aggregate(results),
		Results:    results,
		Issues:     advisories,
		Resumed:    true,
	}, nil
}

// Progress returns completed and total target counts for the active
// session. Safe to call from display code while workers append.
func (s *Store) Progress() (completed, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return 0, 0
	}
	return s.sess.CompletedCount, s.sess.TotalTargets
}

// SessionID returns the active session's ID, or empty before Start.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.SessionID
}

// Finalize flushes any buffered checkpoints and logs the session state.
// The session stays on disk: incomplete sessions are resume candidates,
// complete ones age out via retention.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return nil
	}
	s.sess.LastUpdated = time.Now().UTC()
	if err := s.flushLocked(); err != nil {
		return err
	}
	s.log.Info("checkpoint session finalized",
		"session_id", s.sess.SessionID,
		"completed", s.sess.CompletedCount,
		"failed", s.sess.FailedCount,
		"total", s.sess.TotalTargets)
	return nil
}

// Close releases the writer lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// flushLocked atomically rewrites the session document. Callers hold mu.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.sess, "", "  ")
	if err != nil {
		return azerrors.InternalError("cannot marshal session", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return azerrors.SessionError("cannot write session file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return azerrors.SessionError("cannot replace session file", err)
	}

	s.pending = 0
	return nil
}

// findResumable scans the sessions directory for the newest session
// matching the operation type and input hash that is still inside the
// resume window and not yet complete. Corrupt files are skipped with a
// warning; a fresh session will be created instead.
func (s *Store) findResumable(operationType, inputHash string) *loadedSession {
	if s.resumeWindow <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("cannot scan sessions directory", "dir", s.dir, "error", err)
		return nil
	}

	var candidates []*loadedSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionFileExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		ls, err := s.loadSessionFile(path)
		if err != nil {
			s.log.Warn("ignoring unreadable session file", "path", path, "error", err)
			continue
		}
		if ls.sess.OperationType != operationType {
			continue
		}
		if ls.sess.ConfigFileHash != inputHash {
			continue
		}
		if time.Since(ls.sess.StartedAt) > s.resumeWindow {
			continue
		}
		if len(ls.completed) >= ls.sess.TotalTargets {
			continue
		}
		candidates = append(candidates, ls)
	}

	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].sess.StartedAt.After(candidates[j].sess.StartedAt)
	})
	return candidates[0]
}

// loadedSession pairs a parsed session with state derived from its
// checkpoints: which targets hold a checkpoint for the final stage of
// their kind, and where each target's checkpoints sit in the document.
type loadedSession struct {
	sess      *Session
	path      string
	byTarget  map[string][]int
	completed map[string]bool
}

// loadSessionFile parses one session document and derives completion
// state from the recorded checkpoints rather than trusting counters,
// so documents cut off mid-write still resume correctly.
func (s *Store) loadSessionFile(path string) (*loadedSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session document: %w", err)
	}
	if sess.SessionID == "" {
		return nil, fmt.Errorf("session document missing session_id")
	}

	ls := &loadedSession{
		sess:      &sess,
		path:      path,
		byTarget:  make(map[string][]int),
		completed: make(map[string]bool),
	}
	for i, cp := range sess.Checkpoints {
		ls.byTarget[cp.TargetName] = append(ls.byTarget[cp.TargetName], i)
	}
	for name, idxs := range ls.byTarget {
		if s.hasFinalStage(sess.Checkpoints, idxs) {
			ls.completed[name] = true
		}
	}
	return ls, nil
}

// hasFinalStage reports whether the target's checkpoints include the
// final enabled stage of its kind.
func (s *Store) hasFinalStage(checkpoints []Checkpoint, idxs []int) bool {
	for _, idx := range idxs {
		name := stage.Name(checkpoints[idx].Stage)
		kind, ok := stage.KindOf(name)
		if !ok {
			continue
		}
		if final, ok := s.finals[kind]; ok && name == final {
			return true
		}
	}
	return false
}

// adopt installs a loaded session as the active one, recomputing the
// session counters from derived completion state.
func (s *Store) adopt(ls *loadedSession) {
	s.sess = ls.sess
	s.path = ls.path
	s.byTarget = ls.byTarget
	s.completed = ls.completed

	s.sess.CompletedCount = len(ls.completed)
	s.sess.FailedCount = 0
	s.sess.SkippedCount = 0
	for name := range ls.completed {
		agg := s.aggregateFor(name)
		switch agg {
		case stage.StatusFailed:
			s.sess.FailedCount++
		case stage.StatusSkipped:
			s.sess.SkippedCount++
		}
	}
}

// aggregateFor folds a target's recorded statuses. Callers hold mu.
func (s *Store) aggregateFor(targetName string) stage.Status {
	var results []stage.CheckResult
	for _, idx := range s.byTarget[targetName] {
		results = append(results, stage.CheckResult{
			Stage:  stage.Name(s.sess.Checkpoints[idx].Stage),
			Status: stage.Status(s.sess.Checkpoints[idx].Status),
		})
	}
	return stage.Aggregate(results)
}

// SessionInfo summarizes one session file for listings.
type SessionInfo struct {
	SessionID     string
	OperationType string
	StartedAt     time.Time
	LastUpdated   time.Time
	Completed     int
	Total         int
	Failed        int
	Path          string
	Corrupt       bool
}

// ListSessions returns summaries for every session file in the
// directory, newest first. Corrupt files are included and flagged so
// listings can show them instead of hiding them.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, azerrors.SessionError("cannot read sessions directory", err)
	}

	var infos []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionFileExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		ls, err := s.loadSessionFile(path)
		if err != nil {
			infos = append(infos, SessionInfo{
				SessionID: strings.TrimSuffix(entry.Name(), sessionFileExt),
				Path:      path,
				Corrupt:   true,
			})
			continue
		}
		infos = append(infos, SessionInfo{
			SessionID:     ls.sess.SessionID,
			OperationType: ls.sess.OperationType,
			StartedAt:     ls.sess.StartedAt,
			LastUpdated:   ls.sess.LastUpdated,
			Completed:     len(ls.completed),
			Total:         ls.sess.TotalTargets,
			Failed:        ls.sess.FailedCount,
			Path:          path,
			Corrupt:       false,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.After(infos[j].StartedAt)
	})
	return infos, nil
}

// Purge deletes session files older than the given age, skipping the
// active session. Returns how many files were removed.
func (s *Store) Purge(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	activePath := s.path
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, azerrors.SessionError("cannot read sessions directory", err)
	}

	removed := 0
	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionFileExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if path == activePath {
			continue
		}

		started, ok := s.sessionAge(path, entry)
		if !ok || started.After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn("cannot remove expired session", "path", path, "error", err)
			continue
		}
		removed++
		s.log.Info("purged expired session", "path", path, "started_at", started)
	}
	return removed, nil
}

// sessionAge determines when a session file's run started, falling back
// to the file's modification time when the document cannot be parsed.
func (s *Store) sessionAge(path string, entry os.DirEntry) (time.Time, bool) {
	if ls, err := s.loadSessionFile(path); err == nil {
		return ls.sess.StartedAt, true
	}
	info, err := entry.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// purgeExpired applies the retention window at store open time.
func (s *Store) purgeExpired() {
	if s.retention <= 0 {
		return
	}
	if _, err := s.Purge(s.retention); err != nil {
		s.log.Warn("session retention purge failed", "error", err)
	}
}
