package game

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReplayFrame is everything that went into one tick and the checksum of the
// state it produced.
type ReplayFrame struct {
	Tick     int64
	At       time.Time
	Joined   []string
	Left     []string
	Messages []Message
	Checksum string
}

// Replay is the input log of a match.
type Replay struct {
	MatchID string
	Seed    uint64
	Frames  []ReplayFrame
	mu      sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(matchID string, seed uint64) *Replay {
	return &Replay{MatchID: matchID, Seed: seed}
}

// Record appends a frame.
func (r *Replay) Record(f ReplayFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, f)
}

// Size returns the number of recorded frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Frames)
}

// FirstDivergence returns the first tick at which r and other disagree.
func (r *Replay) FirstDivergence(other *Replay) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for i := 0; i < len(r.Frames) && i < len(other.Frames); i++ {
		if r.Frames[i].Checksum != other.Frames[i].Checksum {
			return r.Frames[i].Tick, true
		}
	}
	if len(r.Frames) != len(other.Frames) {
		n := min(len(r.Frames), len(other.Frames))
		return int64(n + 1), true
	}
	return 0, false
}

// Rerun plays the recorded inputs through e on a fresh state and records the
// result.
func Rerun(ctx context.Context, e *Engine, r *Replay) (*Replay, *State) {
	r.mu.RLock()
	frames := append([]ReplayFrame(nil), r.Frames...)
	r.mu.RUnlock()

	st := e.NewState(r.MatchID, r.Seed)
	out := NewReplay(r.MatchID, r.Seed)
	for _, f := range frames {
		for _, id := range f.Joined {
			_ = e.Join(ctx, st, id, f.At)
		}
		for _, id := range f.Left {
			e.Leave(st, id)
		}
		e.Tick(ctx, st, f.Messages, f.At)
		out.Record(ReplayFrame{
			Tick: st.Tick, At: f.At, Joined: f.Joined, Left: f.Left,
			Messages: f.Messages, Checksum: Checksum(st),
		})
	}
	return out, st
}

type replayHeader struct {
	MatchID    string
	Seed       uint64
	SavedAt    time.Time
	Version    int
	FrameCount int
}

const replayVersion = 1

func replayPath(directory, matchID string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.replay", matchID))
}

// SaveToFile writes the replay gzip-compressed to directory.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(replayPath(directory, r.MatchID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		MatchID:    r.MatchID,
		Seed:       r.Seed,
		SavedAt:    time.Now(),
		Version:    replayVersion,
		FrameCount: len(r.Frames),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i := range r.Frames {
		if err := enc.Encode(&r.Frames[i]); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, matchID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}
	r := NewReplay(header.MatchID, header.Seed)
	for i := 0; i < header.FrameCount; i++ {
		var f ReplayFrame
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		r.Frames = append(r.Frames, f)
	}
	return r, nil
}

// ReplayRecorder keeps the replays of running matches and writes them out
// when the matches finish. An empty save directory keeps replays in memory
// only.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// Start begins recording a match.
func (rr *ReplayRecorder) Start(matchID string, seed uint64) *Replay {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r := NewReplay(matchID, seed)
	rr.replays[matchID] = r
	if rr.logger != nil {
		rr.logger.Debug("started replay recording", zap.String("match_id", matchID))
	}
	return r
}

// Record appends a frame to a match being recorded.
func (rr *ReplayRecorder) Record(matchID string, f ReplayFrame) {
	rr.mu.RLock()
	r := rr.replays[matchID]
	rr.mu.RUnlock()
	if r != nil {
		r.Record(f)
	}
}

// Get returns the replay of a match.
func (rr *ReplayRecorder) Get(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, ok := rr.replays[matchID]
	return r, ok
}

// Finish stops recording a match and saves it when a directory is set.
func (rr *ReplayRecorder) Finish(matchID string) error {
	rr.mu.Lock()
	r, ok := rr.replays[matchID]
	delete(rr.replays, matchID)
	rr.mu.Unlock()

	if !ok || rr.saveDir == "" {
		return nil
	}
	if err := r.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("match_id", matchID),
			zap.Int("frames", r.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}
