// Package session records extraction sessions: the keyframes a detector
// emitted, their artifacts, and a JSON manifest that lets later commands
// reload them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/keyframe"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/storage"
	"github.com/five82/keyframes/internal/video"
)

// ManifestName is the manifest object stored under each session prefix.
const ManifestName = "session.json"

// Keyframe is a persisted keyframe.
type Keyframe struct {
	ID            string  `json:"id"`
	SequenceIndex int     `json:"sequence_index"`
	FrameNumber   int     `json:"frame_number"`
	Timestamp     float64 `json:"timestamp"`
	Score         float64 `json:"score"`
	IsTransition  bool    `json:"is_transition"`
	SceneID       *int    `json:"scene_id,omitempty"`
	ArtifactKey   string  `json:"artifact_key"`
	ArtifactPath  string  `json:"path"`
}

// Session is one extraction run over one video.
type Session struct {
	ID                    string           `json:"session_id"`
	VideoPath             string           `json:"video_path"`
	Method                config.Method    `json:"method"`
	TransitionSensitivity float64          `json:"transition_sensitivity,omitempty"`
	Metadata              video.Metadata   `json:"video"`
	Keyframes             []Keyframe       `json:"keyframes"`
	Scenes                []keyframe.Scene `json:"scenes,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	NextSequence          int              `json:"next_sequence"`
}

// Find returns the keyframe with id.
func (s *Session) Find(id string) (Keyframe, bool) {
	for _, kf := range s.Keyframes {
		if kf.ID == id {
			return kf, true
		}
	}
	return Keyframe{}, false
}

// Store creates, mutates and reloads sessions on a storage backend. Each
// session owns the key prefix "<id>/".
type Store struct {
	backend storage.Backend
	maxLen  int
	suffix  func() string
	newID   func() string
	now     func() time.Time

	mu       sync.Mutex
	reserved map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithNameMaxLen sets the longest session id produced before truncation.
func WithNameMaxLen(n int) Option {
	return func(s *Store) {
		s.maxLen = n
	}
}

// WithSuffix replaces the random suffix source used for session ids.
func WithSuffix(fn func() string) Option {
	return func(s *Store) {
		s.suffix = fn
	}
}

// WithIDSource replaces the keyframe id generator.
func WithIDSource(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		s.now = fn
	}
}

// NewStore creates a store over backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		maxLen:  config.DefaultSessionNameMaxLen,
		suffix:  RandomSuffix,
		newID:   func() string { return uuid.NewString()[:suffixLen] },
		now:     time.Now,

		reserved: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying storage backend.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

func manifestKey(id string) string {
	return path.Join(id, ManifestName)
}

// Create starts a session for videoPath and writes its manifest. Naming and
// the first manifest write happen under the store lock, and ids handed out
// by this store are never reused, so concurrent creates with the same
// basename get distinct ids.
func (s *Store) Create(ctx context.Context, videoPath, basename string, meta video.Metadata, method config.Method) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := func(id string) bool {
		if _, ok := s.reserved[id]; ok {
			return true
		}
		ok, err := s.backend.Exists(ctx, manifestKey(id))
		if err != nil {
			logging.Warn("cannot check session id", "id", id, "error", err)
		}
		return ok
	}
	id := NameSession(basename, s.maxLen, s.suffix, taken)

	sess := &Session{
		ID:        id,
		VideoPath: videoPath,
		Method:    method,
		Metadata:  meta,
		Keyframes: []Keyframe{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveLocked(ctx, sess); err != nil {
		return nil, err
	}
	s.reserved[id] = struct{}{}
	logging.Info("session created", "session", id, "video", videoPath, "method", method)
	return sess, nil
}

// Append stores a keyframe artifact and records it in the session. The
// artifact is named "<prefix>_<seq>.jpg" where prefix follows the method.
// If the manifest cannot be rewritten the keyframe is rolled back: the
// artifact is removed and the session is left as it was.
func (s *Store) Append(ctx context.Context, sess *Session, jpeg []byte, c keyframe.Candidate) (Keyframe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := sess.NextSequence
	key := path.Join(sess.ID, fmt.Sprintf("%s_%d.jpg", sess.Method.ArtifactPrefix(), seq))
	if err := s.backend.Put(ctx, key, jpeg, "image/jpeg"); err != nil {
		return Keyframe{}, coreerrors.NewIOError(fmt.Sprintf("write artifact %s", key), err)
	}

	kf := Keyframe{
		ID:            s.newID(),
		SequenceIndex: seq,
		FrameNumber:   c.FrameNumber,
		Timestamp:     c.Timestamp,
		Score:         c.Score,
		IsTransition:  c.IsTransition,
		SceneID:       c.SceneID,
		ArtifactKey:   key,
		ArtifactPath:  s.backend.Locate(key),
	}
	sess.Keyframes = append(sess.Keyframes, kf)
	sess.NextSequence++

	if err := s.saveLocked(ctx, sess); err != nil {
		sess.Keyframes = sess.Keyframes[:len(sess.Keyframes)-1]
		sess.NextSequence--
		if rmErr := s.backend.Remove(ctx, key); rmErr != nil {
			logging.Warn("failed to remove orphaned artifact", "session", sess.ID, "key", key, "error", rmErr)
		}
		return Keyframe{}, err
	}
	return kf, nil
}

// SetScenes records detected scenes and rewrites the manifest.
func (s *Store) SetScenes(ctx context.Context, sess *Session, scenes []keyframe.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Scenes = append([]keyframe.Scene(nil), scenes...)
	return s.saveLocked(ctx, sess)
}

// Delete removes a keyframe and its artifact. An unknown id is NotFound; a
// missing artifact is logged and otherwise ignored.
func (s *Store) Delete(ctx context.Context, sess *Session, keyframeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, kf := range sess.Keyframes {
		if kf.ID == keyframeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return coreerrors.NewNotFoundError(fmt.Sprintf("keyframe %s in session %s", keyframeID, sess.ID))
	}

	key := sess.Keyframes[idx].ArtifactKey
	if err := s.backend.Remove(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logging.Warn("artifact already absent", "session", sess.ID, "key", key)
		} else {
			logging.Warn("failed to remove artifact", "session", sess.ID, "key", key, "error", err)
		}
	}

	sess.Keyframes = append(sess.Keyframes[:idx], sess.Keyframes[idx+1:]...)
	return s.saveLocked(ctx, sess)
}

// Load reads a session manifest back.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.backend.Get(ctx, manifestKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, coreerrors.NewNotFoundError(fmt.Sprintf("session %s", id))
	}
	if err != nil {
		return nil, coreerrors.NewIOError(fmt.Sprintf("read session %s", id), err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, coreerrors.NewJSONParseError(fmt.Sprintf("session %s manifest", id), err)
	}
	if sess.Keyframes == nil {
		sess.Keyframes = []Keyframe{}
	}
	return &sess, nil
}

// List returns the ids of every stored session.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.backend.List(ctx, "")
	if err != nil {
		return nil, coreerrors.NewIOError("list sessions", err)
	}
	var ids []string
	for _, k := range keys {
		dir, file := path.Split(k)
		if file == ManifestName && dir != "" && path.Dir(path.Clean(dir)) == "." {
			ids = append(ids, path.Clean(dir))
		}
	}
	return ids, nil
}

// ReadArtifact returns the stored bytes of a keyframe.
func (s *Store) ReadArtifact(ctx context.Context, kf Keyframe) ([]byte, error) {
	data, err := s.backend.Get(ctx, kf.ArtifactKey)
	if err != nil {
		return nil, coreerrors.NewIOError(fmt.Sprintf("read artifact %s", kf.ArtifactKey), err)
	}
	return data, nil
}

func (s *Store) saveLocked(ctx context.Context, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return coreerrors.NewJSONParseError("encode session manifest", err)
	}
	if err := s.backend.Put(ctx, manifestKey(sess.ID), data, "application/json"); err != nil {
		return coreerrors.NewIOError(fmt.Sprintf("write session %s manifest", sess.ID), err)
	}
	return nil
}
