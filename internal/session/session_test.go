package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/keyframe"
	"github.com/five82/keyframes/internal/storage"
	"github.com/five82/keyframes/internal/video"
)

var testMeta = video.Metadata{FrameCount: 100, FPS: 25, Width: 4, Height: 4, Duration: 4}

func newTestStore(t *testing.T) (*Store, *storage.Local) {
	t.Helper()
	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	store := NewStore(backend,
		WithIDSource(func() string {
			n++
			return fmt.Sprintf("kf%06d", n)
		}),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	return store, backend
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)

	sess, err := store.Create(ctx, "/videos/clip.mp4", "clip", testMeta, config.MethodDifference)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID != "clip" {
		t.Errorf("ID = %q, want clip", sess.ID)
	}
	if ok, _ := backend.Exists(ctx, "clip/session.json"); !ok {
		t.Error("manifest should be written on create")
	}

	// A second session for the same basename gets a suffixed id.
	again, err := store.Create(ctx, "/videos/clip.mp4", "clip", testMeta, config.MethodDifference)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if again.ID == sess.ID || len(again.ID) != len("clip_")+8 {
		t.Errorf("second ID = %q, want clip_<suffix>", again.ID)
	}
}

func TestStoreAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)

	sess, err := store.Create(ctx, "/videos/clip.mp4", "clip", testMeta, config.MethodScene)
	if err != nil {
		t.Fatal(err)
	}
	scene := 0
	cands := []keyframe.Candidate{
		{FrameNumber: 10, Timestamp: 0.4, Score: 0.7, SceneID: &scene},
		{FrameNumber: 50, Timestamp: 2.0, Score: 0, IsTransition: true},
	}
	for _, c := range cands {
		if _, err := store.Append(ctx, sess, []byte("jpeg"), c); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := store.SetScenes(ctx, sess, []keyframe.Scene{{Start: 0, End: 20, Length: 20}}); err != nil {
		t.Fatalf("SetScenes() error = %v", err)
	}

	if sess.Keyframes[0].ArtifactKey != "clip/scene_0.jpg" || sess.Keyframes[1].ArtifactKey != "clip/scene_1.jpg" {
		t.Errorf("artifact keys = %s, %s", sess.Keyframes[0].ArtifactKey, sess.Keyframes[1].ArtifactKey)
	}
	if want := filepath.Join(backend.Root(), "clip", "scene_0.jpg"); sess.Keyframes[0].ArtifactPath != want {
		t.Errorf("ArtifactPath = %s, want %s", sess.Keyframes[0].ArtifactPath, want)
	}
	if _, err := os.Stat(sess.Keyframes[1].ArtifactPath); err != nil {
		t.Errorf("artifact not on disk: %v", err)
	}

	loaded, err := store.Load(ctx, "clip")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Keyframes) != 2 || loaded.NextSequence != 2 {
		t.Fatalf("loaded %d keyframes, next %d", len(loaded.Keyframes), loaded.NextSequence)
	}
	if loaded.Keyframes[0].SceneID == nil || *loaded.Keyframes[0].SceneID != 0 {
		t.Error("scene id should round-trip")
	}
	if loaded.Keyframes[1].SceneID != nil || !loaded.Keyframes[1].IsTransition {
		t.Error("transition flag should round-trip without a scene id")
	}
	if len(loaded.Scenes) != 1 || loaded.Metadata.FPS != 25 || loaded.Method != config.MethodScene {
		t.Errorf("loaded session = %+v", loaded)
	}

	data, _ := backend.Get(ctx, "clip/session.json")
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if raw["session_id"] != "clip" {
		t.Errorf("manifest session_id = %v", raw["session_id"])
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)

	sess, _ := store.Create(ctx, "/v/clip.mp4", "clip", testMeta, config.MethodDifference)
	a, _ := store.Append(ctx, sess, []byte("a"), keyframe.Candidate{FrameNumber: 0})
	b, _ := store.Append(ctx, sess, []byte("b"), keyframe.Candidate{FrameNumber: 25})

	if err := store.Delete(ctx, sess, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := backend.Exists(ctx, a.ArtifactKey); ok {
		t.Error("artifact should be removed")
	}
	if len(sess.Keyframes) != 1 || sess.Keyframes[0].ID != b.ID {
		t.Errorf("remaining keyframes = %+v", sess.Keyframes)
	}

	if err := store.Delete(ctx, sess, "missing"); !coreerrors.IsNotFound(err) {
		t.Errorf("Delete(unknown) error = %v, want NotFound", err)
	}

	// A keyframe whose artifact vanished is still removed from the session.
	_ = backend.Remove(ctx, b.ArtifactKey)
	if err := store.Delete(ctx, sess, b.ID); err != nil {
		t.Fatalf("Delete() with missing artifact error = %v", err)
	}
	loaded, _ := store.Load(ctx, "clip")
	if len(loaded.Keyframes) != 0 {
		t.Errorf("loaded keyframes = %d, want 0", len(loaded.Keyframes))
	}

	// Sequence numbers are not reused after deletion.
	c, _ := store.Append(ctx, sess, []byte("c"), keyframe.Candidate{FrameNumber: 50})
	if c.SequenceIndex != 2 || c.ArtifactKey != "clip/frame_2.jpg" {
		t.Errorf("new keyframe = %+v", c)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Load(context.Background(), "ghost"); !coreerrors.IsNotFound(err) {
		t.Errorf("Load() error = %v, want NotFound", err)
	}
}

func TestStoreListAndReadArtifact(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	s1, _ := store.Create(ctx, "/v/b.mp4", "b", testMeta, config.MethodDifference)
	_, _ = store.Create(ctx, "/v/a.mp4", "a", testMeta, config.MethodDifference)
	kf, _ := store.Append(ctx, s1, []byte("pixels"), keyframe.Candidate{})

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("List() = %v, want [a b]", ids)
	}

	data, err := store.ReadArtifact(ctx, kf)
	if err != nil || string(data) != "pixels" {
		t.Errorf("ReadArtifact() = %q, %v", data, err)
	}
	if found, ok := s1.Find(kf.ID); !ok || found.ArtifactKey != kf.ArtifactKey {
		t.Error("Find() should locate the appended keyframe")
	}
}

// slowExists delays every Exists answer, like a remote backend would.
type slowExists struct {
	storage.Backend
	delay time.Duration
}

func (b slowExists) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := b.Backend.Exists(ctx, key)
	time.Sleep(b.delay)
	return ok, err
}

func TestStoreCreateConcurrentSameBasename(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(slowExists{Backend: local, delay: 5 * time.Millisecond})

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.Create(ctx, fmt.Sprintf("/videos/clip%d.mp4", i), "clip", testMeta, config.MethodDifference)
			errs[i] = err
			if err == nil {
				ids[i] = sess.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, id := range ids {
		if errs[i] != nil {
			t.Fatalf("Create() error = %v", errs[i])
		}
		if seen[id] {
			t.Errorf("session id %q handed out twice", id)
		}
		seen[id] = true
	}
}

// failingManifest accepts artifacts but rejects manifest writes once armed.
type failingManifest struct {
	storage.Backend
	armed bool
}

func (b *failingManifest) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if b.armed && strings.HasSuffix(key, "/"+ManifestName) {
		return fmt.Errorf("manifest write refused")
	}
	return b.Backend.Put(ctx, key, data, contentType)
}

func TestStoreAppendRollsBackOnManifestFailure(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	backend := &failingManifest{Backend: local}
	store := NewStore(backend)

	sess, err := store.Create(ctx, "/videos/clip.mp4", "clip", testMeta, config.MethodDifference)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	backend.armed = true

	_, err = store.Append(ctx, sess, []byte("jpeg"), keyframe.Candidate{FrameNumber: 3})
	if !coreerrors.IsKind(err, coreerrors.KindIO) {
		t.Fatalf("Append() error = %v, want I/O error", err)
	}
	if len(sess.Keyframes) != 0 || sess.NextSequence != 0 {
		t.Errorf("session not rolled back: keyframes = %d, next = %d", len(sess.Keyframes), sess.NextSequence)
	}
	if ok, _ := local.Exists(ctx, "clip/frame_0.jpg"); ok {
		t.Error("artifact of a rolled back keyframe should be removed")
	}

	backend.armed = false
	kf, err := store.Append(ctx, sess, []byte("jpeg"), keyframe.Candidate{FrameNumber: 4})
	if err != nil {
		t.Fatalf("Append() after recovery error = %v", err)
	}
	if kf.SequenceIndex != 0 || len(sess.Keyframes) != 1 {
		t.Errorf("sequence = %d, keyframes = %d; want 0, 1", kf.SequenceIndex, len(sess.Keyframes))
	}
}
