package session_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/errstore"
	"darkroom/internal/imagemeta"
	"darkroom/internal/logging"
	"darkroom/internal/mediastore"
	"darkroom/internal/notify"
	"darkroom/internal/session"
	"darkroom/internal/sessiondir"
	"darkroom/internal/testsupport"
)

type fixture struct {
	manager  *session.Manager
	cfg      *config.Config
	media    *mediastore.Store
	failures *errstore.Store
	listener *recordingListener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	media := testsupport.MustOpenMediaStore(t, cfg)
	failures := testsupport.MustOpenErrorStore(t, cfg)

	manager := session.NewManager(
		cfg,
		media,
		failures,
		sessiondir.New(cfg.Paths.SessionRoot),
		notify.NewNotifier(cfg),
		logging.NewNop(),
	)
	t.Cleanup(manager.Close)

	listener := &recordingListener{}
	manager.AddListener(listener)

	return &fixture{manager: manager, cfg: cfg, media: media, failures: failures, listener: listener}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) record(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *recordingListener) OnQueued(id string)                 { l.record("queued " + id) }
func (l *recordingListener) OnProgress(id string, percent int)  { l.record(fmt.Sprintf("progress %s %d", id, percent)) }
func (l *recordingListener) OnDone(id string)                   { l.record("done " + id) }
func (l *recordingListener) OnFailed(id string, reason string)  { l.record(fmt.Sprintf("failed %s %s", id, reason)) }
func (l *recordingListener) OnUpdated(id string)                { l.record("updated " + id) }

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *recordingListener) waitFor(t *testing.T, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range l.snapshot() {
			if ev == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %q never delivered; saw %v", want, l.snapshot())
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestStartRegistersSessionAndEmitsQueued(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Beach Walk", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "processing"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id := s.Identifier()
	if id == "" {
		t.Fatal("expected identifier after start")
	}
	if got := fx.manager.Session(id); got != s {
		t.Fatalf("registry lookup returned %v, want started session", got)
	}
	if got := fx.manager.Progress(id); got != 0 {
		t.Fatalf("Progress = %d, want 0", got)
	}
	msg, err := fx.manager.ProgressMessage(id)
	if err != nil {
		t.Fatalf("ProgressMessage: %v", err)
	}
	if msg != "processing" {
		t.Fatalf("ProgressMessage = %q, want %q", msg, "processing")
	}

	fx.listener.waitFor(t, "queued "+id)

	item, err := fx.media.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.State != mediastore.StatePending {
		t.Fatalf("item state = %q, want pending", item.State)
	}
}

func TestSecondStartFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Once", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "first"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	err := s.Start(ctx, encodeJPEG(t, 4, 4), "second")
	if !errors.Is(err, session.ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
	if s.Identifier() != id {
		t.Fatalf("identifier changed from %q to %q after rejected start", id, s.Identifier())
	}
	if fx.manager.Session(id) != s {
		t.Fatal("rejected start disturbed the registry")
	}
}

func TestStartFromExistingPreservesLocation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	existing, err := fx.manager.SaveImage(ctx, encodeJPEG(t, 8, 6), "Old Shot", time.Now(), nil, 8, 6, 1, imagemeta.Metadata{})
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	s := fx.manager.NewSession("Old Shot", nil)
	if err := s.StartFromExisting(ctx, existing, "reprocessing"); err != nil {
		t.Fatalf("StartFromExisting: %v", err)
	}
	if s.Identifier() != existing {
		t.Fatalf("identifier = %q, want %q", s.Identifier(), existing)
	}

	item, err := fx.media.GetItem(ctx, existing)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.State != mediastore.StatePending {
		t.Fatalf("item state = %q, want pending after restart", item.State)
	}
}

func TestStartFromExistingUnknownLocation(t *testing.T) {
	fx := newFixture(t)

	s := fx.manager.NewSession("Ghost", nil)
	err := s.StartFromExisting(context.Background(), "media://missing", "reprocessing")
	if !errors.Is(err, mediastore.ErrUnknownLocation) {
		t.Fatalf("error = %v, want ErrUnknownLocation", err)
	}
	if s.State() != session.StateCreated {
		t.Fatalf("state = %q, want created after failed start", s.State())
	}
}

func TestStartFromExistingRejectsDuplicateIdentifier(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	existing, err := fx.manager.SaveImage(ctx, encodeJPEG(t, 8, 6), "Shared", time.Now(), nil, 8, 6, 1, imagemeta.Metadata{})
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	first := fx.manager.NewSession("Shared", nil)
	if err := first.StartFromExisting(ctx, existing, "reprocessing"); err != nil {
		t.Fatalf("StartFromExisting: %v", err)
	}

	second := fx.manager.NewSession("Shared", nil)
	err = second.StartFromExisting(ctx, existing, "reprocessing again")
	if !errors.Is(err, session.ErrIdentifierInUse) {
		t.Fatalf("duplicate start error = %v, want ErrIdentifierInUse", err)
	}
	if second.State() != session.StateCreated {
		t.Fatalf("second session state = %q, want created", second.State())
	}
	if got := fx.manager.Session(existing); got != first {
		t.Fatal("duplicate start displaced the registered session")
	}

	// The holder of the identifier still deregisters cleanly.
	if err := first.Finalize(ctx, encodeJPEG(t, 8, 6), 8, 6, 1, imagemeta.Metadata{}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fx.manager.Session(existing) != nil {
		t.Fatal("finalized session still registered")
	}
}

func TestRejectedStartSendsNoPush(t *testing.T) {
	var pushes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = srv.URL
	media := testsupport.MustOpenMediaStore(t, cfg)
	failures := testsupport.MustOpenErrorStore(t, cfg)
	manager := session.NewManager(
		cfg,
		media,
		failures,
		sessiondir.New(cfg.Paths.SessionRoot),
		notify.NewNotifier(cfg),
		logging.NewNop(),
	)
	t.Cleanup(manager.Close)

	s := manager.NewSession("Ghost", nil)
	if err := s.StartFromExisting(context.Background(), "media://missing", "reprocessing"); err == nil {
		t.Fatal("expected start to fail for unknown location")
	}
	if got := pushes.Load(); got != 0 {
		t.Fatalf("rejected start sent %d push(es), want 0", got)
	}

	if err := s.Start(context.Background(), encodeJPEG(t, 4, 4), "processing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := pushes.Load(); got != 1 {
		t.Fatalf("successful start sent %d push(es), want 1", got)
	}
}

func TestSetProgressClampsAndEmits(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Clamp", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "working"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	if err := s.SetProgress(ctx, 150); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if got := fx.manager.Progress(id); got != 100 {
		t.Fatalf("Progress = %d, want 100", got)
	}
	fx.listener.waitFor(t, "progress "+id+" 100")

	if err := s.SetProgress(ctx, -5); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if got := fx.manager.Progress(id); got != 0 {
		t.Fatalf("Progress = %d, want 0", got)
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Early", nil)
	if err := s.SetProgress(ctx, 10); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("SetProgress error = %v, want ErrNotStarted", err)
	}
	if err := s.Fail(ctx, "too soon"); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("Fail error = %v, want ErrNotStarted", err)
	}
	if _, err := s.TempFilePath(); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("TempFilePath error = %v, want ErrNotStarted", err)
	}
}

func TestFinalizePromotesPlaceholder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Final Frame", &mediastore.GeoLocation{Latitude: 48.1, Longitude: 11.5})
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "saving"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	final := encodeJPEG(t, 64, 48)
	if err := s.Finalize(ctx, final, 64, 48, 1, imagemeta.Metadata{CameraMake: "Acme"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if got := s.FinalLocation(); got != id {
		t.Fatalf("FinalLocation = %q, want placeholder location %q", got, id)
	}
	if s.State() != session.StateDone {
		t.Fatalf("state = %q, want done", s.State())
	}
	fx.listener.waitFor(t, "done "+id)

	if got := fx.manager.Progress(id); got != session.ProgressUnknown {
		t.Fatalf("Progress after finalize = %d, want ProgressUnknown", got)
	}
	if _, err := fx.manager.ProgressMessage(id); !errors.Is(err, session.ErrUnknownSession) {
		t.Fatalf("ProgressMessage error = %v, want ErrUnknownSession", err)
	}

	item, err := fx.media.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.State != mediastore.StateFinal {
		t.Fatalf("item state = %q, want final", item.State)
	}
	if item.Width != 64 || item.Height != 48 {
		t.Fatalf("dimensions = %dx%d, want 64x48", item.Width, item.Height)
	}
	if item.CameraMake != "Acme" {
		t.Fatalf("camera make = %q, want Acme", item.CameraMake)
	}
	if item.Location2D == nil || item.Location2D.Latitude != 48.1 {
		t.Fatalf("geolocation not persisted: %+v", item.Location2D)
	}
	blob, err := fx.media.ReadBlob(ctx, id)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(blob, final) {
		t.Fatal("final blob does not match finalized bytes")
	}
}

func TestFailRecordsReasonAndEmitsFailed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Broken", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "processing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	if err := s.Fail(ctx, "sensor timeout"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.State() != session.StateFailed {
		t.Fatalf("state = %q, want failed", s.State())
	}
	fx.listener.waitFor(t, "failed "+id+" sensor timeout")

	if fx.manager.Session(id) != nil {
		t.Fatal("failed session still registered")
	}
	has, err := fx.manager.HasError(ctx, id)
	if err != nil {
		t.Fatalf("HasError: %v", err)
	}
	if !has {
		t.Fatal("failure reason not recorded")
	}
	reason, err := fx.manager.Error(ctx, id)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if reason != "sensor timeout" {
		t.Fatalf("reason = %q, want %q", reason, "sensor timeout")
	}

	if err := fx.manager.ClearError(ctx, id); err != nil {
		t.Fatalf("ClearError: %v", err)
	}
	has, err = fx.manager.HasError(ctx, id)
	if err != nil {
		t.Fatalf("HasError: %v", err)
	}
	if has {
		t.Fatal("failure reason survived ClearError")
	}
}

func TestCancelRemovesWithoutEvent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Abandoned", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "processing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()
	fx.listener.waitFor(t, "queued "+id)

	s.Cancel()
	if s.State() != session.StateCancelled {
		t.Fatalf("state = %q, want cancelled", s.State())
	}
	if fx.manager.Session(id) != nil {
		t.Fatal("cancelled session still registered")
	}

	// Background work racing the cancel resolves as a no-op.
	if err := s.FinalizeFromTempFile(); err != nil {
		t.Fatalf("FinalizeFromTempFile: %v", err)
	}
	fx.manager.Close()

	for _, ev := range fx.listener.snapshot() {
		if ev != "queued "+id {
			t.Fatalf("unexpected event after cancel: %q", ev)
		}
	}
}

func TestFinalizeFromTempFile(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Long Exposure", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "capturing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	path, err := s.EnsureTempFile()
	if err != nil {
		t.Fatalf("EnsureTempFile: %v", err)
	}
	if err := os.WriteFile(path, encodeJPEG(t, 32, 24), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if err := s.FinalizeFromTempFile(); err != nil {
		t.Fatalf("FinalizeFromTempFile: %v", err)
	}
	fx.listener.waitFor(t, "done "+id)

	item, err := fx.media.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.State != mediastore.StateFinal {
		t.Fatalf("item state = %q, want final", item.State)
	}
	if item.Width != 32 || item.Height != 24 {
		t.Fatalf("dimensions = %dx%d, want 32x24", item.Width, item.Height)
	}
}

func TestFinalizeFromTempFileReadFailureFailsSession(t *testing.T) {
	fx := newFixture(t)

	s := fx.manager.NewSession("Vanished", nil)
	if err := s.Start(context.Background(), encodeJPEG(t, 4, 4), "capturing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	// No temp file was ever provisioned, so the background read fails and
	// the session must surface that as a failure rather than going silent.
	if err := s.FinalizeFromTempFile(); err != nil {
		t.Fatalf("FinalizeFromTempFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != session.StateFailed {
		if time.Now().After(deadline) {
			t.Fatalf("state = %q, want failed", s.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	has, err := fx.manager.HasError(context.Background(), id)
	if err != nil {
		t.Fatalf("HasError: %v", err)
	}
	if !has {
		t.Fatal("read failure left no recorded reason")
	}
	found := false
	for _, ev := range fx.listener.snapshot() {
		if len(ev) > len("failed ") && ev[:len("failed ")] == "failed " {
			found = true
		}
	}
	if !found {
		// Delivery is async; drain before giving up.
		fx.manager.Close()
		for _, ev := range fx.listener.snapshot() {
			if len(ev) > len("failed ") && ev[:len("failed ")] == "failed " {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("no failed event delivered; saw %v", fx.listener.snapshot())
	}
}

func TestPreviewUpdatedReplacesPlaceholder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s := fx.manager.NewSession("Live View", nil)
	if err := s.Start(ctx, encodeJPEG(t, 4, 4), "capturing"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.Identifier()

	path, err := s.EnsureTempFile()
	if err != nil {
		t.Fatalf("EnsureTempFile: %v", err)
	}
	preview := encodeJPEG(t, 16, 12)
	if err := os.WriteFile(path, preview, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if err := s.PreviewUpdated(); err != nil {
		t.Fatalf("PreviewUpdated: %v", err)
	}
	fx.listener.waitFor(t, "updated "+id)

	item, err := fx.media.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.State != mediastore.StatePending {
		t.Fatalf("item state = %q, want pending after preview", item.State)
	}
	if item.Width != 16 || item.Height != 12 {
		t.Fatalf("dimensions = %dx%d, want 16x12", item.Width, item.Height)
	}
	blob, err := fx.media.ReadBlob(ctx, id)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(blob, preview) {
		t.Fatal("placeholder blob was not replaced with preview bytes")
	}
}

func TestTempFilePathIsStableAndScoped(t *testing.T) {
	fx := newFixture(t)

	s := fx.manager.NewSession("My Shot", nil)
	if err := s.Start(context.Background(), encodeJPEG(t, 4, 4), "capturing"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, err := s.TempFilePath()
	if err != nil {
		t.Fatalf("TempFilePath: %v", err)
	}
	second, err := s.TempFilePath()
	if err != nil {
		t.Fatalf("TempFilePath: %v", err)
	}
	if first != second {
		t.Fatalf("temp path not stable: %q vs %q", first, second)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("TempFilePath touched the filesystem: %v", err)
	}

	provisioned, err := s.EnsureTempFile()
	if err != nil {
		t.Fatalf("EnsureTempFile: %v", err)
	}
	if provisioned != first {
		t.Fatalf("EnsureTempFile path %q differs from TempFilePath %q", provisioned, first)
	}
	if _, err := os.Stat(provisioned); err != nil {
		t.Fatalf("temp file missing after EnsureTempFile: %v", err)
	}
}
