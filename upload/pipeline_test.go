package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/starcms/storage"
)

var fixedNow = time.UnixMilli(1700000000000)

func folderOf(f string) func() (string, error) {
	return func() (string, error) { return f, nil }
}

// gateStore pauses a Put for keys containing a marker after pct percent of
// the body was read, until the matching release channel is closed.
type gateStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	pauses  map[string]int
	paused  map[string]chan struct{}
	release map[string]chan struct{}
	puts    int
}

func newGateStore() *gateStore {
	return &gateStore{
		MemoryStore: storage.NewMemoryStore("https://cdn.test"),
		pauses:      make(map[string]int),
		paused:      make(map[string]chan struct{}),
		release:     make(map[string]chan struct{}),
	}
}

func (g *gateStore) pauseAt(marker string, pct int) (paused, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pauses[marker] = pct
	g.paused[marker] = make(chan struct{})
	g.release[marker] = make(chan struct{})
	return g.paused[marker], g.release[marker]
}

func (g *gateStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	g.mu.Lock()
	g.puts++
	var marker string
	for m := range g.pauses {
		if strings.Contains(key, m) {
			marker = m
		}
	}
	pct, paused, release := g.pauses[marker], g.paused[marker], g.release[marker]
	g.mu.Unlock()
	if marker == "" {
		return g.MemoryStore.Put(ctx, key, body, size, contentType)
	}
	head := make([]byte, size*int64(pct)/100)
	if _, err := io.ReadFull(body, head); err != nil {
		return "", err
	}
	close(paused)
	select {
	case <-release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.MemoryStore.Put(ctx, key, io.MultiReader(bytes.NewReader(head), body), size, contentType)
}

type failingStore struct {
	*storage.MemoryStore
}

func (f failingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	half := make([]byte, size/2)
	_, _ = io.ReadFull(body, half)
	return "", errors.New("connection reset")
}

type progressLog struct {
	mu   sync.Mutex
	vals []int
}

func (p *progressLog) add(v int) {
	p.mu.Lock()
	p.vals = append(p.vals, v)
	p.mu.Unlock()
}

func (p *progressLog) get() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.vals...)
}

func nonDecreasing(vals []int) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			return false
		}
	}
	return true
}

func TestUploadProgressEndsAt100(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	p := New(store, nil, WithClock(func() time.Time { return fixedNow }))
	var log progressLog
	u, err := p.Upload(context.Background(), Request{
		Folder:     folderOf("celebrities/zendaya"),
		Category:   "profile",
		Filename:   "My Photo.JPG",
		Body:       bytes.NewReader(bytes.Repeat([]byte("x"), 100<<10)),
		OnProgress: log.add,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if u != "https://cdn.test/celebrities/zendaya/profile/1700000000000_my_photo.jpg" {
		t.Errorf("url = %q", u)
	}
	vals := log.get()
	if len(vals) < 2 || !nonDecreasing(vals) || vals[len(vals)-1] != 100 {
		t.Errorf("progress = %v, want non-decreasing ending at 100", vals)
	}
	for _, v := range vals[:len(vals)-1] {
		if v >= 100 {
			t.Errorf("progress reached 100 before success: %v", vals)
		}
	}
}

func TestUploadFailureStopsBelow100(t *testing.T) {
	p := New(failingStore{storage.NewMemoryStore("https://cdn.test")}, nil)
	var log progressLog
	task, err := p.Start(context.Background(), Request{
		Folder:     folderOf("news/launch"),
		Category:   "cover",
		Filename:   "a.jpg",
		Body:       bytes.NewReader(bytes.Repeat([]byte("x"), 100<<10)),
		OnProgress: log.add,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := task.Wait(context.Background()); !errors.Is(err, ErrTransfer) {
		t.Fatalf("Wait err = %v, want ErrTransfer", err)
	}
	for _, v := range log.get() {
		if v >= 100 {
			t.Errorf("failed upload reported %d", v)
		}
	}
	snap := task.Snapshot()
	if snap.Status != StatusFailed || snap.Progress != 0 || snap.URL != "" || snap.Preview != "" {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, _, ok := task.Preview(); ok {
		t.Error("preview not released after failure")
	}
}

func TestUploadPreconditionBeforeIO(t *testing.T) {
	store := newGateStore()
	tracker := NewTracker()
	p := New(store, tracker)
	_, err := p.Start(context.Background(), Request{
		Folder: func() (string, error) {
			return "", errors.New("Please select a celebrity before uploading images")
		},
		Filename: "look.jpg",
		Body:     strings.NewReader("img"),
	})
	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Message != "Please select a celebrity before uploading images" {
		t.Fatalf("err = %v, want precondition error", err)
	}
	if !errors.Is(err, ErrPrecondition) {
		t.Error("PreconditionError does not match ErrPrecondition")
	}
	if store.puts != 0 || tracker.Len() != 0 {
		t.Errorf("puts=%d tasks=%d, want none", store.puts, tracker.Len())
	}

	for _, req := range []Request{
		{Folder: folderOf("x"), Filename: "a.jpg"},
		{Folder: folderOf("x"), Filename: "a.jpg", Body: strings.NewReader("")},
		{Folder: folderOf(""), Filename: "a.jpg", Body: strings.NewReader("a")},
	} {
		if _, err := p.Start(context.Background(), req); !errors.Is(err, ErrPrecondition) {
			t.Errorf("Start(%+v) err = %v, want precondition", req, err)
		}
	}
	small := New(store, tracker, WithMaxSize(4))
	if _, err := small.Start(context.Background(), Request{Folder: folderOf("x"), Filename: "a", Body: strings.NewReader("12345")}); !errors.Is(err, ErrPrecondition) {
		t.Errorf("oversized err = %v", err)
	}
}

func TestConcurrentUploadsProgressIndependently(t *testing.T) {
	store := newGateStore()
	p := New(store, nil)
	_, releaseFirst := store.pauseAt("first", 10)
	pausedSecond, releaseSecond := store.pauseAt("second", 40)

	body := func() io.Reader { return bytes.NewReader(bytes.Repeat([]byte("y"), 1000)) }
	first, err := p.Start(context.Background(), Request{Folder: folderOf("g"), Category: "gallery", Filename: "first.jpg", Body: body()})
	if err != nil {
		t.Fatalf("Start first: %v", err)
	}
	second, err := p.Start(context.Background(), Request{Folder: folderOf("g"), Category: "gallery", Filename: "second.jpg", Body: body()})
	if err != nil {
		t.Fatalf("Start second: %v", err)
	}
	<-pausedSecond
	close(releaseFirst)
	u, err := first.Wait(context.Background())
	if err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if s := first.Snapshot(); s.Status != StatusSucceeded || s.Progress != 100 || s.URL != u || s.Preview != "" {
		t.Errorf("first snapshot = %+v", s)
	}
	if s := second.Snapshot(); s.Status != StatusPending || s.Progress != 40 || s.Preview != PreviewHandle(second.ID) {
		t.Errorf("second snapshot = %+v", s)
	}
	if _, _, ok := second.Preview(); !ok {
		t.Error("second preview released early")
	}
	close(releaseSecond)
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if first.ID == second.ID {
		t.Error("tasks share an id")
	}
}

func TestAbortLeavesNoObject(t *testing.T) {
	store := newGateStore()
	p := New(store, nil)
	paused, _ := store.pauseAt("abort", 50)
	task, err := p.Start(context.Background(), Request{Folder: folderOf("m"), Filename: "abort.jpg", Body: strings.NewReader("abcdefgh")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-paused
	task.Abort()
	if _, err := task.Wait(context.Background()); err == nil {
		t.Fatal("expected aborted task to fail")
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Errorf("objects left behind: %v", keys)
	}
}

func TestSubscribeStreamsToTerminal(t *testing.T) {
	store := newGateStore()
	p := New(store, nil)
	paused, release := store.pauseAt("sub", 50)
	task, err := p.Start(context.Background(), Request{Folder: folderOf("m"), Filename: "sub.jpg", Body: strings.NewReader("abcdefgh")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-paused
	ch, unsubscribe := task.Subscribe()
	defer unsubscribe()
	close(release)
	var last Snapshot
	for s := range ch {
		last = s
	}
	if last.Status != StatusSucceeded || last.Progress != 100 {
		t.Errorf("last snapshot = %+v", last)
	}
	late, _ := task.Subscribe()
	if s, ok := <-late; !ok || s.Status != StatusSucceeded {
		t.Errorf("late subscriber got %+v, %v", s, ok)
	}
}

func TestSubscribeSlowReaderGetsTerminal(t *testing.T) {
	task := newTask("t1", "gallery", "m/gallery/a.jpg", nil, "", nil)
	ch, unsubscribe := task.Subscribe()
	defer unsubscribe()
	for pct := 1; pct <= 40; pct++ {
		task.report(pct)
	}
	task.succeed("https://cdn.test/m/gallery/a.jpg")

	var last Snapshot
	n := 0
	for s := range ch {
		last = s
		n++
	}
	if n > cap(ch) {
		t.Errorf("received %d snapshots, buffer holds %d", n, cap(ch))
	}
	want := Snapshot{
		ID:       "t1",
		Field:    "gallery",
		Key:      "m/gallery/a.jpg",
		Status:   StatusSucceeded,
		Progress: 100,
		URL:      "https://cdn.test/m/gallery/a.jpg",
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("last snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRemove(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	p := New(store, nil)
	u, err := p.Upload(context.Background(), Request{Folder: folderOf("movies/dune"), Category: "poster", Filename: "p.jpg", Body: strings.NewReader("p")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	removed, err := p.Remove(context.Background(), "https://example.org/o/pasted.jpg")
	if err != nil || removed {
		t.Errorf("external url: removed=%v err=%v", removed, err)
	}
	if len(store.Keys()) != 1 {
		t.Fatalf("external removal touched the store: %v", store.Keys())
	}
	removed, err = p.Remove(context.Background(), u)
	if err != nil || !removed {
		t.Errorf("managed url: removed=%v err=%v", removed, err)
	}
	if len(store.Keys()) != 0 {
		t.Errorf("object still stored: %v", store.Keys())
	}
	removed, err = p.Remove(context.Background(), u)
	if err != nil || !removed {
		t.Errorf("already deleted: removed=%v err=%v", removed, err)
	}
}

func TestUploadBatchKeepsOrder(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	n := 0
	var mu sync.Mutex
	p := New(store, nil, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fixedNow.Add(time.Duration(n) * time.Millisecond)
	}))
	var reqs []Request
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		reqs = append(reqs, Request{Folder: folderOf("outfits/zendaya/met-gala"), Category: "images", Filename: name, Body: strings.NewReader(name)})
	}
	urls, err := p.UploadBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("UploadBatch: %v", err)
	}
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if !strings.HasSuffix(urls[i], "_"+name) {
			t.Errorf("urls[%d] = %q, want suffix %s", i, urls[i], name)
		}
	}
}

func TestImageOptimization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1200, 600))
	for x := 0; x < 1200; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	store := storage.NewMemoryStore("https://cdn.test")
	p := New(store, nil, WithImageOptimization(800))
	u, err := p.Upload(context.Background(), Request{Folder: folderOf("movies/dune"), Category: "backdrop", Filename: "wide.png", Body: &buf})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasSuffix(u, "_wide.jpg") {
		t.Errorf("url = %q, want .jpg", u)
	}
	key, _ := store.KeyFromURL(u)
	obj, ok := store.Get(key)
	if !ok || obj.ContentType != "image/jpeg" {
		t.Fatalf("object = %+v, %v", obj.ContentType, ok)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if diff := cmp.Diff([2]int{800, 400}, [2]int{cfg.Width, cfg.Height}); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"My Photo.JPG":         "my_photo.jpg",
		"../../etc/passwd":     "passwd",
		"C:\\pics\\look 1.png": "look_1.png",
		"???":                  "file",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackerPrune(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	tracker := NewTracker()
	p := New(store, tracker)
	if _, err := p.Upload(context.Background(), Request{Folder: folderOf("x"), Filename: "a", Body: strings.NewReader("a")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if n := tracker.Prune(time.Hour); n != 0 {
		t.Errorf("pruned %d fresh tasks", n)
	}
	if n := tracker.Prune(-time.Second); n != 1 || tracker.Len() != 0 {
		t.Errorf("pruned %d, len %d", n, tracker.Len())
	}
}
