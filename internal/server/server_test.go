package server_test

import (
	"context"
	"encoding/json"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"timelapse/internal/artifacts"
	"timelapse/internal/config"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/render"
	"timelapse/internal/server"
	"timelapse/internal/testsupport"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls [][]frames.Frame
	done  chan struct{}
}

func (f *fakeRenderer) RenderFrames(_ context.Context, selected []frames.Frame) (render.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, selected)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return render.Result{Label: "range"}, nil
}

type fixture struct {
	cfg      *config.Config
	srv      *server.Server
	http     *httptest.Server
	renderer *fakeRenderer
	history  *history.Store
}

func newFixture(t *testing.T, mutate func(*server.Options)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	renderer := &fakeRenderer{done: make(chan struct{}, 8)}
	opts := server.Options{
		Bind:                 "127.0.0.1:0",
		Catalog:              artifacts.NewCatalog(cfg.Paths.VideoDir, cfg.Paths.ThumbnailDir, "", nil),
		Frames:               frames.NewStore(cfg.Paths.FramesDir),
		History:              store,
		Renderer:             renderer,
		RangeRenderEnabled:   true,
		RangeRenderPerMinute: 60,
		RangeRenderBurst:     20,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := server.New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return &fixture{cfg: cfg, srv: srv, http: ts, renderer: renderer, history: store}
}

func (f *fixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.http.URL+"/api/render", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewWithoutBindDisables(t *testing.T) {
	if srv := server.New(server.Options{}); srv != nil {
		t.Fatal("expected nil server for empty bind")
	}
}

func TestIndexListsVideos(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.VideoDir, "20240101.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.ThumbnailDir, "20240101.jpg"), 10)

	resp := f.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	html := string(body)
	if !strings.Contains(html, `/timelapse_videos/20240101.mp4`) || !strings.Contains(html, `/timelapse_thumbnails/20240101.jpg`) {
		t.Fatalf("index missing video links:\n%s", html)
	}
}

func TestVideoDownload(t *testing.T) {
	f := newFixture(t, nil)
	if err := os.WriteFile(filepath.Join(f.cfg.Paths.VideoDir, "20240101.mp4"), []byte("mp4data"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := f.get(t, "/timelapse_videos/20240101.mp4")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}

	for _, path := range []string{"/timelapse_videos/missing.mp4", "/timelapse_videos/..%2Fsecret.mp4", "/timelapse_thumbnails/20240101.jpg"} {
		if resp := f.get(t, path); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: status %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestFramesAPI(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.WriteDay(t, f.cfg.Paths.FramesDir, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), 2, 8, 8)
	testsupport.WriteFrame(t, f.cfg.Paths.FramesDir, time.Date(2024, 1, 2, 8, 0, 0, 0, time.Local), 8, 8, color.White)

	var all server.FramesResponse
	if err := json.NewDecoder(f.get(t, "/api/frames").Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if all.Count != 3 || len(all.Frames) != 3 || all.Frames[2].Index != 2 {
		t.Fatalf("unexpected frames response %+v", all)
	}

	var day server.FramesResponse
	if err := json.NewDecoder(f.get(t, "/api/frames?date=20240102").Body).Decode(&day); err != nil {
		t.Fatal(err)
	}
	if len(day.Frames) != 1 || day.Frames[0].Index != 2 {
		t.Fatalf("date filter must keep global indices: %+v", day)
	}
}

func TestHistoryAPI(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.history.Begin(context.Background(), history.KindDaily, "20240101", 3); err != nil {
		t.Fatal(err)
	}
	var resp server.HistoryResponse
	if err := json.NewDecoder(f.get(t, "/api/history?limit=5").Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].Label != "20240101" {
		t.Fatalf("unexpected history %+v", resp)
	}
	if bad := f.get(t, "/api/history?limit=abc"); bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", bad.StatusCode)
	}
}

func TestRenderValidatesRange(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.WriteDay(t, f.cfg.Paths.FramesDir, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), 10, 8, 8)

	for _, body := range []string{`{"start":3,"end":2}`, `{"start":0,"end":10}`, `{"start":0}`, `not json`, `{"start":0,"end":1,"extra":true}`} {
		if resp := f.post(t, body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", body, resp.StatusCode)
		}
	}

	resp := f.post(t, `{"start":0,"end":9}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d, want 202", resp.StatusCode)
	}
	var accepted server.RenderAccepted
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Label != "20240101_080000-20240101_080900" || accepted.Frames != 10 {
		t.Fatalf("unexpected accepted payload %+v", accepted)
	}

	select {
	case <-f.renderer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("range render not started")
	}
	f.renderer.mu.Lock()
	defer f.renderer.mu.Unlock()
	if len(f.renderer.calls) != 1 || len(f.renderer.calls[0]) != 10 {
		t.Fatalf("unexpected render calls %v", f.renderer.calls)
	}
	got := f.renderer.calls[0]
	if render.RangeLabel(got[0], got[len(got)-1]) != accepted.Label {
		t.Fatalf("rendered frames %s..%s do not match accepted label %s", got[0].Name, got[len(got)-1].Name, accepted.Label)
	}
}

func TestRenderPassesAcceptedSelection(t *testing.T) {
	f := newFixture(t, nil)
	paths := testsupport.WriteDay(t, f.cfg.Paths.FramesDir, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), 5, 8, 8)

	resp := f.post(t, `{"start":1,"end":3}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d, want 202", resp.StatusCode)
	}
	var accepted server.RenderAccepted
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.renderer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("range render not started")
	}
	f.renderer.mu.Lock()
	defer f.renderer.mu.Unlock()
	got := f.renderer.calls[0]
	if len(got) != 3 || got[0].Path != paths[1] || got[2].Path != paths[3] {
		t.Fatalf("unexpected selection %v", got)
	}
	if accepted.Label != "20240101_080100-20240101_080300" {
		t.Fatalf("unexpected label %s", accepted.Label)
	}
}

func TestRenderRateLimited(t *testing.T) {
	f := newFixture(t, func(o *server.Options) {
		o.RangeRenderPerMinute = 1
		o.RangeRenderBurst = 1
	})
	testsupport.WriteDay(t, f.cfg.Paths.FramesDir, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), 2, 8, 8)

	if resp := f.post(t, `{"start":0,"end":1}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first request status %d", resp.StatusCode)
	}
	if resp := f.post(t, `{"start":0,"end":1}`); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status %d, want 429", resp.StatusCode)
	}
}

func TestRenderDisabled(t *testing.T) {
	f := newFixture(t, func(o *server.Options) { o.RangeRenderEnabled = false })
	if resp := f.post(t, `{"start":0,"end":0}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", resp.StatusCode)
	}
}

func TestStartServesOnBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv := server.New(server.Options{
		Bind:    "127.0.0.1:0",
		Catalog: artifacts.NewCatalog(cfg.Paths.VideoDir, "", "", nil),
		Frames:  frames.NewStore(cfg.Paths.FramesDir),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/api/videos")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var videos server.VideosResponse
	if err := json.NewDecoder(resp.Body).Decode(&videos); err != nil {
		t.Fatal(err)
	}
	if videos.Videos == nil || len(videos.Videos) != 0 {
		t.Fatalf("expected empty list, got %+v", videos)
	}
}
