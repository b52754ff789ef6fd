package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/shelfwatch/notify"
	"github.com/yairfalse/shelfwatch/runlog"
	"github.com/yairfalse/shelfwatch/scheduler"
	"github.com/yairfalse/shelfwatch/storage"
	"github.com/yairfalse/shelfwatch/telemetry"
	"github.com/yairfalse/shelfwatch/types"
)

type fakeScheduler struct {
	running    bool
	triggerErr error
	triggered  []string
	resent     []notify.Message
}

func (f *fakeScheduler) Start()        { f.running = true }
func (f *fakeScheduler) Stop()         { f.running = false }
func (f *fakeScheduler) Running() bool { return f.running }

func (f *fakeScheduler) Status() scheduler.Status {
	return scheduler.Status{Running: f.running, Interval: time.Minute}
}

func (f *fakeScheduler) TriggerNow(_ context.Context, targetID string) (types.RunRecord, error) {
	if f.triggerErr != nil {
		return types.RunRecord{}, f.triggerErr
	}
	f.triggered = append(f.triggered, targetID)
	return types.RunRecord{TargetID: targetID, Outcome: types.RunSuccess}, nil
}

func (f *fakeScheduler) TriggerAll(_ context.Context) ([]types.RunRecord, error) {
	return []types.RunRecord{{TargetID: "all", Outcome: types.RunSuccess}}, nil
}

func (f *fakeScheduler) Resend(_ context.Context, msg notify.Message) types.NotificationEvent {
	f.resent = append(f.resent, msg)
	return types.NotificationEvent{TargetID: msg.TargetID, Subject: msg.Subject}
}

type fakeTargetStore struct {
	targets map[string]types.MonitoredTarget
}

func newFakeTargetStore() *fakeTargetStore {
	return &fakeTargetStore{targets: make(map[string]types.MonitoredTarget)}
}

func (f *fakeTargetStore) SaveTarget(t types.MonitoredTarget) error {
	f.targets[t.ID] = t
	return nil
}

func (f *fakeTargetStore) GetTarget(id string) (types.MonitoredTarget, error) {
	t, ok := f.targets[id]
	if !ok {
		return types.MonitoredTarget{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeTargetStore) DeleteTarget(id string) error {
	delete(f.targets, id)
	return nil
}

func (f *fakeTargetStore) ListTargets() ([]types.MonitoredTarget, error) {
	var out []types.MonitoredTarget
	for _, t := range f.targets {
		out = append(out, t)
	}
	return out, nil
}

func newTestServer(t *testing.T, sched *fakeScheduler, store *fakeTargetStore) *httptest.Server {
	t.Helper()
	deps := &Deps{
		Scheduler: sched,
		Store:     store,
		History: func(targetID string, limit int) ([]*runlog.Entry, error) {
			return []*runlog.Entry{{Type: runlog.EntryRun, TargetID: targetID}}, nil
		},
		Logger: &telemetry.Logger{Logger: zerolog.New(&bytes.Buffer{})},
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func TestTriggerConflictIs409(t *testing.T) {
	sched := &fakeScheduler{triggerErr: scheduler.ErrCheckInFlight}
	srv := newTestServer(t, sched, newFakeTargetStore())

	resp, err := http.Post(srv.URL+"/api/monitor/trigger?target=https%3A%2F%2Fshop.example.com%2Fnew", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTriggerUnknownTargetIs404(t *testing.T) {
	sched := &fakeScheduler{triggerErr: scheduler.ErrUnknownTarget}
	srv := newTestServer(t, sched, newFakeTargetStore())

	resp, err := http.Post(srv.URL+"/api/monitor/trigger?target=nope", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTriggerSingleTarget(t *testing.T) {
	sched := &fakeScheduler{}
	srv := newTestServer(t, sched, newFakeTargetStore())

	resp, err := http.Post(srv.URL+"/api/monitor/trigger?target=t1", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rec types.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.TargetID != "t1" || rec.Outcome != types.RunSuccess {
		t.Errorf("record = %+v", rec)
	}
	if len(sched.triggered) != 1 {
		t.Error("trigger did not reach the scheduler")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	sched := &fakeScheduler{}
	srv := newTestServer(t, sched, newFakeTargetStore())

	resp, err := http.Post(srv.URL+"/api/monitor/start", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !sched.running {
		t.Fatal("start did not reach the scheduler")
	}

	resp, err = http.Post(srv.URL+"/api/monitor/stop", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["running"] {
		t.Error("stop response should report not running")
	}
}

func TestTargetCRUD(t *testing.T) {
	store := newFakeTargetStore()
	srv := newTestServer(t, &fakeScheduler{}, store)

	// create
	payload := `{"url":"https://shop.example.com/collections/new","kind":"catalog","name":"new arrivals"}`
	resp, err := http.Post(srv.URL+"/api/targets/", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created types.MonitoredTarget
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Kind != types.KindCatalog {
		t.Fatalf("created = %+v", created)
	}

	// list
	resp, err = http.Get(srv.URL + "/api/targets/")
	if err != nil {
		t.Fatal(err)
	}
	var listed []types.MonitoredTarget
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(listed) != 1 {
		t.Fatalf("listed = %d targets", len(listed))
	}

	// delete via query param (ids are URLs)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/targets/?id="+urlQueryEscape(created.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if len(store.targets) != 0 {
		t.Error("target not deleted")
	}

	// deleting again is a 404
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/targets/?id="+urlQueryEscape(created.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
}

func TestAddTargetRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, &fakeScheduler{}, newFakeTargetStore())

	for _, payload := range []string{
		`{"url":"ftp://bad.example.com","kind":"catalog"}`,
		`{"url":"https://shop.example.com/x","kind":"mystery"}`,
		`not json`,
	} {
		resp, err := http.Post(srv.URL+"/api/targets/", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, resp.StatusCode)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeScheduler{}, newFakeTargetStore())

	resp, err := http.Get(srv.URL + "/api/history?target=t1&limit=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var entries []*runlog.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].TargetID != "t1" {
		t.Errorf("entries = %+v", entries)
	}

	resp, err = http.Get(srv.URL + "/api/history?limit=-1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", resp.StatusCode)
	}
}

func TestResendEndpoint(t *testing.T) {
	sched := &fakeScheduler{}
	srv := newTestServer(t, sched, newFakeTargetStore())

	payload := `{"target_id":"t1","subject":"restock","body":"details"}`
	resp, err := http.Post(srv.URL+"/api/notifications/resend", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(sched.resent) != 1 || sched.resent[0].Subject != "restock" {
		t.Errorf("resent = %+v", sched.resent)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeScheduler{}, newFakeTargetStore())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func urlQueryEscape(s string) string {
	return url.QueryEscape(s)
}
