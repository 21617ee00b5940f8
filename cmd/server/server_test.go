package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/metrics"
	"github.com/jeffypooo/apptop/internal/process"
	"github.com/jeffypooo/apptop/internal/refresh"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

type staticSource struct {
	samples []snapshot.Sample
	err     error
}

func (s *staticSource) Request() ([]snapshot.Sample, error) { return s.samples, s.err }
func (s *staticSource) Reset() error                        { return nil }

type fakeExecutor struct {
	deny map[int32]bool
	pids []int32
}

func (f *fakeExecutor) Apply(a action.Action, pid int32) error {
	f.pids = append(f.pids, pid)
	if f.deny[pid] {
		return &action.ActionError{Kind: action.ErrPermissionDenied, Action: a, PID: pid, Code: 1, Elevated: true}
	}
	return nil
}

type fakeHost struct{}

var testBoot = time.Unix(1_700_000_000, 0).UTC()

func (fakeHost) Host(context.Context) (metrics.Host, error) {
	return metrics.Host{CpuUsage: metrics.CpuUsage{UsagePct: 10}}, nil
}

func (fakeHost) BootTime(context.Context) (time.Time, error) { return testBoot, nil }

func sample(pid int32, id string) snapshot.Sample {
	s := snapshot.Sample{PID: pid, MemoryUsage: 1 << 20, Timestamp: 1000, StartTime: uint64(pid) * 100}
	s.Cmdline = "/usr/bin/example\x00--pid\x00"
	if id != "" {
		s.Cgroup = "0::/user.slice/user-1000.slice/user@1000.service/app.slice/app-gnome-" + id + "-7.scope"
	}
	return s
}

func newTestServer(t *testing.T, exec *fakeExecutor) (*server, *echo.Echo) {
	t.Helper()
	src := &staticSource{samples: []snapshot.Sample{sample(1, ""), sample(10, "org.example.App"), sample(11, "org.example.App")}}
	orch := refresh.New(src, process.NewStore(process.Clock{TickRate: 100, NumCPUs: 1}), apps.NewAggregator(nil, exec))
	t.Cleanup(orch.Close)
	if _, err := orch.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	s := &server{orch: orch, host: fakeHost{}}
	return s, newEcho(s)
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestAPIApps(t *testing.T) {
	_, e := newTestServer(t, &fakeExecutor{})
	rec := do(e, http.MethodGet, "/api/apps")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body appsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Refresh == "" || len(body.Summaries) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	i := apps.IndexOf(body.Summaries, "org.example.App")
	if i < 0 || body.Summaries[i].ProcessesAmount != 2 || body.Summaries[i].MemoryUsage != 2<<20 {
		t.Fatalf("unexpected summaries %+v", body.Summaries)
	}
}

func TestAPIActions(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		deny     map[int32]bool
		wantCode int
		wantText string
	}{
		{"kill", "/api/apps/org.example.App/kill", nil, http.StatusOK, "Successfully killed org.example.App"},
		{"partial failure", "/api/apps/org.example.App/end", map[int32]bool{11: true}, http.StatusInternalServerError, "There was a problem ending a process"},
		{"system bucket", "/api/apps/@system/end", nil, http.StatusConflict, "not available for system processes"},
		{"unknown action", "/api/apps/org.example.App/explode", nil, http.StatusBadRequest, "unknown action"},
		{"unknown app", "/api/apps/org.example.Gone/halt", nil, http.StatusNotFound, "unknown application"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, e := newTestServer(t, &fakeExecutor{deny: tc.deny})
			rec := do(e, http.MethodPost, tc.target)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.wantText) {
				t.Fatalf("expected %q in %s", tc.wantText, rec.Body.String())
			}
		})
	}
}

func TestActionFansOutToEveryMember(t *testing.T) {
	exec := &fakeExecutor{}
	_, e := newTestServer(t, exec)
	rec := do(e, http.MethodPost, "/api/apps/org.example.App/halt")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body actionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tried != 2 || body.Succeeded != 2 || len(exec.pids) != 2 || exec.pids[0] != 10 || exec.pids[1] != 11 {
		t.Fatalf("unexpected fan-out %+v %v", body, exec.pids)
	}
}

func TestSendEventKeepsSelectionByIdentity(t *testing.T) {
	s, e := newTestServer(t, &fakeExecutor{})
	ev := s.orch.Last()

	rec := httptest.NewRecorder()
	if err := s.sendEvent(context.Background(), echo.NewResponse(rec, e), ev, "org.example.App"); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: host\n") || !strings.Contains(out, "event: apps\nid: "+ev.ID.String()) {
		t.Fatalf("unexpected stream %q", out)
	}
	if !strings.Contains(out, `<tr class="selected" data-key="org.example.App"`) {
		t.Fatalf("selected row not marked: %q", out)
	}

	rec = httptest.NewRecorder()
	if err := s.sendEvent(context.Background(), echo.NewResponse(rec, e), ev, "org.example.Gone"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if strings.Contains(rec.Body.String(), `class="selected"`) {
		t.Fatalf("a vanished selection must be cleared")
	}
}

func TestSendEventReportsFailedRefresh(t *testing.T) {
	s, e := newTestServer(t, &fakeExecutor{})
	ev := s.orch.Last()
	ev.Err = errors.New("collector went away\nbadly")

	rec := httptest.NewRecorder()
	if err := s.sendEvent(context.Background(), echo.NewResponse(rec, e), ev, ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := "event: refresh-failed\nid: " + ev.ID.String() + "\ndata: Refresh failed: collector went away badly\n\n"
	if rec.Body.String() != want {
		t.Fatalf("expected %q, got %q", want, rec.Body.String())
	}
}

func TestRootRendersIndex(t *testing.T) {
	_, e := newTestServer(t, &fakeExecutor{})
	rec := do(e, http.MethodGet, "/?selected=org.example.App")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "selected=org.example.App") {
		t.Fatalf("unexpected index %d %q", rec.Code, rec.Body.String())
	}
}

func TestAPIAppDetail(t *testing.T) {
	_, e := newTestServer(t, &fakeExecutor{})
	rec := do(e, http.MethodGet, "/api/apps/org.example.App")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var info apps.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != "org.example.App" || info.ProcessesAmount != 2 || len(info.Processes) != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
	for i, pid := range []int32{10, 11} {
		p := info.Processes[i]
		if p.PID != pid || p.Name != "example" || p.Cmdline != "/usr/bin/example --pid" {
			t.Fatalf("unexpected member %d: %+v", i, p)
		}
		if want := testBoot.Add(time.Duration(pid) * time.Second); !p.RunningSince.Equal(want) {
			t.Fatalf("pid %d running since %v, want %v", pid, p.RunningSince, want)
		}
	}

	rec = do(e, http.MethodGet, "/api/apps/@system")
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil || !info.System || len(info.Processes) != 1 {
		t.Fatalf("unexpected system detail %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/api/apps/org.example.Gone"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAPIProcesses(t *testing.T) {
	_, e := newTestServer(t, &fakeExecutor{})
	rec := do(e, http.MethodGet, "/api/processes")
	var all []apps.ProcessInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 3 || all[0].PID != 1 || all[2].PID != 11 {
		t.Fatalf("unexpected processes %+v", all)
	}

	rec = do(e, http.MethodGet, "/api/processes/10")
	var one apps.ProcessInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil || one.PID != 10 || one.MemoryUsage != 1<<20 {
		t.Fatalf("unexpected process %d %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		target string
		want   int
	}{
		{"/api/processes/99", http.StatusNotFound},
		{"/api/processes/abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(e, http.MethodGet, tc.target); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.want, rec.Code)
		}
	}
}

func TestSendEventIncludesSelectedDetail(t *testing.T) {
	s, e := newTestServer(t, &fakeExecutor{})
	ev := s.orch.Last()

	rec := httptest.NewRecorder()
	if err := s.sendEvent(context.Background(), echo.NewResponse(rec, e), ev, "org.example.App"); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: detail\nid: "+ev.ID.String()) || !strings.Contains(out, "<td>11</td>") {
		t.Fatalf("detail missing: %q", out)
	}

	rec = httptest.NewRecorder()
	if err := s.sendEvent(context.Background(), echo.NewResponse(rec, e), ev, ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if want := "event: detail\nid: " + ev.ID.String() + "\ndata: \n\n"; !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("expected empty detail, got %q", rec.Body.String())
	}
}

func TestStaticScriptServed(t *testing.T) {
	_, e := newTestServer(t, &fakeExecutor{})
	rec := do(e, http.MethodGet, "/static/apptop.js")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "confirm(") {
		t.Fatalf("unexpected script %d %q", rec.Code, rec.Body.String())
	}
}
