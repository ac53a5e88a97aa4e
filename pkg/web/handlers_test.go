package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openquad/go-dogctl/pkg/executor"
	"github.com/openquad/go-dogctl/pkg/task"
)

type fakeService struct {
	submitErr error
	stopErr   error
	submitted []executor.Payload
	tasks     map[string]task.Task
	lines     []task.Line
	stopped   int
}

func (f *fakeService) Submit(p executor.Payload) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, p)
	return "task123", nil
}

func (f *fakeService) Task(id string) (task.Task, bool) {
	t, ok := f.tasks[id]
	return t, ok
}

func (f *fakeService) EmergencyStop() error {
	f.stopped++
	return f.stopErr
}

func (f *fakeService) Logs(since uint64) ([]task.Line, uint64) {
	var out []task.Line
	for _, l := range f.lines {
		if l.Seq >= since {
			out = append(out, l)
		}
	}
	return out, uint64(len(f.lines))
}

func doRequest(t *testing.T, s *Server, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, doc
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeService{})
	resp, doc := doRequest(t, s, "GET", "/health", "")
	if resp.StatusCode != http.StatusOK || doc["ok"] != true {
		t.Errorf("status = %d, doc = %v", resp.StatusCode, doc)
	}
}

func TestExecuteAcceptsPayload(t *testing.T) {
	f := &fakeService{}
	s := NewServer(f)
	resp, doc := doRequest(t, s, "POST", "/execute",
		`{"actions":[{"code":"0x21010202"},{"code":"0x21010130","param":1.5,"semantic":"move_x"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if doc["task_id"] != "task123" {
		t.Errorf("task_id = %v", doc["task_id"])
	}
	if len(f.submitted) != 1 || len(f.submitted[0].Actions) != 2 {
		t.Errorf("submitted = %+v", f.submitted)
	}
	if f.submitted[0].Actions[1].Semantic != "move_x" {
		t.Errorf("semantic not preserved: %+v", f.submitted[0].Actions[1])
	}
}

func TestExecuteRejectsBadBodies(t *testing.T) {
	s := NewServer(&fakeService{})
	for _, body := range []string{"", "not json", `{"actions":[]}`, `{}`} {
		resp, doc := doRequest(t, s, "POST", "/execute", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
		if doc["ok"] != false {
			t.Errorf("body %q: ok = %v, want false", body, doc["ok"])
		}
	}
}

func TestExecuteQueueFull(t *testing.T) {
	s := NewServer(&fakeService{submitErr: errors.New("queue full")})
	resp, _ := doRequest(t, s, "POST", "/execute", `{"actions":[{"code":"0x21010202"}]}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestResult(t *testing.T) {
	f := &fakeService{tasks: map[string]task.Task{
		"abc": {ID: "abc", Status: task.StatusDone},
	}}
	s := NewServer(f)

	resp, _ := doRequest(t, s, "GET", "/result", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing task_id: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doRequest(t, s, "GET", "/result?task_id=missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown task: status = %d, want 404", resp.StatusCode)
	}

	resp, doc := doRequest(t, s, "GET", "/result?task_id=abc", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := doc["task"].(map[string]any)
	if got["task_id"] != "abc" || got["status"] != "done" {
		t.Errorf("task = %v", got)
	}
}

func TestEmergencyStopAlways200(t *testing.T) {
	f := &fakeService{}
	s := NewServer(f)
	resp, doc := doRequest(t, s, "POST", "/emergency_stop", "")
	if resp.StatusCode != http.StatusOK || doc["ok"] != true {
		t.Errorf("status = %d, doc = %v", resp.StatusCode, doc)
	}
	if f.stopped != 1 {
		t.Errorf("stop calls = %d, want 1", f.stopped)
	}

	f.stopErr = errors.New("socket gone")
	resp, doc = doRequest(t, s, "POST", "/emergency_stop", "")
	if resp.StatusCode != http.StatusOK || doc["ok"] != true {
		t.Errorf("with error: status = %d, doc = %v", resp.StatusCode, doc)
	}
	if doc["warning"] == nil {
		t.Error("expected a warning when cleanup failed")
	}
}

func TestLogs(t *testing.T) {
	f := &fakeService{lines: []task.Line{
		{Seq: 0, Text: "a"}, {Seq: 1, Text: "b"}, {Seq: 2, Text: "c"},
	}}
	s := NewServer(f)

	resp, doc := doRequest(t, s, "GET", "/logs?since=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if doc["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2", doc["count"])
	}
	if doc["since"].(float64) != 1 {
		t.Errorf("since = %v, want the echoed request value 1", doc["since"])
	}
	if doc["next"].(float64) != 3 {
		t.Errorf("next = %v, want 3", doc["next"])
	}

	resp, _ = doRequest(t, s, "GET", "/logs?since=x", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownPathIsJSON404(t *testing.T) {
	s := NewServer(&fakeService{})
	resp, doc := doRequest(t, s, "GET", "/nope", "")
	if resp.StatusCode != http.StatusNotFound || doc["ok"] != false {
		t.Errorf("status = %d, doc = %v", resp.StatusCode, doc)
	}
}
