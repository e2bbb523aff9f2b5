package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/ui"
)

type api struct {
	mu     sync.Mutex
	todos  []model.Todo
	nextID int
	down   bool
}

func (a *api) handle(rc *fasthttp.RequestCtx) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down {
		rc.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}
	reply := func(status int, v any) {
		b, _ := json.Marshal(v)
		rc.SetStatusCode(status)
		rc.SetContentType("application/json")
		rc.SetBody(b)
	}

	rest := strings.TrimPrefix(string(rc.Path()), "/todos")
	if rest == "" {
		switch string(rc.Method()) {
		case fasthttp.MethodGet:
			reply(200, a.todos)
		case fasthttp.MethodPost:
			var p model.Patch
			_ = json.Unmarshal(rc.PostBody(), &p)
			t := p.Apply(model.Todo{ID: a.nextID})
			a.nextID++
			a.todos = append([]model.Todo{t}, a.todos...)
			reply(201, t)
		}
		return
	}
	id, _ := strconv.Atoi(strings.TrimPrefix(rest, "/"))
	i := model.IndexOf(a.todos, id)
	if i < 0 {
		reply(404, map[string]any{})
		return
	}
	switch string(rc.Method()) {
	case fasthttp.MethodGet:
		reply(200, a.todos[i])
	case fasthttp.MethodPatch:
		var p model.Patch
		_ = json.Unmarshal(rc.PostBody(), &p)
		a.todos[i] = p.Apply(a.todos[i])
		reply(200, a.todos[i])
	case fasthttp.MethodDelete:
		a.todos = append(a.todos[:i], a.todos[i+1:]...)
		reply(200, map[string]any{})
	}
}

func (a *api) setDown(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = v
}

type harness struct {
	api *api
	hc  *fasthttp.Client
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	ui.SetTheme("mono")
	t.Cleanup(func() { ui.SetTheme("classic") })

	a := &api{
		nextID: 201,
		todos: []model.Todo{
			{ID: 1, UserID: 1, Title: "Buy milk"},
			{ID: 2, UserID: 1, Title: "Walk dog", Completed: true},
		},
	}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: a.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return &harness{
		api: a,
		hc:  &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }},
		dir: t.TempDir(),
	}
}

func (h *harness) run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	base := []string{"-api", "http://todos.test", "-dir", h.dir, "-log-file="}
	code = Run(context.Background(), append(base, args...), Options{
		Stdout:     &out,
		Stderr:     &errOut,
		HTTPClient: h.hc,
	})
	return code, out.String(), errOut.String()
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseID(%q): got %d, %v", tt.in, got, err)
		}
		if err != nil && !model.IsValidation(err) {
			t.Errorf("parseID(%q): want ValidationError, got %T", tt.in, err)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no subcommand", nil, ExitUsage},
		{"unknown", []string{"frobnicate"}, ExitUsage},
		{"help", []string{"help"}, ExitOK},
		{"add without title", []string{"add"}, ExitUsage},
		{"add blank title", []string{"add", "  "}, ExitUsage},
		{"done not a number", []string{"done", "x"}, ExitUsage},
		{"rm two ids", []string{"rm", "1", "2"}, ExitUsage},
		{"edit without title", []string{"edit", "1"}, ExitUsage},
		{"list bad status", []string{"list", "-status", "maybe"}, ExitUsage},
		{"bad cache flag", []string{"-cache", "redis", "list"}, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := h.run(tt.args...); code != tt.want {
				t.Errorf("exit code: got %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCommandsAgainstAPI(t *testing.T) {
	h := newHarness(t)

	code, out, _ := h.run("list")
	if code != ExitOK || !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Walk dog") {
		t.Fatalf("list: code=%d out=\n%s", code, out)
	}

	code, out, _ = h.run("list", "-status", "incomplete")
	if code != ExitOK || strings.Contains(out, "Walk dog") {
		t.Errorf("list incomplete: code=%d out=\n%s", code, out)
	}

	if code, out, _ = h.run("add", "Read", "book"); code != ExitOK || !strings.Contains(out, "added #201 Read book") {
		t.Errorf("add: code=%d out=%q", code, out)
	}
	if code, out, _ = h.run("done", "1"); code != ExitOK || !strings.Contains(out, "#1 marked completed") {
		t.Errorf("done: code=%d out=%q", code, out)
	}
	if code, out, _ = h.run("edit", "201", "Read", "two", "books"); code != ExitOK || !strings.Contains(out, "Read two books") {
		t.Errorf("edit: code=%d out=%q", code, out)
	}
	if code, out, _ = h.run("rm", "2"); code != ExitOK || !strings.Contains(out, "removed #2") {
		t.Errorf("rm: code=%d out=%q", code, out)
	}
	if code, out, _ = h.run("show", "201"); code != ExitOK || !strings.Contains(out, "User ID: 1") {
		t.Errorf("show: code=%d out=\n%s", code, out)
	}

	h.api.mu.Lock()
	got := append([]model.Todo(nil), h.api.todos...)
	h.api.mu.Unlock()
	want := []model.Todo{
		{ID: 201, UserID: 1, Title: "Read two books"},
		{ID: 1, UserID: 1, Title: "Buy milk", Completed: true},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("server state: got %+v", got)
	}
}

func TestMissingIDExitsWithError(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("done", "99")
	if code != ExitError || !strings.Contains(errOut, "not found") {
		t.Errorf("done 99: code=%d stderr=%q", code, errOut)
	}
	if code, _, _ := h.run("show", "99"); code != ExitError {
		t.Errorf("show 99: code=%d", code)
	}
}

func TestOfflineListUsesCache(t *testing.T) {
	h := newHarness(t)
	if code, _, _ := h.run("list"); code != ExitOK {
		t.Fatalf("warm cache: code=%d", code)
	}

	h.api.setDown(true)
	code, out, errOut := h.run("list")
	if code != ExitOK {
		t.Fatalf("offline list: code=%d stderr=%q", code, errOut)
	}
	if !strings.Contains(errOut, "offline") {
		t.Errorf("stderr: got %q", errOut)
	}
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "[cached]") {
		t.Errorf("stdout:\n%s", out)
	}

	// mutations still fail while the API is down
	if code, _, _ := h.run("done", "1"); code != ExitError {
		t.Errorf("offline done: code=%d", code)
	}
}

func TestGroupedList(t *testing.T) {
	h := newHarness(t)
	code, out, _ := h.run("-group", "list")
	if code != ExitOK {
		t.Fatalf("code=%d", code)
	}
	p, d := strings.Index(out, "Pending"), strings.Index(out, "Done")
	if p < 0 || d < p || strings.Index(out, "Walk dog") < d {
		t.Errorf("grouped output:\n%s", out)
	}
}
