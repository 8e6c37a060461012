package operations

import (
	"context"
	"strings"
	"testing"

	"github.com/zylisp/nrepl/bencode"
	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/nrepltest"
	"github.com/zylisp/nrepl/protocol"
	"github.com/zylisp/nrepl/transport"
)

func startClient(t *testing.T, script func(id, code string) []bencode.Value) *client.Client {
	t.Helper()
	srv := nrepltest.NewServer(nrepltest.CloneAware(func(req bencode.Value) []bencode.Value {
		return script(nrepltest.RequestID(req), nrepltest.RequestCode(req))
	}))
	if err := srv.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(srv.Stop)

	conn, err := transport.Dial(context.Background(), srv.Addr(), transport.Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := client.New(conn)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		res  protocol.Result
		want string
	}{
		{
			name: "single value",
			res:  protocol.Result{Values: []string{"3"}, Status: protocol.StatusOK},
			want: "3",
		},
		{
			name: "output before value",
			res:  protocol.Result{Values: []string{"nil"}, Output: "hello\n", Status: protocol.StatusOK},
			want: "hello\nnil",
		},
		{
			name: "no value",
			res:  protocol.Result{Status: protocol.StatusOK},
			want: "No result",
		},
		{
			name: "error text",
			res:  protocol.Result{Err: "ZeroDivisionError\n", Status: protocol.StatusError},
			want: "Error: ZeroDivisionError",
		},
		{
			name: "error with trace",
			res: protocol.Result{
				Err:    "boom",
				RootEx: "Traceback: boom at line 1",
				Status: protocol.StatusError,
			},
			want: "Error: boom\nException: Traceback: boom at line 1",
		},
		{
			name: "timeout keeps partial output",
			res:  protocol.Result{Output: "ran this far\n", Status: protocol.StatusTimeout},
			want: "Error: evaluation timed out\nran this far\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(&tt.res); got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocBuildsDocForm(t *testing.T) {
	sent := make(chan string, 1)
	c := startClient(t, func(id, code string) []bencode.Value {
		sent <- code
		return []bencode.Value{
			nrepltest.ValueFrame(id, "", "\"docstring\""),
			nrepltest.DoneFrame(id),
		}
	})

	out, err := Doc(context.Background(), c, "map")
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	if code := <-sent; code != "(doc map)" {
		t.Errorf("sent code %q", code)
	}
	if out != "\"docstring\"" {
		t.Errorf("Doc = %q", out)
	}
}

func TestListNamespacesPayload(t *testing.T) {
	sent := make(chan string, 1)
	c := startClient(t, func(id, code string) []bencode.Value {
		sent <- code
		return []bencode.Value{
			nrepltest.ValueFrame(id, "", "user\ncore"),
			nrepltest.DoneFrame(id),
		}
	})

	out, err := ListNamespaces(context.Background(), c)
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	if code := <-sent; !strings.Contains(code, "all-ns") {
		t.Errorf("sent code %q", code)
	}
	if out != "user\ncore" {
		t.Errorf("ListNamespaces = %q", out)
	}
}

func TestNamespaceVarsPayload(t *testing.T) {
	sent := make(chan string, 1)
	c := startClient(t, func(id, code string) []bencode.Value {
		sent <- code
		return []bencode.Value{
			nrepltest.ValueFrame(id, "", "x\ny [macro]"),
			nrepltest.DoneFrame(id),
		}
	})

	if _, err := NamespaceVars(context.Background(), c, "my.ns"); err != nil {
		t.Fatalf("NamespaceVars: %v", err)
	}
	code := <-sent
	if !strings.Contains(code, "(ns-publics 'my.ns)") {
		t.Errorf("sent code %q", code)
	}
	if !strings.Contains(code, "(ns-interns 'my.ns)") {
		t.Errorf("sent code %q", code)
	}
}

func TestCheckConnection(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c := startClient(t, func(id, code string) []bencode.Value {
			return []bencode.Value{
				nrepltest.ValueFrame(id, "", "2"),
				nrepltest.DoneFrame(id),
			}
		})
		ok, latency, err := CheckConnection(context.Background(), c)
		if err != nil {
			t.Fatalf("CheckConnection: %v", err)
		}
		if !ok {
			t.Error("expected healthy")
		}
		if latency <= 0 {
			t.Errorf("latency = %v", latency)
		}
	})

	t.Run("wrong answer", func(t *testing.T) {
		c := startClient(t, func(id, code string) []bencode.Value {
			return []bencode.Value{
				nrepltest.ValueFrame(id, "", "3"),
				nrepltest.DoneFrame(id),
			}
		})
		ok, _, err := CheckConnection(context.Background(), c)
		if err != nil {
			t.Fatalf("CheckConnection: %v", err)
		}
		if ok {
			t.Error("expected unhealthy on wrong answer")
		}
	})
}
