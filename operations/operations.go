// Package operations maps caller-facing tools onto eval exchanges:
// each operation is a specific code payload sent through the client
// plus light post-processing of the merged result.
package operations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/protocol"
)

// Render flattens a Result into the text a tool caller sees: captured
// output first, then the evaluated values, or the error/trace text for
// failed and timed-out exchanges.
func Render(res *protocol.Result) string {
	switch res.Status {
	case protocol.StatusTimeout:
		if res.Output != "" {
			return "Error: evaluation timed out\n" + res.Output
		}
		return "Error: evaluation timed out"
	case protocol.StatusError:
		var b strings.Builder
		if res.Err != "" {
			b.WriteString("Error: ")
			b.WriteString(strings.TrimRight(res.Err, "\n"))
		}
		if res.RootEx != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("Exception: ")
			b.WriteString(res.RootEx)
		}
		if b.Len() == 0 {
			b.WriteString("Error: evaluation failed")
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(res.Output)
	if len(res.Values) == 0 {
		if b.Len() == 0 {
			return "No result"
		}
		return b.String()
	}
	b.WriteString(strings.Join(res.Values, "\n"))
	return b.String()
}

// EvalCode evaluates a code string and renders the outcome.
func EvalCode(ctx context.Context, c *client.Client, code string) (string, error) {
	res, err := c.Eval(ctx, code)
	if err != nil {
		return "", err
	}
	return Render(res), nil
}

// Doc fetches the docstring for a symbol.
func Doc(ctx context.Context, c *client.Client, symbol string) (string, error) {
	return EvalCode(ctx, c, fmt.Sprintf("(doc %s)", symbol))
}

// ListNamespaces lists all loaded namespaces, sorted, one per line.
func ListNamespaces(ctx context.Context, c *client.Client) (string, error) {
	return EvalCode(ctx, c, `(str/join "\n" (sort (map str (all-ns))))`)
}

// NamespaceVars lists the public vars and macros of one namespace.
func NamespaceVars(ctx context.Context, c *client.Client, namespace string) (string, error) {
	code := fmt.Sprintf(`(let [ns-vars (->> (ns-publics '%[1]s)
                               (sort-by key)
                               (map (fn [[k v]] (str k))))
              ns-macros (->> (ns-interns '%[1]s)
                            (filter (fn [[k v]] (:macro (meta v))))
                            (sort-by key)
                            (map (fn [[k v]] (str k " [macro]"))))]
          (str "Variables in namespace %[1]s:\n"
               (str/join "\n" ns-vars)
               "\n\nMacros in namespace %[1]s:\n"
               (str/join "\n" ns-macros)))`, namespace)
	return EvalCode(ctx, c, code)
}

// CheckConnection evaluates a trivial expression and reports whether
// the server answered it correctly, with the round-trip latency.
func CheckConnection(ctx context.Context, c *client.Client) (bool, time.Duration, error) {
	start := time.Now()
	res, err := c.Eval(ctx, "(+ 1 1)")
	if err != nil {
		return false, 0, err
	}
	latency := time.Since(start)
	ok := res.Status == protocol.StatusOK && len(res.Values) > 0 && res.Values[0] == "2"
	return ok, latency, nil
}
