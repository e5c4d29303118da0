// Command agenthub is the AgentHub CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentichub/agenthub/internal/version"
)

const defaultServer = "http://localhost:8080"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "agenthub server URL")
		token     = flag.String("token", os.Getenv("AGENTHUB_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "agents":
		err = cli.cmdAgents(rest)
	case "agent":
		err = cli.cmdAgent(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "upload":
		err = cli.cmdUpload(rest)
	case "ai":
		err = cli.cmdAI(rest)
	case "stats":
		err = cli.cmdStats(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `agenthub — AgentHub CLI

Usage:
  agenthub [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8080)
  --token   <token>  JWT auth token (or $AGENTHUB_TOKEN)

Commands:
  version                      print version
  status                       show server status
  login <user> <pass>          obtain a JWT token
  agents                       list agents
  agent start|stop|restart|delete <id>
                               control an agent
  agent stats <id>             show agent metrics
  task submit <agent> <op>     submit a task (reads JSON payload on stdin)
  task result <agent> <task>   fetch a task result
  upload <agent> <file>        upload a document for text extraction
  ai generate <prompt...>      generate text with the configured provider
  stats                        show system statistics
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("agenthub %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func (c *Client) do(req *http.Request, v any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

// post performs a POST with a JSON body and decodes the response into v
// (both may be nil).
func (c *Client) post(path string, body any, v any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *Client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %v\n", result["status"])
	fmt.Printf("version: %v\n", result["version"])
	fmt.Printf("uptime:  %.0fs\n", floatVal(result["uptime_seconds"]))
	return nil
}

// --- login ---

func (c *Client) cmdLogin(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: agenthub login <user> <pass>")
	}
	var result map[string]string
	body := map[string]string{"username": args[0], "password": args[1]}
	if err := c.post("/api/auth/login", body, &result); err != nil {
		return err
	}
	fmt.Println(result["token"])
	return nil
}

// --- agents ---

func (c *Client) cmdAgents(_ []string) error {
	var agents []map[string]any
	if err := c.get("/api/agents", &agents); err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("no agents")
		return nil
	}
	fmt.Printf("%-36s %-24s %-10s %-8s\n", "ID", "NAME", "STATUS", "QUEUED")
	fmt.Println(strings.Repeat("-", 82))
	for _, a := range agents {
		fmt.Printf("%-36s %-24s %-10s %-8v\n",
			strVal(a["id"]),
			truncate(strVal(a["name"]), 23),
			strVal(a["status"]),
			a["tasks_in_queue"],
		)
	}
	return nil
}

// --- agent subcommands ---

func (c *Client) cmdAgent(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: agenthub agent <start|stop|restart|delete|stats> <id>")
		os.Exit(1)
	}
	sub, id := args[0], args[1]
	switch sub {
	case "start":
		if err := c.post("/api/agents/"+id+"/start", nil, nil); err != nil {
			return err
		}
		fmt.Printf("agent %s started\n", id)
	case "stop":
		if err := c.post("/api/agents/"+id+"/stop", nil, nil); err != nil {
			return err
		}
		fmt.Printf("agent %s stopped\n", id)
	case "restart":
		if err := c.post("/api/agents/"+id+"/restart", nil, nil); err != nil {
			return err
		}
		fmt.Printf("agent %s restarted\n", id)
	case "delete":
		if err := c.delete("/api/agents/" + id); err != nil {
			return err
		}
		fmt.Printf("agent %s deleted\n", id)
	case "stats":
		var result map[string]any
		if err := c.get("/api/agents/"+id+"/stats", &result); err != nil {
			return err
		}
		return printJSON(result)
	default:
		return fmt.Errorf("unknown agent subcommand: %s", sub)
	}
	return nil
}

// --- tasks ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: agenthub task <submit|result> ...")
		os.Exit(1)
	}
	switch args[0] {
	case "submit":
		if len(args) < 3 {
			return fmt.Errorf("usage: agenthub task submit <agent-id> <operation>")
		}
		agentID, op := args[1], args[2]

		payload := map[string]any{}
		if stat, _ := os.Stdin.Stat(); stat != nil && stat.Mode()&os.ModeCharDevice == 0 {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &payload); err != nil {
					return fmt.Errorf("parse payload: %w", err)
				}
			}
		}

		var result map[string]string
		body := map[string]any{"name": op, "payload": payload}
		if err := c.post("/api/agents/"+agentID+"/tasks", body, &result); err != nil {
			return err
		}
		fmt.Printf("task %s queued\n", result["task_id"])
	case "result":
		if len(args) < 3 {
			return fmt.Errorf("usage: agenthub task result <agent-id> <task-id>")
		}
		var result map[string]any
		if err := c.get("/api/agents/"+args[1]+"/tasks/"+args[2], &result); err != nil {
			return err
		}
		return printJSON(result)
	default:
		return fmt.Errorf("unknown task subcommand: %s", args[0])
	}
	return nil
}

// --- upload ---

func (c *Client) cmdUpload(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: agenthub upload <agent-id> <file>")
	}
	agentID, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/agents/"+agentID+"/documents", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result map[string]string
	if err := c.do(req, &result); err != nil {
		return err
	}
	fmt.Printf("uploaded %s, task %s\n", result["file_name"], result["task_id"])
	return nil
}

// --- ai ---

func (c *Client) cmdAI(args []string) error {
	if len(args) < 2 || args[0] != "generate" {
		return fmt.Errorf("usage: agenthub ai generate <prompt...>")
	}
	prompt := strings.Join(args[1:], " ")
	var result map[string]string
	if err := c.post("/api/ai/generate", map[string]string{"prompt": prompt}, &result); err != nil {
		return err
	}
	fmt.Println(result["text"])
	return nil
}

// --- stats ---

func (c *Client) cmdStats(_ []string) error {
	var result map[string]any
	if err := c.get("/api/stats", &result); err != nil {
		return err
	}
	return printJSON(result)
}

// --- helpers ---

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func floatVal(v any) float64 {
	f, _ := v.(float64)
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
