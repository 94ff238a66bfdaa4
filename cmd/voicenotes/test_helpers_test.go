package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"voicenotes/internal/config"
	"voicenotes/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config file backed by per-test directories and
// media stubs. apiURL may be empty for commands that never reach Telegram.
func setupCLITestEnv(t *testing.T, apiURL string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs(), testsupport.WithAPIURL(apiURL))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Chdir(base)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg, true)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, withToken bool) {
	t.Helper()
	var b strings.Builder
	b.WriteString("[telegram]\n")
	if withToken {
		fmt.Fprintf(&b, "token = %q\n", cfg.Telegram.Token)
	}
	if chat, ok := cfg.TargetChat(); ok {
		fmt.Fprintf(&b, "chat_id = %d\n", chat)
	}
	fmt.Fprintf(&b, "api_url = %q\nrequest_timeout = 5\n", cfg.Telegram.APIURL)
	fmt.Fprintf(&b, "\n[paths]\nrecordings_dir = %q\nstate_dir = %q\nlog_dir = %q\ntemp_dir = %q\n",
		cfg.Paths.RecordingsDir, cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.TempDir)
	fmt.Fprintf(&b, "\n[audio]\nffmpeg_binary = %q\nffprobe_binary = %q\n",
		cfg.Audio.FFmpegBinary, cfg.Audio.FFprobeBinary)
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		fmt.Fprintf(&b, "\n[notifications]\nntfy_topic = %q\nrequest_timeout = 5\n", topic)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// fakeBotAPI serves the handful of Bot API methods a pass uses. Updates are
// filtered by the requested offset like the real getUpdates.
type fakeBotAPI struct {
	mu      sync.Mutex
	updates []fakeUpdate
	calls   map[string]int
	nextID  int64
}

type fakeUpdate struct {
	id   int64
	body string
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	api := &fakeBotAPI{calls: map[string]int{}, nextID: 77}
	server := httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(server.Close)
	return api, server
}

func (f *fakeBotAPI) addReaction(updateID, messageID int64, emoji string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fakeUpdate{
		id: updateID,
		body: fmt.Sprintf(`{"update_id":%d,"message_reaction":{"chat":{"id":%d,"type":"private"},"message_id":%d,"date":0,"old_reaction":[],"new_reaction":[{"type":"emoji","emoji":%q}]}}`,
			updateID, testsupport.TestChatID, messageID, emoji),
	})
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getUpdates":
		var req struct {
			Offset int64 `json:"offset"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		parts := make([]string, 0, len(f.updates))
		for _, update := range f.updates {
			if update.id >= req.Offset {
				parts = append(parts, update.body)
			}
		}
		fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, strings.Join(parts, ","))
	case "sendVoice":
		id := f.nextID
		f.nextID++
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%d,"type":"private"}}}`,
			id, testsupport.TestChatID)
	case "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Notes","username":"notes_bot"}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}
