package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/workoutscan/internal/config"
	"github.com/ashureev/workoutscan/internal/vision"
)

type stubCompleter struct {
	content string
	err     error
	got     vision.Request
}

func (s *stubCompleter) Complete(_ context.Context, req vision.Request) (*vision.Result, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &vision.Result{Content: s.content, FinishReason: "stop"}, nil
}

func testDeps(stub *stubCompleter, gotCfg *config.VisionConfig) deps {
	return deps{
		loadEnv: func() error { return nil },
		newCompleter: func(cfg config.VisionConfig, _ *slog.Logger) vision.Completer {
			if gotCfg != nil {
				*gotCfg = cfg
			}
			return stub
		},
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hand_written_workout.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func runCmd(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootPrintsResponseVerbatim(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	payload := `{"date":"2024-01-01","name":"My workout","exercises":[]}`
	stub := &stubCompleter{content: payload}

	out, err := runCmd(t, testDeps(stub, nil), writeImage(t), "--date", "2024-01-01")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if out != payload {
		t.Fatalf("Expected output %q, got %q", payload, out)
	}
	if !strings.Contains(stub.got.Prompt, "2024-01-01") {
		t.Errorf("Expected prompt to contain the --date value")
	}
}

func TestRootPreservesWhitespace(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	payload := "  {\"exercises\":[]}\n\n"
	stub := &stubCompleter{content: payload}

	out, err := runCmd(t, testDeps(stub, nil), writeImage(t))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != payload {
		t.Fatalf("Expected output %q, got %q", payload, out)
	}
}

func TestRootFaultPrintsNothing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	remoteErr := errors.New("503 service unavailable")
	stub := &stubCompleter{err: remoteErr}

	out, err := runCmd(t, testDeps(stub, nil), writeImage(t))
	if !errors.Is(err, remoteErr) {
		t.Fatalf("Expected remote error, got %v", err)
	}
	if out != "" {
		t.Fatalf("Expected no output, got %q", out)
	}
}

func TestRootMissingImage(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	stub := &stubCompleter{content: "{}"}

	out, err := runCmd(t, testDeps(stub, nil), filepath.Join(t.TempDir(), "nope.jpg"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected not-exist error, got %v", err)
	}
	if out != "" {
		t.Fatalf("Expected no output, got %q", out)
	}
}

func TestRootMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	stub := &stubCompleter{content: "{}"}

	_, err := runCmd(t, testDeps(stub, nil), writeImage(t))
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestRootStripFences(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	stub := &stubCompleter{content: "```json\n{\"exercises\":[]}\n```"}

	out, err := runCmd(t, testDeps(stub, nil), writeImage(t), "--strip-fences")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != `{"exercises":[]}` {
		t.Fatalf("Unexpected output %q", out)
	}
}

func TestRootFlagOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	stub := &stubCompleter{content: "{}"}
	var gotCfg config.VisionConfig

	_, err := runCmd(t, testDeps(stub, &gotCfg), writeImage(t),
		"--model", "llava", "--max-tokens", "200", "--base-url", "http://localhost:11434/v1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if stub.got.Model != "llava" || stub.got.MaxTokens != 200 {
		t.Errorf("Unexpected request params %+v", stub.got)
	}
	if gotCfg.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("Unexpected base URL %q", gotCfg.BaseURL)
	}
}

func TestRootRejectsBadDate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	stub := &stubCompleter{content: "{}"}

	_, err := runCmd(t, testDeps(stub, nil), writeImage(t), "--date", "01/02/2024")
	if err == nil {
		t.Fatal("Expected error for malformed --date")
	}
	if stub.got.Model != "" {
		t.Fatal("Expected no remote call")
	}
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ vision.Request) (*vision.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRootTimeoutFlag(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	d := deps{
		loadEnv: func() error { return nil },
		newCompleter: func(config.VisionConfig, *slog.Logger) vision.Completer {
			return blockingCompleter{}
		},
	}

	out, err := runCmd(t, d, writeImage(t), "--timeout", "20ms")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if out != "" {
		t.Fatalf("Expected no output, got %q", out)
	}
}

func TestRootTimeoutFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VISION_TIMEOUT", "20ms")
	d := deps{
		loadEnv: func() error { return nil },
		newCompleter: func(config.VisionConfig, *slog.Logger) vision.Completer {
			return blockingCompleter{}
		},
	}

	out, err := runCmd(t, d, writeImage(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if out != "" {
		t.Fatalf("Expected no output, got %q", out)
	}
}

func TestRootFlagsOverrideInvalidEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VISION_MAX_TOKENS", "0")
	t.Setenv("IMAGE_PATH", "")
	stub := &stubCompleter{content: "{}"}

	out, err := runCmd(t, testDeps(stub, nil), writeImage(t), "--max-tokens", "500")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "{}" {
		t.Fatalf("Unexpected output %q", out)
	}
	if stub.got.MaxTokens != 500 {
		t.Errorf("Expected max tokens 500, got %d", stub.got.MaxTokens)
	}
}

func TestRootInvalidEnvWithoutOverrideFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VISION_MAX_TOKENS", "0")
	stub := &stubCompleter{content: "{}"}

	_, err := runCmd(t, testDeps(stub, nil), writeImage(t))
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if stub.got.Model != "" {
		t.Fatal("Expected no remote call")
	}
}

func TestExecuteLogsEarlyFailuresAsJSON(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	envErr := errors.New("malformed .env line 3")
	d := deps{
		loadEnv: func() error { return envErr },
		newCompleter: func(config.VisionConfig, *slog.Logger) vision.Completer {
			t.Fatal("Completer must not be built when .env loading fails")
			return nil
		},
	}

	var stderr, stdout bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{writeImage(t)})

	err := execute(context.Background(), cmd, &stderr)
	if !errors.Is(err, envErr) {
		t.Fatalf("Expected .env error, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("Expected no output, got %q", stdout.String())
	}

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Expected JSON log line, got %q: %v", line, err)
		}
	}
	if !strings.Contains(stderr.String(), "Scan failed") {
		t.Fatalf("Expected failure to be logged, got %q", stderr.String())
	}
}
