// Package lifecycle tests the demo shop binary as a subprocess with real HTTP
// requests. Emails are read back from the mock mailer's outbox directory.
package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"pgregory.net/rapid"
)

// =============================================================================
// Test Fixture: Single server for all tests
// =============================================================================

var (
	testServer   *serverFixture
	testOnce     sync.Once
	testCleanup  func()
	testStartErr error
)

const testDatabaseKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 64 hex chars = 32 bytes

type serverFixture struct {
	cmd     *exec.Cmd
	baseURL string
	port    int
	logs    *logCapture
	outbox  *emailOutbox
	dataDir string
	dbPath  string
}

type logCapture struct {
	mu     sync.Mutex
	lines  []string
	notify chan struct{}
}

func newLogCapture() *logCapture {
	return &logCapture{
		lines:  make([]string, 0, 256),
		notify: make(chan struct{}),
	}
}

func (l *logCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := false
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			l.lines = append(l.lines, line)
			added = true
		}
	}
	if added {
		close(l.notify)
		l.notify = make(chan struct{})
	}
	return len(p), nil
}

func (l *logCapture) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]string, len(l.lines))
	copy(cp, l.lines)
	return cp
}

func (l *logCapture) waitCh() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notify
}

func (l *logCapture) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *logCapture) waitForSubstringSince(ctx context.Context, substr string, start int) error {
	cursor := start

	for {
		l.mu.Lock()
		if cursor < 0 {
			cursor = 0
		}
		for i := cursor; i < len(l.lines); i++ {
			if strings.Contains(l.lines[i], substr) {
				l.mu.Unlock()
				return nil
			}
		}
		cursor = len(l.lines)
		waitCh := l.notify
		l.mu.Unlock()

		select {
		case <-waitCh:
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for log line containing %q: %w", substr, ctx.Err())
		}
	}
}

// emailOutbox reads the JSON files the mock mailer writes per email.
type emailOutbox struct {
	dir string
}

type outboxEmailEvent struct {
	Sequence uint64 `json:"sequence"`
	To       string `json:"to"`
	Template string `json:"template"`
	Name     string `json:"name"`
}

func newEmailOutbox(dir string) *emailOutbox {
	return &emailOutbox{dir: dir}
}

func (o *emailOutbox) Cursor() uint64 {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return 0
	}

	var maxSeq uint64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		seq, ok := parseOutboxSequence(entry.Name())
		if ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq
}

// WaitForEmailSince blocks until an email with template reaches to. Each new
// server log line triggers a rescan.
func (o *emailOutbox) WaitForEmailSince(
	ctx context.Context,
	to, template string,
	startSeq uint64,
	logs *logCapture,
) (outboxEmailEvent, error) {
	for {
		waitCh := logs.waitCh()
		event, ok, err := o.findEmailSince(to, template, startSeq)
		if err != nil {
			return outboxEmailEvent{}, err
		}
		if ok {
			return event, nil
		}

		select {
		case <-waitCh:
		case <-ctx.Done():
			return outboxEmailEvent{}, fmt.Errorf("timeout waiting for %s email to %s: %w", template, to, ctx.Err())
		}
	}
}

func (o *emailOutbox) findEmailSince(to, template string, startSeq uint64) (outboxEmailEvent, bool, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return outboxEmailEvent{}, false, nil
		}
		return outboxEmailEvent{}, false, fmt.Errorf("read outbox: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		seq, seqOK := parseOutboxSequence(entry.Name())
		if !seqOK || seq <= startSeq {
			continue
		}

		raw, readErr := os.ReadFile(filepath.Join(o.dir, entry.Name()))
		if readErr != nil {
			continue
		}
		var event outboxEmailEvent
		if unmarshalErr := json.Unmarshal(raw, &event); unmarshalErr != nil {
			continue
		}
		if strings.EqualFold(event.To, to) && event.Template == template {
			return event, true, nil
		}
	}
	return outboxEmailEvent{}, false, nil
}

func parseOutboxSequence(fileName string) (uint64, bool) {
	parts := strings.SplitN(fileName, "-", 2)
	if len(parts) < 2 {
		return 0, false
	}
	var seq uint64
	if _, err := fmt.Sscanf(parts[0], "%d", &seq); err != nil {
		return 0, false
	}
	return seq, true
}

// getServer returns the shared server fixture, starting it if needed.
func getServer(t *testing.T) *serverFixture {
	t.Helper()

	testOnce.Do(func() {
		testServer, testCleanup, testStartErr = startServer(t)
	})
	if testStartErr != nil {
		t.Fatalf("Failed to start lifecycle server fixture: %v", testStartErr)
	}
	if testServer == nil {
		t.Fatalf("Lifecycle server fixture is nil")
	}
	return testServer
}

func TestMain(m *testing.M) {
	code := m.Run()
	if testCleanup != nil {
		testCleanup()
	}
	os.Exit(code)
}

func startServer(t *testing.T) (*serverFixture, func(), error) {
	projectRoot := findProjectRoot()

	dataDir, err := os.MkdirTemp("", "lifecycle-test-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	binary := filepath.Join(dataDir, "demoshop")
	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/demoshop")
	buildCmd.Dir = projectRoot
	buildCmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dataDir)
		return nil, nil, fmt.Errorf("build failed: %w\n%s", err, out)
	}

	port := findFreePort()
	outboxDir := filepath.Join(dataDir, "email-outbox")
	if err := os.MkdirAll(outboxDir, 0o755); err != nil {
		_ = os.RemoveAll(dataDir)
		return nil, nil, fmt.Errorf("failed to create mock email outbox dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "shop.db")
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	logs := newLogCapture()
	outbox := newEmailOutbox(outboxDir)
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binary, "--no-email")
	cmd.Dir = dataDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("LISTEN_ADDR=127.0.0.1:%d", port),
		fmt.Sprintf("BASE_URL=%s", baseURL),
		fmt.Sprintf("DATABASE_PATH=%s", dbPath),
		fmt.Sprintf("DATABASE_KEY=%s", testDatabaseKey),
		fmt.Sprintf("MOCK_EMAIL_OUTBOX_DIR=%s", outboxDir),
		"LOG_LEVEL=debug",
		"RATE_LIMIT_RPS=1000",
		"RATE_LIMIT_BURST=1000",
	)

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.RemoveAll(dataDir)
		return nil, nil, fmt.Errorf("failed to start server: %w", err)
	}

	capture := func(r io.Reader, tag string) {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			logs.Write([]byte(line + "\n"))
			fmt.Println(tag, line)
		}
	}
	go capture(stdout, "[SERVER]")
	go capture(stderr, "[SERVER-ERR]")

	waitCtx, cancelWait := waitContext(t)
	defer cancelWait()
	if err := logs.waitForSubstringSince(waitCtx, "server_ready", 0); err != nil {
		cancel()
		_ = stopProcess(cmd)
		_ = os.RemoveAll(dataDir)
		return nil, nil, fmt.Errorf("%w. logs:\n%s", err, strings.Join(logs.Lines(), "\n"))
	}
	t.Logf("Server started on port %d", port)

	fixture := &serverFixture{
		cmd:     cmd,
		baseURL: baseURL,
		port:    port,
		logs:    logs,
		outbox:  outbox,
		dataDir: dataDir,
		dbPath:  dbPath,
	}

	cleanup := func() {
		cancel()
		_ = stopProcess(cmd)
		_ = os.RemoveAll(dataDir)
	}

	return fixture, cleanup, nil
}

func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root")
		}
		dir = parent
	}
}

func findFreePort() int {
	l, _ := net.Listen("tcp", "127.0.0.1:0")
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitContext(t testing.TB) (context.Context, context.CancelFunc) {
	if tbWithDeadline, ok := any(t).(interface{ Deadline() (time.Time, bool) }); ok {
		if deadline, ok := tbWithDeadline.Deadline(); ok {
			return context.WithDeadline(context.Background(), deadline)
		}
	}
	return context.WithTimeout(context.Background(), 2*time.Minute)
}

func stopProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	_ = cmd.Process.Signal(syscall.SIGTERM)
	return <-done
}

// =============================================================================
// HTTP Client Helper
// =============================================================================

func newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 30 * time.Second,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// fataler is satisfied by both *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func postForm(t fataler, client *http.Client, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := client.PostForm(target, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func get(t fataler, client *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(target)
	if err != nil {
		t.Fatalf("GET %s failed: %v", target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// =============================================================================
// Generators
// =============================================================================

var emailSeq struct {
	sync.Mutex
	n int
}

// genUniqueEmail draws a plausible address and suffixes it so repeated draws
// never collide on the shared server.
func genUniqueEmail() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		local := rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "local")
		domains := []string{"example.com", "test.org", "mail.co.uk", "company.io"}
		domain := domains[rapid.IntRange(0, len(domains)-1).Draw(t, "domainIdx")]

		emailSeq.Lock()
		emailSeq.n++
		n := emailSeq.n
		emailSeq.Unlock()
		return fmt.Sprintf("%s.%d.%d@%s", local, time.Now().UnixNano(), n, domain)
	})
}

func apiAccountForm(name, emailAddr, password string) url.Values {
	return url.Values{
		"name": {name}, "email": {emailAddr}, "password": {password}, "title": {"Mr"},
		"birth_date": {"15"}, "birth_month": {"January"}, "birth_year": {"1990"},
		"firstname": {"John"}, "lastname": {"Doe"}, "company": {"Test Company"},
		"address1": {"123 Test Street"}, "address2": {"Apt 456"}, "country": {"United States"},
		"zipcode": {"90210"}, "state": {"California"}, "city": {"Los Angeles"}, "mobile_number": {"+1234567890"},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestLifecycle_ProductsAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)

	resp, body := get(t, http.DefaultClient, srv.baseURL+"/api/productsList")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(200), gjson.Get(body, "responseCode").Int())
	assert.NotZero(t, gjson.Get(body, "products.#").Int())
	assert.Equal(t, "Blue Top", gjson.Get(body, "products.0.name").String())
}

func TestLifecycle_AccountAPI_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)
	client := newClient()

	rapid.Check(t, func(rt *rapid.T) {
		emailAddr := genUniqueEmail().Draw(rt, "email")
		password := rapid.StringMatching(`[A-Za-z0-9!]{8,20}`).Draw(rt, "password")
		cursor := srv.outbox.Cursor()

		_, body := postForm(rt, client, srv.baseURL+"/api/createAccount", apiAccountForm("Api User", emailAddr, password))
		if code := gjson.Get(body, "responseCode").Int(); code != http.StatusCreated {
			rt.Fatalf("createAccount responseCode = %d, body %s", code, body)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		event, err := srv.outbox.WaitForEmailSince(ctx, emailAddr, "welcome", cursor, srv.logs)
		if err != nil {
			rt.Fatalf("welcome email: %v", err)
		}
		if event.Name != "Api User" {
			rt.Fatalf("welcome email name = %q", event.Name)
		}

		_, body = postForm(rt, client, srv.baseURL+"/api/verifyLogin", url.Values{"email": {emailAddr}, "password": {password}})
		if msg := gjson.Get(body, "message").String(); msg != "User exists!" {
			rt.Fatalf("verifyLogin with the right password: %s", body)
		}
		_, body = postForm(rt, client, srv.baseURL+"/api/verifyLogin", url.Values{"email": {emailAddr}, "password": {password + "x"}})
		if code := gjson.Get(body, "responseCode").Int(); code != http.StatusNotFound {
			rt.Fatalf("verifyLogin with a wrong password: %s", body)
		}

		req, _ := http.NewRequest(http.MethodDelete, srv.baseURL+"/api/deleteAccount",
			strings.NewReader(url.Values{"email": {emailAddr}, "password": {password}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := client.Do(req)
		if err != nil {
			rt.Fatalf("deleteAccount: %v", err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if msg := gjson.GetBytes(raw, "message").String(); msg != "Account deleted!" {
			rt.Fatalf("deleteAccount: %s", raw)
		}
	})
}

func TestLifecycle_SignupAndDeleteThroughPages(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)
	client := newClient()
	emailAddr := fmt.Sprintf("pages.%d@example.com", time.Now().UnixNano())
	cursor := srv.outbox.Cursor()

	resp, body := postForm(t, client, srv.baseURL+"/signup", url.Values{"name": {"John Doe"}, "email": {emailAddr}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Enter Account Information")

	form := url.Values{
		"title": {"Mr"}, "name": {"John Doe"}, "email": {emailAddr}, "password": {"Password123!"},
		"days": {"15"}, "months": {"6"}, "years": {"1990"}, "newsletter": {"1"}, "optin": {"1"},
		"first_name": {"John"}, "last_name": {"Doe"}, "company": {"Test Company"},
		"address1": {"123 Test Street"}, "address2": {"Apt 456"}, "country": {"United States"},
		"state": {"California"}, "city": {"Los Angeles"}, "zipcode": {"90210"}, "mobile_number": {"+1234567890"},
	}
	resp, _ = postForm(t, client, srv.baseURL+"/create_account", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/account_created", resp.Header.Get("Location"))

	_, body = get(t, client, srv.baseURL+"/")
	assert.Contains(t, body, "Logged in as <b>John Doe</b>")

	resp, body = get(t, client, srv.baseURL+"/delete_account")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Account Deleted!")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := srv.outbox.WaitForEmailSince(ctx, emailAddr, "welcome", cursor, srv.logs)
	require.NoError(t, err)
	_, err = srv.outbox.WaitForEmailSince(ctx, emailAddr, "goodbye", cursor, srv.logs)
	require.NoError(t, err)

	_, body = get(t, client, srv.baseURL+"/")
	assert.Contains(t, body, "Signup / Login")
}

func TestLifecycle_Unauthenticated_Redirects(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)
	client := newClient()

	resp, _ := get(t, client, srv.baseURL+"/delete_account")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

// TestLifecycle_DatabaseEncryptedAtRest checks that account data never
// appears in plaintext in the SQLCipher files.
func TestLifecycle_DatabaseEncryptedAtRest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)
	client := newClient()
	emailAddr := fmt.Sprintf("cipher.%d@example.com", time.Now().UnixNano())

	_, body := postForm(t, client, srv.baseURL+"/api/createAccount", apiAccountForm("Cipher User", emailAddr, "Password123!"))
	require.Equal(t, int64(http.StatusCreated), gjson.Get(body, "responseCode").Int(), body)

	var files []string
	for _, f := range []string{srv.dbPath, srv.dbPath + "-wal"} {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	require.NotEmpty(t, files)
	for _, f := range files {
		raw, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.False(t, bytes.Contains(raw, []byte(emailAddr)), "%s holds the email in plaintext", filepath.Base(f))
		assert.False(t, bytes.Contains(raw, []byte("SQLite format 3")), "%s has a plaintext SQLite header", filepath.Base(f))
	}
}

func TestLifecycle_RequestsAccessLogged(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test")
	}
	srv := getServer(t)

	cursor := srv.logs.Cursor()
	resp, _ := get(t, http.DefaultClient, srv.baseURL+"/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.logs.waitForSubstringSince(ctx, `"/products"`, cursor))
}
