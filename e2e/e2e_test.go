//go:build e2e

// Package e2e provides end-to-end tests for the lifebadge web dashboard.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

const (
	dashboardPort = 18080
	targetPort    = 18077
	baseURL       = "http://127.0.0.1:18080"
	binaryPath    = "/tmp/lifebadge-e2e"

	// polling intervals for condition-based waits
	pollTimeout     = 5 * time.Second
	pollInterval    = 100 * time.Millisecond
	longPollTimeout = 15 * time.Second

	serverStartTimeout = 30 * time.Second
)

var (
	pw         *playwright.Playwright
	browser    playwright.Browser
	watcherCmd *exec.Cmd
	targetCmd  *exec.Cmd
	testTmpDir string
)

func TestMain(m *testing.M) {
	code := 1
	defer func() {
		os.Exit(code)
	}()

	if err := buildBinary(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build binary: %v\n", err)
		return
	}
	defer os.Remove(binaryPath)

	var err error
	testTmpDir, err = os.MkdirTemp("", "lifebadge-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(testTmpDir)

	// the watched target is another lifebadge instance publishing its own lifecycle
	if err := startTarget("Started", ""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start target: %v\n", err)
		return
	}
	defer stopTarget()

	if err := startWatcher(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start dashboard: %v\n", err)
		return
	}
	defer stopProcess(watcherCmd)

	if err := waitForURL(baseURL+"/api/badge", serverStartTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard not ready: %v\n", err)
		return
	}

	if err := setupPlaywright(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup playwright: %v\n", err)
		return
	}
	defer teardownPlaywright()

	code = m.Run()
}

func buildBinary() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get cwd: %w", err)
	}
	projectRoot := filepath.Dir(cwd)

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/lifebadge")
	cmd.Dir = projectRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// startTarget runs a lifebadge process publishing the given lifecycle state.
func startTarget(state, reason string) error {
	targetCmd = exec.Command(binaryPath,
		"--config-dir", filepath.Join(testTmpDir, "target"),
		"--publish", strconv.Itoa(targetPort),
		"--publish-state", state,
		"--publish-reason", reason,
	)
	targetCmd.Stderr = os.Stderr
	if err := targetCmd.Start(); err != nil {
		return fmt.Errorf("start target: %w", err)
	}
	return waitForURL(fmt.Sprintf("http://127.0.0.1:%d/lifecycle", targetPort), serverStartTimeout)
}

func stopTarget() {
	stopProcess(targetCmd)
	targetCmd = nil
}

func startWatcher() error {
	watcherCmd = exec.Command(binaryPath,
		"--config-dir", filepath.Join(testTmpDir, "watcher"),
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(targetPort),
		"--serve",
		"--dashboard-port", strconv.Itoa(dashboardPort),
		"--interval", "200ms",
		"--format", "json",
	)
	watcherCmd.Stderr = os.Stderr
	if err := watcherCmd.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	return nil
}

func stopProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

func waitForURL(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s after %v", url, timeout)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

func setupPlaywright() error {
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}

	var err error
	pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("run playwright: %w", err)
	}

	// check for headless mode (default: headless)
	headless := os.Getenv("E2E_HEADLESS") != "false"

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	}
	if !headless {
		opts.SlowMo = playwright.Float(50)
	}

	browser, err = pw.Chromium.Launch(opts)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	return nil
}

func teardownPlaywright() {
	if browser != nil {
		_ = browser.Close()
	}
	if pw != nil {
		_ = pw.Stop()
	}
}

// newPage creates an isolated browser context and page for a test.
func newPage(t *testing.T) playwright.Page {
	t.Helper()

	ctx, err := browser.NewContext()
	require.NoError(t, err, "create browser context")

	page, err := ctx.NewPage()
	require.NoError(t, err, "create page")

	t.Cleanup(func() {
		_ = page.Close()
		_ = ctx.Close()
	})
	return page
}

// navigateToDashboard loads the dashboard and waits for the header.
func navigateToDashboard(t *testing.T, page playwright.Page) {
	t.Helper()

	_, err := page.Goto(baseURL)
	require.NoError(t, err, "navigate to dashboard")

	err = page.Locator("header h1").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(longPollTimeout / time.Millisecond)),
	})
	require.NoError(t, err, "wait for header")
}

// hasClass checks if classAttr contains the exact CSS class token.
func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// waitForClass polls until the locator's class attribute contains the exact token.
func waitForClass(t *testing.T, loc playwright.Locator, class string) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := loc.GetAttribute("class")
		return err == nil && hasClass(c, class)
	}, longPollTimeout, pollInterval, "element should have class %q", class)
}

// waitForText polls until the locator's text content equals expected.
func waitForText(t *testing.T, loc playwright.Locator, expected string) {
	t.Helper()
	require.Eventually(t, func() bool {
		text, err := loc.TextContent()
		return err == nil && text == expected
	}, longPollTimeout, pollInterval, "element should have text %q", expected)
}

// waitForMinCount polls until the locator count is at least min.
func waitForMinCount(t *testing.T, loc playwright.Locator, min int) {
	t.Helper()
	require.Eventually(t, func() bool {
		count, err := loc.Count()
		return err == nil && count >= min
	}, longPollTimeout, pollInterval, "expected at least %d elements", min)
}

// TestDashboardSmoke verifies the dashboard is running and the page loads.
func TestDashboardSmoke(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	title, err := page.Title()
	require.NoError(t, err)
	require.Equal(t, "lifebadge", title)

	target, err := page.Locator("#target").TextContent()
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("127.0.0.1:%d", targetPort), target)
}
