package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// Server under test
	HTTPTestServer *httptest.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPBody       []byte
	LastHTTPHeaders    http.Header

	// Test artifacts
	CreatedFiles       []string
	CreatedDirectories []string
}

// NewTestContext creates a new test context. Commands run inside a fresh
// temporary directory so relative paths in feature files stay isolated.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "pixkit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir:         tempDir,
		TempDir:            tempDir,
		EnvVars:            []string{},
		CreatedFiles:       []string{},
		CreatedDirectories: []string{},
	}, nil
}

// StopServer stops the httptest server if one is running.
func (testCtx *TestContext) StopServer() {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
}

// Cleanup removes all temporary files and directories created during tests.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	testCtx.StopServer()

	for _, file := range testCtx.CreatedFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove file %s: %w", file, err))
		}
	}

	for _, dir := range testCtx.CreatedDirectories {
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove directory %s: %w", dir, err))
		}
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// TrackFile adds a file to be cleaned up after tests.
func (testCtx *TestContext) TrackFile(filename string) {
	testCtx.CreatedFiles = append(testCtx.CreatedFiles, testCtx.Path(filename))
}

// TrackDirectory adds a directory to be cleaned up after tests.
func (testCtx *TestContext) TrackDirectory(dirname string) {
	testCtx.CreatedDirectories = append(testCtx.CreatedDirectories, testCtx.Path(dirname))
}

// Path resolves name relative to the scenario working directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}
