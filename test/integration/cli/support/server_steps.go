package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/pdf"
	"github.com/MeKo-Tech/pixkit/internal/server"
)

// startServer runs the HTTP API on an httptest listener.
func (testCtx *TestContext) startServer(mutate func(*config.Config)) error {
	testCtx.StopServer()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := server.NewServer(server.ConfigFromApp(&cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(nil)
}

func (testCtx *TestContext) theServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startServer(func(c *config.Config) {
		c.Server.RateLimitEnabled = true
		c.Server.RequestsPerMinute = perMinute
	})
}

func (testCtx *TestContext) theServerIsRunningWithCORSOrigin(origin string) error {
	return testCtx.startServer(func(c *config.Config) { c.Server.CORSOrigin = origin })
}

func (testCtx *TestContext) url(path string) (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.URL + path, nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendARequestTo(method, path string) error {
	target, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), method, target, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// upload posts files as multipart form parts named field.
func (testCtx *TestContext) upload(path, field string, files []string, fields map[string]string) error {
	target, err := testCtx.url(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		data, err := os.ReadFile(file) //nolint:gosec // G304: fixture written by the scenario
		if err != nil {
			return err
		}
		part, err := writer.CreateFormFile(field, filepath.Base(file))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadTo(name, path string) error {
	return testCtx.upload(path, "image", []string{testCtx.Path(name)}, nil)
}

func (testCtx *TestContext) iUploadToWith(name, path, key, value string) error {
	return testCtx.upload(path, "image", []string{testCtx.Path(name)}, map[string]string{key: value})
}

// iUploadTheImagesInTo sends every file of dir, sorted by name.
func (testCtx *TestContext) iUploadTheImagesInTo(dir, path string) error {
	entries, err := os.ReadDir(testCtx.Path(dir))
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(testCtx.Path(dir), e.Name()))
		}
	}
	sort.Strings(files)
	return testCtx.upload(path, "images", files, nil)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != value {
		return fmt.Errorf("header %s is %q, expected %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnImageOfSize(format string, width, height int) error {
	img, got, err := imageops.DecodeImage(bytes.NewReader(testCtx.LastHTTPBody))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	if got != format {
		return fmt.Errorf("response format is %s, expected %s", got, format)
	}
	if b := img.Bounds(); b != image.Rect(0, 0, width, height) {
		return fmt.Errorf("response image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPDFWithPages(pages int) error {
	out := filepath.Join(testCtx.TempDir, "response.pdf")
	if err := os.WriteFile(out, testCtx.LastHTTPBody, 0o600); err != nil {
		return err
	}
	n, err := pdf.PageCount(out)
	if err != nil {
		return fmt.Errorf("response is not a PDF: %w", err)
	}
	if n != pages {
		return fmt.Errorf("PDF has %d pages, expected %d", n, pages)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a limit of (\d+) requests per minute$`, testCtx.theServerIsRunningWithRateLimit)
	sc.Step(`^the server is running with CORS origin "([^"]*)"$`, testCtx.theServerIsRunningWithCORSOrigin)

	sc.Step(`^I send a (GET|POST|OPTIONS) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)" set to "([^"]*)"$`, testCtx.iUploadToWith)
	sc.Step(`^I upload the images in "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTheImagesInTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be a (\w+) image of size (\d+)x(\d+)$`, testCtx.theResponseShouldBeAnImageOfSize)
	sc.Step(`^the response should be a PDF with (\d+) pages?$`, testCtx.theResponseShouldBeAPDFWithPages)
}
