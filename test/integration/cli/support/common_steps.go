package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/pdf"
	"github.com/MeKo-Tech/pixkit/internal/testutil"
)

// substituteCommandVariables resolves the binary and the {tmp} placeholder.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	if bin := os.Getenv("PIXKIT_BIN"); bin != "" && strings.HasPrefix(command, "pixkit ") {
		command = bin + strings.TrimPrefix(command, "pixkit")
	}
	return command
}

// iRunCommand executes the command in the scenario working directory.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention checks the combined output of a failed command.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if err := testCtx.theCommandShouldFail(); err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention '%s'\nActual output: %s", errorText, testCtx.LastOutput)
	}
	return nil
}

// aFolderWithSampleImages writes n gradient PNGs named photo-1.png and so on.
func (testCtx *TestContext) aFolderWithSampleImages(dir string, n int) error {
	path := testCtx.Path(dir)
	if err := testutil.EnsureDir(path); err != nil {
		return err
	}
	for i := range n {
		img := testutil.CreateGradientImage(200+10*i, 150+10*i)
		name := filepath.Join(path, fmt.Sprintf("photo-%d.png", i+1))
		if err := imageops.SaveImage(img, name, mustFormat(name)); err != nil {
			return fmt.Errorf("failed to write sample image: %w", err)
		}
	}
	return nil
}

// anImageOfSize writes a gradient image in the format implied by its name.
func (testCtx *TestContext) anImageOfSize(name string, width, height int) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	format, err := imageops.FormatFromName(filepath.Ext(path))
	if err != nil {
		return err
	}
	return imageops.SaveImage(testutil.CreateGradientImage(width, height), path, format)
}

func (testCtx *TestContext) aTextFile(name string) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("not an image\n"), 0o600)
}

func (testCtx *TestContext) theImageShouldHaveSize(name string, width, height int) error {
	_, meta, err := imageops.LoadImage(testCtx.Path(name))
	if err != nil {
		return err
	}
	if meta.Width != width || meta.Height != height {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d", name, meta.Width, meta.Height, width, height)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldBeFormat(name, format string) error {
	_, meta, err := imageops.LoadImage(testCtx.Path(name))
	if err != nil {
		return err
	}
	if meta.Format != format {
		return fmt.Errorf("image %s has format %s, expected %s", name, meta.Format, format)
	}
	return nil
}

// theFolderShouldContainFiles counts regular files with the given extension,
// or all files when ext is empty.
func (testCtx *TestContext) theFolderShouldContainFiles(dir string, count int, ext string) error {
	entries, err := os.ReadDir(testCtx.Path(dir))
	if err != nil {
		return err
	}
	n := 0
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
		if ext == "" || strings.EqualFold(filepath.Ext(e.Name()), "."+strings.TrimPrefix(ext, ".")) {
			n++
		}
	}
	if n != count {
		return fmt.Errorf("folder %s has %d matching files, expected %d: %v", dir, n, count, names)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", name, expected, data)
	}
	return nil
}

// theFileShouldBeValidJSONWithField checks a dotted path such as stats.processed.
func (testCtx *TestContext) theFileShouldBeValidJSONWithField(name, field string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("file %s is not valid JSON: %w", name, err)
	}
	return checkFieldExists(doc, field)
}

func checkFieldExists(data map[string]any, field string) error {
	current := data
	parts := strings.Split(field, ".")
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return fmt.Errorf("JSON does not contain field %q", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return nil
		}
		next, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("field %q is not an object", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	return nil
}

func (testCtx *TestContext) thePDFShouldHavePages(name string, pages int) error {
	n, err := pdf.PageCount(testCtx.Path(name))
	if err != nil {
		return err
	}
	if n != pages {
		return fmt.Errorf("PDF %s has %d pages, expected %d", name, n, pages)
	}
	return nil
}

func mustFormat(name string) imaging.Format {
	f, err := imageops.FormatFromName(filepath.Ext(name))
	if err != nil {
		panic(err)
	}
	return f
}

// RegisterCommonSteps registers command, file and image steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Fixtures
	sc.Step(`^a folder "([^"]*)" with (\d+) sample images?$`, testCtx.aFolderWithSampleImages)
	sc.Step(`^an image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.anImageOfSize)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)

	// Commands
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Files
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should be JSON with field "([^"]*)"$`, testCtx.theFileShouldBeValidJSONWithField)
	sc.Step(`^the folder "([^"]*)" should contain (\d+) files?$`, func(dir string, n int) error {
		return testCtx.theFolderShouldContainFiles(dir, n, "")
	})
	sc.Step(`^the folder "([^"]*)" should contain (\d+) "([^"]*)" files?$`, testCtx.theFolderShouldContainFiles)
	sc.Step(`^the image "([^"]*)" should have size (\d+)x(\d+)$`, testCtx.theImageShouldHaveSize)
	sc.Step(`^the image "([^"]*)" should be "([^"]*)"$`, testCtx.theImageShouldBeFormat)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
}
