package support

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result.
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

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// csvRecords parses the CSV part of the output. Log lines are JSON objects
// and are skipped.
func (testCtx *TestContext) csvRecords() ([][]string, error) {
	var lines []string
	for _, line := range strings.Split(testCtx.LastOutput, "\n") {
		if strings.HasPrefix(line, "{") || strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	records, err := csv.NewReader(strings.NewReader(strings.Join(lines, "\n"))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV has no records")
	}
	return records, nil
}

// theCSVShouldHaveRows checks the number of data rows.
func (testCtx *TestContext) theCSVShouldHaveRows(n int) error {
	records, err := testCtx.csvRecords()
	if err != nil {
		return err
	}
	if got := len(records) - 1; got != n {
		return fmt.Errorf("expected %d data rows, got %d\nOutput: %s", n, got, testCtx.LastOutput)
	}
	return nil
}

// theColumnShouldBe checks a column of the first data row.
func (testCtx *TestContext) theColumnShouldBe(column, value string) error {
	records, err := testCtx.csvRecords()
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return errors.New("CSV has no data rows")
	}
	for i, h := range records[0] {
		if h == column {
			if records[1][i] != value {
				return fmt.Errorf("column %q is %q, expected %q", column, records[1][i], value)
			}
			return nil
		}
	}
	return fmt.Errorf("column %q not found in %v", column, records[0])
}

// theFileShouldExist verifies a file exists inside the scenario directory.
func (testCtx *TestContext) theFileShouldExist(rel string) error {
	if _, err := os.Stat(testCtx.Path(rel)); err != nil {
		return fmt.Errorf("expected file %s: %w", rel, err)
	}
	return nil
}

// theFileShouldNotExist verifies a file is absent.
func (testCtx *TestContext) theFileShouldNotExist(rel string) error {
	if _, err := os.Stat(testCtx.Path(rel)); err == nil {
		return fmt.Errorf("file %s should not exist", rel)
	}
	return nil
}

// theFileShouldContain verifies the content of a file.
func (testCtx *TestContext) theFileShouldContain(rel, expected string) error {
	data, err := os.ReadFile(testCtx.Path(rel))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", rel, expected, data)
	}
	return nil
}

// filesMatching counts files in dir whose name ends with suffix.
func (testCtx *TestContext) filesMatching(dir, suffix string, n int) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.Path(dir), "*"+suffix))
	if err != nil {
		return err
	}
	if len(matches) != n {
		return fmt.Errorf("expected %d file(s) ending in %s in %s, found %v", n, suffix, dir, matches)
	}
	return nil
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the CSV should have (\d+) data rows?$`, testCtx.theCSVShouldHaveRows)
	sc.Step(`^the column "([^"]*)" should be "([^"]*)"$`, testCtx.theColumnShouldBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the folder "([^"]*)" should contain (\d+) files? ending in "([^"]*)"$`,
		func(dir string, n int, suffix string) error { return testCtx.filesMatching(dir, suffix, n) })
}
