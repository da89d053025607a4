// Package scanner implements the Scanner Adapter (§4.D): it launches one
// external line-scanning child process per service-search, streams
// file:line:content records back, and decodes each content as JSON when
// possible. The scanner prefers ripgrep (parallel, case-insensitive,
// file:line:content output natively) and falls back to piping a
// NUL-delimited file list into grep when ripgrep is unavailable.
package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"logai/internal/resultset"
	"logai/pkg/apperror"
	"logai/pkg/config"
	"logai/pkg/logger"
)

// ProgressFunc is invoked as matches stream off the child's stdout, once
// per parsed line, so the aggregator's running per-service count stays
// live without waiting for the scan to finish (§4.D Streaming contract).
type ProgressFunc func(match resultset.Match)

// Scanner launches the configured line-scanning child and streams matches.
type Scanner struct {
	cfg config.ScannerConfig
}

func New(cfg config.ScannerConfig) *Scanner {
	return &Scanner{cfg: cfg}
}

// Scan runs one child process over paths looking for pattern, tagging
// every Match with serviceTag, and invoking onMatch as each line is
// parsed. It returns whatever matches were produced even when the
// returned error is non-nil or ctx is cancelled mid-stream (§4.D Failure
// semantics, §5 Cancellation): partial output is preserved.
func (s *Scanner) Scan(ctx context.Context, paths []string, pattern, serviceTag string, onMatch ProgressFunc) ([]resultset.Match, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	binary, args, stdinFeed := s.command(paths, pattern)

	if _, err := exec.LookPath(binary); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeScannerFailed,
			fmt.Sprintf("scanner binary %q not found", binary)).WithField(serviceTag)
	}

	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeScannerFailed, "failed to open scanner stdout").WithField(serviceTag)
	}

	stderrBuf := make([]byte, 0, s.stderrBufferLen())
	stderrR, stderrW := io.Pipe()
	cmd.Stderr = stderrW

	var stdin io.WriteCloser
	if stdinFeed {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeScannerFailed, "failed to open scanner stdin").WithField(serviceTag)
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeScannerFailed, "failed to launch scanner").WithField(serviceTag)
	}

	var stderrWG sync.WaitGroup
	stderrWG.Add(1)
	go func() {
		defer stderrWG.Done()
		buf := make([]byte, 4096)
		for {
			n, rerr := stderrR.Read(buf)
			if n > 0 && len(stderrBuf) < cap(stderrBuf) {
				stderrBuf = append(stderrBuf, buf[:n]...)
			}
			if rerr != nil {
				return
			}
		}
	}()

	if stdinFeed {
		go func() {
			defer stdin.Close()
			for _, p := range paths {
				io.WriteString(stdin, p)
				stdin.Write([]byte{0})
			}
		}()
	}

	matches := make([]resultset.Match, 0, 64)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m, ok := parseLine(line, serviceTag)
		if !ok {
			continue
		}
		matches = append(matches, m)
		if onMatch != nil {
			onMatch(m)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	stderrW.Close()
	stderrWG.Wait()

	if waitErr != nil {
		if len(matches) > 0 {
			// Non-zero exit after partial output: partial matches survive,
			// a per-service error is recorded but does not void them
			// (§4.D Failure semantics).
			logger.Log.Warn("scanner exited non-zero with partial output",
				"service", serviceTag, "error", waitErr, "stderr", string(stderrBuf))
			return matches, apperror.Wrap(waitErr, apperror.CodeScannerFailed,
				"scanner exited non-zero after partial output").WithField(serviceTag).WithDetails("stderr", string(stderrBuf))
		}
		if isNoMatchExit(waitErr) {
			// Non-zero exit with empty output means "no matches" (§4.D).
			return matches, nil
		}
		return matches, apperror.Wrap(waitErr, apperror.CodeScannerFailed,
			"scanner failed").WithField(serviceTag).WithDetails("stderr", string(stderrBuf))
	}

	if scanErr != nil {
		return matches, apperror.Wrap(scanErr, apperror.CodeScannerFailed, "failed reading scanner output").WithField(serviceTag)
	}

	return matches, nil
}

// isNoMatchExit treats a clean process exit (ripgrep/grep both use exit
// code 1 for "no lines matched") as the no-matches case rather than a
// failure.
func isNoMatchExit(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 1
	}
	return false
}

// command selects the primary binary (ripgrep-shaped: parallel, recursive,
// reads its file list as args) when present, otherwise falls back to
// piping a NUL-delimited file list into the fallback binary (§4.D, §9
// scanner backend ambiguity).
func (s *Scanner) command(paths []string, pattern string) (binary string, args []string, stdinFeed bool) {
	primary := s.cfg.PrimaryBinary
	if primary == "" {
		primary = "rg"
	}
	if _, err := exec.LookPath(primary); err == nil {
		args := append([]string{}, s.cfg.PrimaryArgs...)
		args = append(args, "--", pattern)
		args = append(args, paths...)
		return primary, args, false
	}

	fallback := s.cfg.FallbackBinary
	if fallback == "" {
		fallback = "grep"
	}
	args = append([]string{}, s.cfg.FallbackArgs...)
	args = append(args, "-Z", "-f", "-", "-e", pattern)
	return fallback, args, true
}

// Backend reports which binary a Scan call would launch right now ("rg"
// or the configured fallback, commonly "grep"), for attaching to trace
// spans and metrics without duplicating the selection logic (§4.D, §9
// scanner backend ambiguity).
func (s *Scanner) Backend() string {
	primary := s.cfg.PrimaryBinary
	if primary == "" {
		primary = "rg"
	}
	if _, err := exec.LookPath(primary); err == nil {
		return primary
	}

	fallback := s.cfg.FallbackBinary
	if fallback == "" {
		fallback = "grep"
	}
	return fallback
}

func (s *Scanner) stderrBufferLen() int {
	if s.cfg.StderrBufferLen > 0 {
		return s.cfg.StderrBufferLen
	}
	return 4096
}

// parseLine splits a file:line:content record on the first two colons,
// parses the line number, and opportunistically JSON-decodes the content
// (§4.D Behavior, §9 Ad-hoc runtime type reshaping).
func parseLine(raw, service string) (resultset.Match, bool) {
	first := strings.IndexByte(raw, ':')
	if first < 0 {
		return resultset.Match{}, false
	}
	second := strings.IndexByte(raw[first+1:], ':')
	if second < 0 {
		return resultset.Match{}, false
	}
	second += first + 1

	filePath := raw[:first]
	lineStr := raw[first+1 : second]
	content := raw[second+1:]

	lineNo, err := strconv.Atoi(lineStr)
	if err != nil {
		return resultset.Match{}, false
	}

	return resultset.Match{
		Service:  service,
		FilePath: filePath,
		Line:     lineNo,
		Content:  decodeContent(content),
	}, true
}

func decodeContent(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	switch trimmed[0] {
	case '{', '[', '"':
	default:
		return raw
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return raw
	}
	return decoded
}
