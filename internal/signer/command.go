package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sirupsen/logrus"
)

// killGrace bounds how long output pipes are drained after the signing
// process has been killed.
const killGrace = 5 * time.Second

// gnupgEnv are GPG_ variables owned by GnuPG itself; they pass through to
// the command untouched.
var gnupgEnv = []string{"GPG_TTY", "GPG_AGENT_INFO"}

// CommandSigner signs a Release file by running an external command. The
// command receives the Release path as its only argument and must write
// Release.gpg next to it.
type CommandSigner struct {
	opts    models.SignOptions
	command string
}

// NewCommandSigner checks that the configured command can be executed.
func NewCommandSigner(opts *models.SignOptions) (*CommandSigner, error) {
	configErr := func(format string, args ...interface{}) error {
		return models.NewError(models.ErrConfig, models.StageSign, "", fmt.Errorf(format, args...))
	}
	if opts == nil || opts.Command == "" {
		return nil, configErr("signing command not specified")
	}

	command, err := exec.LookPath(opts.Command)
	if err != nil {
		return nil, configErr("signing command %s: %w", opts.Command, err)
	}
	info, err := os.Stat(command)
	if err != nil {
		return nil, configErr("signing command %s: %w", opts.Command, err)
	}
	if !info.Mode().IsRegular() {
		return nil, configErr("signing command %s is not a file", opts.Command)
	}
	if info.Mode().Perm()&0111 == 0 {
		return nil, configErr("signing command %s is not executable", opts.Command)
	}
	if abs, err := filepath.Abs(command); err == nil {
		command = abs
	}

	return &CommandSigner{opts: *opts, command: command}, nil
}

// Environment returns the GPG_* variables handed to the command.
func (s *CommandSigner) Environment(sc models.SignContext) []string {
	vars := map[string]string{
		"GPG_CMD":             s.command,
		"GPG_REPOSITORY_NAME": sc.RepositoryName,
		"GPG_DIST":            sc.Distribution,
	}
	if s.opts.KeyID != "" {
		vars["GPG_KEY_ID"] = s.opts.KeyID
	}
	for k, v := range s.opts.Extra {
		name := "GPG_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if _, taken := vars[name]; taken {
			continue
		}
		vars[name] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// inheritedEnv returns the process environment without GPG_* variables, so
// the command only sees the ones this build sets.
func inheritedEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "GPG_") && !slices.Contains(gnupgEnv, name) {
			continue
		}
		env = append(env, kv)
	}
	return env
}

// Sign runs the command and checks that it produced a non-empty
// Release.gpg. A zero exit status alone is not treated as success.
func (s *CommandSigner) Sign(ctx context.Context, releasePath string, sc models.SignContext) (*models.SignResult, error) {
	signErr := func(t models.ErrorType, err error) error {
		return models.NewError(t, models.StageSign, releasePath, err)
	}

	releasePath, err := filepath.Abs(releasePath)
	if err != nil {
		return nil, signErr(models.ErrIO, err)
	}
	dir := filepath.Dir(releasePath)
	sigPath := filepath.Join(dir, SignatureFile)

	// A signature left by an earlier build must not pass for a new one
	if err := os.Remove(sigPath); err != nil && !os.IsNotExist(err) {
		return nil, signErr(models.ErrIO, fmt.Errorf("removing stale signature: %w", err))
	}

	timeout := s.opts.EffectiveTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, releasePath)
	cmd.Dir = dir
	cmd.Env = append(inheritedEnv(), s.Environment(sc)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace
	killProcessGroup(cmd)

	log := logrus.WithFields(logrus.Fields{
		"command": s.command,
		"release": releasePath,
		"dist":    sc.Distribution,
	})
	log.Info("Signing Release file...")

	runErr := cmd.Run()
	result := &models.SignResult{
		SignaturePath: sigPath,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return result, signErr(models.ErrSigningTimeout,
			fmt.Errorf("signing command did not finish within %s", timeout))
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			log.WithField("stderr", result.Stderr).Debug("Signing command failed")
			return result, signErr(models.ErrProcessFailed,
				fmt.Errorf("signing command exited with status %d: %s", exitErr.ExitCode(), strings.TrimSpace(result.Stderr)))
		}
		return result, signErr(models.ErrProcessFailed, fmt.Errorf("running signing command: %w", runErr))
	}

	info, err := os.Stat(sigPath)
	if err != nil {
		return result, signErr(models.ErrOutputMissing,
			fmt.Errorf("signing command exited successfully but %s was not created", SignatureFile))
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return result, signErr(models.ErrOutputMissing,
			fmt.Errorf("signing command exited successfully but %s is empty", SignatureFile))
	}

	if s.opts.VerifyKeyring != "" {
		fingerprint, err := VerifyDetached(releasePath, sigPath, s.opts.VerifyKeyring)
		if err != nil {
			return result, err
		}
		result.SignedBy = fingerprint
	}

	result.Status = models.SignSigned
	log.Info("Release file signed successfully")
	return result, nil
}
