// Package migrate applies versioned SQL schema migrations and drives the migrate CLI command.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimburion/crudkit/pkg/observability/logger"
)

// Command names accepted by ParseArgs.
const (
	CommandUp     = "up"
	CommandDown   = "down"
	CommandStatus = "status"
)

// DefaultTimeout bounds a whole migrate invocation when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// PendingMigration is a migration that has not been applied yet.
type PendingMigration struct {
	Version int64
	Name    string
}

// Status reports applied versions in ascending order and the pending migrations.
type Status struct {
	AppliedVersions []int64
	Pending         []PendingMigration
}

// Operations are the backend hooks a migrate command drives.
type Operations struct {
	Up     func(ctx context.Context) (int, error)
	Down   func(ctx context.Context, steps int) (int, error)
	Status func(ctx context.Context) (*Status, error)
}

// Options configures a migrate invocation.
type Options struct {
	ServiceName string
	Source      string
	Timeout     time.Duration
	Logger      logger.Logger
}

// Run parses args and executes the selected command.
func Run(ctx context.Context, args []string, opts Options, ops Operations) error {
	command, steps, err := ParseArgs(args)
	if err != nil {
		return err
	}
	return RunParsed(ctx, command, steps, opts, ops)
}

// RunParsed executes an already parsed command within opts.Timeout.
func RunParsed(ctx context.Context, command string, steps int, opts Options, ops Operations) error {
	if ops.Up == nil || ops.Down == nil || ops.Status == nil {
		return errors.New("migration operations are incomplete")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log = log.With("source", opts.Source)
	switch command {
	case CommandUp:
		applied, err := ops.Up(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "count", applied)
		return nil
	case CommandDown:
		if steps <= 0 {
			return errors.New("steps must be greater than zero")
		}
		reverted, err := ops.Down(ctx, steps)
		if err != nil {
			return err
		}
		log.Info("migrations reverted", "count", reverted, "steps", steps)
		return nil
	case CommandStatus:
		status, err := ops.Status(ctx)
		if err != nil {
			return err
		}
		log.Info("migration status", "applied", len(status.AppliedVersions), "pending", len(status.Pending))
		for _, version := range status.AppliedVersions {
			log.Info("migration applied", "version", version)
		}
		for _, pending := range status.Pending {
			log.Info("migration pending", "version", pending.Version, "name", pending.Name)
		}
		return nil
	default:
		return fmt.Errorf("usage: %s migrate [up|down|status] [steps]", serviceName(opts))
	}
}

// ParseArgs parses [up|down|status] [steps]. The command defaults to up and steps to 1.
func ParseArgs(args []string) (string, int, error) {
	command := CommandUp
	if len(args) > 0 {
		command = args[0]
	}
	steps := 1
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid down steps %q", args[1])
		}
		steps = parsed
	}
	if len(args) > 2 {
		return "", 0, fmt.Errorf("unexpected arguments: %v", args[2:])
	}
	return command, steps, nil
}

func serviceName(opts Options) string {
	if opts.ServiceName == "" {
		return "crudkit"
	}
	return opts.ServiceName
}
