package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/source"
)

// errNothingToEnqueue is returned when neither arguments nor a list file
// name a root.
var errNothingToEnqueue = errors.New("no roots to enqueue: provide URLs or use --list")

// NewEnqueueCmd creates the enqueue command.
func NewEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue [root-url...]",
		Short: "Push root URLs onto the Redis crawl queue",
		Long: `Enqueue appends root URLs to the Redis list that 'sitecrawler crawl --redis'
takes its roots from. Several crawl processes may drain the same list.

The Redis password is read from ` + redisPasswordEnv + `.

Examples:
  # Queue two sites
  sitecrawler enqueue --redis localhost:6379 https://example.com/ https://example.org/

  # Queue every root of a list file
  sitecrawler enqueue --redis localhost:6379 --list roots.txt`,
		Args: cobra.ArbitraryArgs,
		RunE: runEnqueueCmd,
	}

	cmd.Flags().String("redis", "localhost:6379", "Redis address")
	cmd.Flags().String("redis-key", config.DefaultRedisKey, "Redis list holding the roots")
	cmd.Flags().StringP("list", "l", "", "File with one root URL per line")

	return cmd
}

// runEnqueueCmd executes the enqueue command.
func runEnqueueCmd(cmd *cobra.Command, args []string) error {
	r := &flagReader{flags: cmd.Flags()}
	addr := r.String("redis")
	key := r.String("redis-key")
	listFile := r.String("list")
	if r.err != nil {
		return r.err
	}

	roots, err := collectRoots(args, listFile)
	if err != nil {
		return err
	}

	logger := loggerFor(cmd)
	q, err := source.NewRedisSource(addr, os.Getenv(redisPasswordEnv), key, source.WithRedisLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer q.Close()

	length, err := q.Push(cmd.Context(), roots...)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d roots onto %s (queue length %d)\n", len(roots), key, length)
	return nil
}

// collectRoots merges the argument roots with those of listFile.
func collectRoots(args []string, listFile string) ([]string, error) {
	all := make([]string, 0, len(args))
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			all = append(all, arg)
		}
	}

	if listFile != "" {
		f, err := os.Open(listFile) //nolint:gosec // user-provided list path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open list file: %w", err)
		}
		defer f.Close()

		listed, err := source.ReadList(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read list file: %w", err)
		}
		all = append(all, listed...)
	}

	if len(all) == 0 {
		return nil, errNothingToEnqueue
	}
	return all, nil
}
