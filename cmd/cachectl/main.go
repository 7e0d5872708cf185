package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/charlesng35/sqlcache/internal/app"
	"github.com/charlesng35/sqlcache/internal/cache"
	"github.com/charlesng35/sqlcache/pkg/logger"
)

const usage = `Usage: cachectl [flags] <command> [args]

Commands:
  get <key>            print the payload for key; exit 1 on miss
  contains <key>       exit 0 when a live entry exists, 1 otherwise
  put <key> [value]    store value (or stdin when omitted); -ttl sets expiry
                       and -auto stores under a generated key and prints it
  delete <key>         remove key
  flush                remove every entry
  stats                print backend statistics when supported
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	var (
		configPath string
		ttl        time.Duration
		autoKey    bool
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.DurationVar(&ttl, "ttl", 0, "Entry lifetime for put; 0 means never expires")
	fs.BoolVar(&autoKey, "auto", false, "Generate the key for put and print it")

	if err := fs.Parse(args); err != nil {
		return 1, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 1, nil
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return 1, err
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		return 1, fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	store, closer, err := app.BuildStore(cfg)
	if err != nil {
		return 1, err
	}

	code, cmdErr := dispatch(ctx, store, fs.Args(), ttl, autoKey, cfg.Cache.DefaultTTL)
	return code, multierr.Append(cmdErr, closer())
}

func dispatch(ctx context.Context, store cache.Store, args []string, ttl time.Duration, autoKey bool, defaultTTL time.Duration) (int, error) {
	command := args[0]
	rest := args[1:]

	switch command {
	case "get":
		if len(rest) != 1 {
			return 1, fmt.Errorf("get requires exactly one key")
		}
		value, found, err := store.Get(ctx, rest[0])
		if err != nil {
			return 1, err
		}
		if !found {
			return 1, nil
		}
		_, err = os.Stdout.Write(value)
		return 0, err

	case "contains":
		if len(rest) != 1 {
			return 1, fmt.Errorf("contains requires exactly one key")
		}
		found, err := store.Contains(ctx, rest[0])
		if err != nil {
			return 1, err
		}
		if !found {
			return 1, nil
		}
		return 0, nil

	case "put":
		return runPut(ctx, store, rest, ttl, autoKey, defaultTTL)

	case "delete":
		if len(rest) != 1 {
			return 1, fmt.Errorf("delete requires exactly one key")
		}
		return reportWrite(store.Delete(ctx, rest[0]))

	case "flush":
		return reportWrite(store.Flush(ctx))

	case "stats":
		stats, err := store.Stats(ctx)
		if err != nil {
			return 1, err
		}
		if !stats.Supported {
			fmt.Println("statistics not supported by this backend")
			return 0, nil
		}
		fmt.Printf("hits=%d misses=%d keys=%d\n", stats.Hits, stats.Misses, stats.Keys)
		return 0, nil

	default:
		return 1, fmt.Errorf("unknown command %q", command)
	}
}

func runPut(ctx context.Context, store cache.Store, rest []string, ttl time.Duration, autoKey bool, defaultTTL time.Duration) (int, error) {
	var key string
	switch {
	case autoKey:
		key = uuid.NewString()
	case len(rest) >= 1:
		key, rest = rest[0], rest[1:]
	default:
		return 1, fmt.Errorf("put requires a key or -auto")
	}

	var value []byte
	switch len(rest) {
	case 0:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return 1, fmt.Errorf("read value from stdin: %w", err)
		}
		value = data
	case 1:
		value = []byte(rest[0])
	default:
		return 1, fmt.Errorf("put accepts at most one value argument")
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}

	code, err := reportWrite(store.Put(ctx, key, value, ttl))
	if err == nil && code == 0 && autoKey {
		fmt.Println(key)
	}
	return code, err
}

func reportWrite(ok bool, err error) (int, error) {
	if err != nil {
		return 1, err
	}
	if !ok {
		logger.Warn("write rejected by backend")
		return 1, nil
	}
	return 0, nil
}
