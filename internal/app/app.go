package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/apptremind/remindctl/internal/apiclient"
	"github.com/apptremind/remindctl/internal/config"
	"github.com/apptremind/remindctl/internal/credentials"
	"github.com/apptremind/remindctl/internal/gateway"
	"github.com/apptremind/remindctl/internal/logging"
	"github.com/apptremind/remindctl/internal/requestid"
	"github.com/apptremind/remindctl/internal/session"
)

// Options configure the remindctl runtime.
type Options struct {
	ConfigPath string
	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config
	// LogOutput receives console logs; nil means stderr.
	LogOutput io.Writer
	// HTTPClient overrides the transport's client; nil uses a default.
	HTTPClient *http.Client
}

// Runtime holds every component built from the configuration.
type Runtime struct {
	Config    config.Config
	Log       zerolog.Logger
	Creds     credentials.Store
	IDs       *requestid.Generator
	Transport *apiclient.HTTPTransport
	Client    *apiclient.Client
	Session   *session.Facade
	API       *gateway.API

	logSink *logging.Sink
	closers []io.Closer
}

// Open loads configuration and wires the runtime. Callers must Close it.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	var cfg config.Config
	if opts.Config != nil {
		cfg = *opts.Config
	} else {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log, sink, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: opts.LogOutput})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	rt := &Runtime{Config: cfg, Log: log, logSink: sink, closers: []io.Closer{sink}}

	creds, closer, err := openStore(ctx, cfg.Credentials, log)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	rt.Creds = creds
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	rt.Transport, err = apiclient.NewHTTPTransport(cfg.BaseURL, opts.HTTPClient)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init transport: %w", err)
	}

	rt.IDs = requestid.New()
	rt.Client = apiclient.New(rt.Transport, rt.Creds, rt.IDs,
		apiclient.WithLogger(log.With().Str("component", "apiclient").Logger()),
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithRefreshTimeout(cfg.RefreshTimeout),
		apiclient.WithUserAgent(cfg.UserAgent),
	)
	rt.Session = session.New(rt.Client, rt.Creds,
		session.WithLogger(log.With().Str("component", "session").Logger()))
	rt.API = gateway.New(rt.Client, rt.IDs)

	log.Debug().
		Str("base_url", rt.Transport.BaseURL()).
		Str("credentials", cfg.Credentials.Backend).
		Msg("runtime ready")
	return rt, nil
}

// Close releases the credential backend and log sink.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// logFile is the configured log file, or the default one.
func (r *Runtime) logFile() (string, error) {
	if r.Config.Log.File != "" {
		return r.Config.Log.File, nil
	}
	return config.DefaultLogFile()
}

// detachConsole moves console logging into the log file while a full-screen
// program owns the terminal. It does nothing when logs already go to a file.
func (r *Runtime) detachConsole() (restore func(), err error) {
	if r.Config.Log.File != "" {
		return func() {}, nil
	}
	path, err := r.logFile()
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	undo, err := r.logSink.Divert(path)
	if err != nil {
		return nil, err
	}
	r.Log.Debug().Str("file", path).Msg("console logging diverted")
	return func() { _ = undo() }, nil
}

func openStore(ctx context.Context, cfg config.Credentials, log zerolog.Logger) (credentials.Store, io.Closer, error) {
	storeLog := log.With().Str("component", "credentials").Str("backend", cfg.Backend).Logger()
	switch cfg.Backend {
	case config.BackendMemory:
		return &credentials.MemoryStore{}, nil, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return credentials.NewRedisStore(rdb, cfg.Key, storeLog), rdb, nil
	default:
		store, err := credentials.NewFileStore(cfg.Path, cfg.Key, storeLog)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
