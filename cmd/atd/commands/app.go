package commands

import (
	"context"
	"log/slog"
	"path/filepath"

	"atdkit/lib/configutil"
	"atdkit/lib/credstore"
	"atdkit/lib/kvstore"
	"atdkit/lib/notify"
	"atdkit/lib/scrapers/atd/core"
	"atdkit/lib/serviceutil"

	"github.com/mazen160/go-random"
)

type NotifyConfig struct {
	Smtp notify.SmtpConfig `json:"smtp"`
	To   string            `json:"to"`
}

type Config struct {
	AppBaseUrl string       `json:"app_base_url"`
	IdBaseUrl  string       `json:"id_base_url"`
	DataDir    string       `json:"data_dir"`
	Notify     NotifyConfig `json:"notify"`
}

// app bundles everything a command needs, open once per invocation.
type app struct {
	cfg      Config
	kv       kvstore.Store
	core     *core.Client
	notifier notify.Notifier
}

func setup(ctx context.Context) *app {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config.json5", err)
	}
	if cfg.AppBaseUrl == "" || cfg.IdBaseUrl == "" {
		serviceutil.Fatal("config.json5 must set app_base_url and id_base_url", nil)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = ".dev/atd"
	}

	kv, err := kvstore.Open(filepath.Join(cfg.DataDir, "kv"))
	if err != nil {
		serviceutil.Fatal("failed to open key-value store", err)
	}

	client, err := core.NewClient(ctx, core.ClientOptions{
		AppBaseUrl:  cfg.AppBaseUrl,
		IdBaseUrl:   cfg.IdBaseUrl,
		Store:       kv,
		AutoRelogin: true,
		Credentials: credstore.Get,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}

	slog.Debug("initialized", "install", installId(ctx, kv))

	return &app{
		cfg:      cfg,
		kv:       kv,
		core:     client,
		notifier: notify.New(cfg.Notify.Smtp, cfg.Notify.To),
	}
}

func (a *app) Close() {
	err := a.kv.Close()
	if err != nil {
		slog.Warn("failed to close key-value store", "err", err)
	}
}

func (a *app) attendanceDbPath() string {
	return filepath.Join(a.cfg.DataDir, "attendance.db")
}

// installId identifies this installation in logs and notifications,
// generated once and kept forever.
func installId(ctx context.Context, kv kvstore.Store) string {
	record, err := kv.Get(ctx, "install:id")
	if err == nil {
		return string(record.Value)
	}
	id, err := random.String(16)
	if err != nil {
		return "unknown"
	}
	err = kv.Set(ctx, "install:id", []byte(id))
	if err != nil {
		slog.Warn("failed to persist install id", "err", err)
	}
	return id
}
