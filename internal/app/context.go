package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"trakka/internal/config"
	"trakka/internal/db"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/migrate"
)

// Workspace is an opened, migrated trakka directory.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
	Auth   auth.Service
}

// Open migrates the workspace database, loads trakka.yml and makes sure the
// configured bootstrap admins exist.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*Workspace, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if logger != nil {
		eng.Logger = logger
	}
	if err := eng.BootstrapAdmins(ctx, cfg.Bootstrap.Admins); err != nil {
		conn.Close()
		return nil, err
	}
	return &Workspace{Dir: dir, DB: conn, Config: cfg, Engine: eng, Auth: auth.Service{DB: conn}}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// ResolveActor looks up the stored role of actorID.
func (w *Workspace) ResolveActor(ctx context.Context, actorID string) (auth.Actor, error) {
	if strings.TrimSpace(actorID) == "" {
		return auth.Actor{}, errors.New("actor not specified; use --actor-id or TRAKKA_ACTOR_ID")
	}
	return w.Auth.ResolveActor(ctx, actorID)
}

// InitOptions describe a new workspace.
type InitOptions struct {
	OrgName  string
	Timezone string
	Admins   []string
	Force    bool
}

// Init writes trakka.yml and prepares the database. An existing config is kept
// unless Force is set.
func Init(ctx context.Context, dir string, opts InitOptions) (*Workspace, error) {
	path := config.Path(dir)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return nil, fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	if _, err := db.EnsureWorkspace(dir); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.OrgName)
	if name == "" {
		name = "trakka"
	}
	cfg := config.Default(name)
	if opts.Timezone != "" {
		cfg.Organization.Timezone = opts.Timezone
	}
	cfg.Bootstrap.Admins = append(cfg.Bootstrap.Admins[:0], opts.Admins...)
	if err := config.Write(dir, cfg); err != nil {
		return nil, err
	}
	return Open(ctx, dir, nil)
}
