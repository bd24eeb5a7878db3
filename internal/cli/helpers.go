package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pvannier/recall/internal/remote"
	"github.com/pvannier/recall/internal/scheduler"
	"github.com/pvannier/recall/internal/service"
	"github.com/pvannier/recall/internal/store"
	syncpkg "github.com/pvannier/recall/internal/sync"
)

// session bundles the open store, service and optional reconciler for
// one command invocation.
type session struct {
	store   *store.Store
	service *service.Service
	recon   *syncpkg.Reconciler
}

func (s *session) close() {
	if s.recon != nil {
		s.recon.Close()
	}
	s.store.Close()
}

// openSession opens the local store and builds the service. When the
// config has a remote endpoint and withRemote is set, a reconciler is
// wired in as the service notifier.
func openSession(withRemote bool) (*session, error) {
	vaultPath := getVaultPath()

	st, err := store.Open(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	engine, err := scheduler.New(scheduler.Params{
		DesiredRetention: cfg.Scheduler.DesiredRetention,
		MaximumInterval:  cfg.Scheduler.MaximumIntervalDays,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	svc, err := service.New(service.Options{
		VaultPath: vaultPath,
		Store:     st,
		Engine:    engine,
		Logger:    logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	sess := &session{store: st, service: svc}

	if withRemote && cfg.Remote.Endpoint != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL: cfg.Remote.Endpoint,
			Token:   cfg.Remote.Token,
		})
		if err != nil {
			sess.close()
			return nil, err
		}
		recon := syncpkg.NewReconciler(client, st, svc, syncpkg.Options{
			Concurrency: cfg.Sync.Concurrency,
			Logger:      logger,
		})
		sess.recon = recon
		svc.SetNotifier(recon)
	}

	return sess, nil
}
