package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/kpi-screener/internal/fetch"
	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/internal/store"
	"github.com/sells-group/kpi-screener/pkg/borsdata"
	"github.com/sells-group/kpi-screener/pkg/refinitiv"
)

// screenEnv holds the initialized store and fetcher shared by the screen,
// universe, kpis, and serve commands.
type screenEnv struct {
	Store   store.Store
	Fetcher *fetch.Fetcher
}

// Close releases resources held by the environment.
func (e *screenEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the cache store and the configured data provider.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*screenEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider, err := initProvider()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fetcher := fetch.New(provider,
		fetch.WithStore(st, time.Duration(cfg.Cache.TTLHours)*time.Hour),
		fetch.WithParallelism(cfg.Screen.FetchParallelism),
	)
	return &screenEnv{Store: st, Fetcher: fetcher}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using sqlite store", zap.String("path", cfg.Store.DatabaseURL))
		return s, nil
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using postgres store")
		return s, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initProvider() (fetch.Provider, error) {
	switch cfg.Provider {
	case "borsdata":
		if cfg.Borsdata.Key == "" {
			return nil, eris.New("SCREENER_BORSDATA_KEY not set")
		}
		client := borsdata.NewClient(cfg.Borsdata.Key, borsdata.WithBaseURL(cfg.Borsdata.BaseURL))
		return fetch.NewBorsdata(client), nil

	case "refinitiv":
		if cfg.Refinitiv.Username == "" || cfg.Refinitiv.Password == "" {
			return nil, eris.New("refinitiv credentials not set")
		}

		var universe []model.Instrument
		if err := loadYAML(cfg.Refinitiv.UniverseFile, &universe); err != nil {
			return nil, eris.Wrap(err, "load refinitiv universe")
		}
		var kpis []model.KPIMeta
		if err := loadYAML(cfg.Refinitiv.KPIFile, &kpis); err != nil {
			return nil, eris.Wrap(err, "load refinitiv kpi list")
		}

		client := refinitiv.NewClient(cfg.Refinitiv.Username, cfg.Refinitiv.Password,
			refinitiv.WithBaseURL(cfg.Refinitiv.BaseURL))
		return fetch.NewRefinitiv(client, universe, kpis), nil

	default:
		return nil, eris.Errorf("unknown provider %q", cfg.Provider)
	}
}

// loadRequest reads a screening request from a YAML file.
func loadRequest(path string) (*model.ScreeningRequest, error) {
	var req model.ScreeningRequest
	if err := loadYAML(path, &req); err != nil {
		return nil, eris.Wrap(err, "load screening request")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func loadYAML(path string, out any) error {
	if path == "" {
		return eris.New("no file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "read file")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "parse yaml")
	}
	return nil
}
