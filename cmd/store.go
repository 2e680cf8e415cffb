package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/ianpcook/agent-crm/internal/apply"
	"github.com/ianpcook/agent-crm/internal/config"
	"github.com/ianpcook/agent-crm/internal/store"
	sfpkg "github.com/ianpcook/agent-crm/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "crm.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("postgres database url is required (CRM_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and makes sure the schema exists.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (CRM_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf,
		sfpkg.WithRateLimit(cfg.Salesforce.RateLimit),
		sfpkg.WithRetry(cfg.Salesforce.MaxRetries),
	), nil
}

// initSink builds the apply sink by name. The local sink writes to st.
func initSink(name string, st store.Store) (apply.Sink, error) {
	if name == "" {
		name = cfg.Apply.DefaultSink
	}
	switch name {
	case config.SinkLocal:
		return apply.NewLocalSink(st), nil
	case config.SinkSalesforce:
		if err := cfg.Validate(config.SinkSalesforce); err != nil {
			return nil, err
		}
		client, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		return apply.NewSalesforceSink(client, nil), nil
	default:
		return nil, eris.Errorf("unknown sink %q (want %s or %s)", name, config.SinkLocal, config.SinkSalesforce)
	}
}
