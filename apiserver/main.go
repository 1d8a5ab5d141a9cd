package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	apiconfig "github.com/icplabs/subaccount-sweeper/apiserver/config"
	"github.com/icplabs/subaccount-sweeper/apiserver/controllers"
	"github.com/icplabs/subaccount-sweeper/apiserver/routes"
	"github.com/icplabs/subaccount-sweeper/apiserver/services"
	"github.com/icplabs/subaccount-sweeper/core"
	"github.com/icplabs/subaccount-sweeper/pkg/config"
)

func buildEngine() (*core.Engine, error) {
	cfg, err := config.Load(apiconfig.AppConfig.ConfigEnv)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}

	owner, err := core.ParsePrincipal(cfg.Ledger.OwnerPrincipal)
	if err != nil {
		return nil, fmt.Errorf("parse owner principal: %w", err)
	}

	store, err := core.NewFileKVStore(cfg.Storage.WALPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	interval := time.Duration(cfg.Ledger.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 500 * time.Second
	}

	engine := core.NewEngine(core.EngineConfig{
		Owner:        owner,
		Store:        store,
		PollInterval: interval,
	})
	initCaller := owner
	if cfg.Ledger.CustodianPrincipal != "" {
		custodian, err := core.ParsePrincipal(cfg.Ledger.CustodianPrincipal)
		if err != nil {
			return nil, fmt.Errorf("parse custodian principal: %w", err)
		}
		initCaller = custodian
	}
	engine.Init(initCaller, cfg.Ledger.StartingNonce)
	if cfg.Webhook.URL != "" {
		engine.Cells.SetWebhookURL(cfg.Webhook.URL)
	}

	pool := core.NewRPCPool(5 * time.Minute)
	for _, tc := range cfg.Ledger.Tokens {
		token, err := core.ParseTokenType(tc.Token)
		if err != nil {
			return nil, err
		}
		principal, err := core.ParsePrincipal(tc.Principal)
		if err != nil {
			return nil, fmt.Errorf("parse %s principal: %w", tc.Token, err)
		}
		engine.RegisterToken(core.TokenLedger{
			Token:     token,
			Principal: principal,
			Client:    core.NewHTTPLedgerClient(tc.Principal, pool),
		})
	}
	return engine, nil
}

func main() {
	if err := apiconfig.Load(); err != nil {
		logrus.Fatal(err)
	}

	engine, err := buildEngine()
	if err != nil {
		logrus.Fatal(err)
	}
	engine.PostUpgrade(context.Background())

	svc := services.NewEngineService(core.NewService(engine))
	ctrl := controllers.NewEngineController(svc)

	r := chi.NewRouter()
	routes.Register(r, ctrl)

	logrus.Infof("subaccount-sweeper admin API listening on %s", apiconfig.AppConfig.Port)
	if err := http.ListenAndServe(":"+apiconfig.AppConfig.Port, r); err != nil {
		logrus.Fatal(err)
	}
}
