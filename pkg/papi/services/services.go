package services

import (
	"github.com/quatton/paydesk/pkg/kv"
	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/papi/services/auth"
	"github.com/quatton/paydesk/pkg/papi/services/iam"
	"github.com/quatton/paydesk/pkg/papi/services/ledger"
	"github.com/quatton/paydesk/pkg/plog"
	"github.com/uptrace/bun"
)

type Services struct {
	Auth   *auth.AuthService
	IAM    *iam.IAMService
	Ledger *ledger.Ledger
}

// NewServices builds the backend services. A nil db keeps the ledger in
// memory.
func NewServices(cfg *config.EnvConfig, db *bun.DB, kvStore kv.Store, log *plog.Logger) (*Services, error) {
	opts, err := ledger.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	book := ledger.New(opts)
	if db != nil {
		book = ledger.NewWithDB(opts, db)
	}

	authSvc, err := auth.NewAuthService(cfg, kvStore, book, log)
	if err != nil {
		return nil, err
	}
	iamSvc := iam.NewIAMService(authSvc, log)

	return &Services{
		Auth:   authSvc,
		IAM:    iamSvc,
		Ledger: book,
	}, nil
}
