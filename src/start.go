package appsetgate

import (
	"context"
	"path/filepath"
	"time"

	"cirello.io/oversight"
	"github.com/adrg/xdg"
	"github.com/google/go-github/v61/github"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/argoproj-labs/appset-gate/src/application/component/web"
	"github.com/argoproj-labs/appset-gate/src/application/service"
	"github.com/argoproj-labs/appset-gate/src/config"
	"github.com/argoproj-labs/appset-gate/src/domain/repository"
	"github.com/argoproj-labs/appset-gate/src/infrastructure/persistence"
)

type StartCmd struct {
	WebListen    string `arg:"--web-listen,env:APPSET_GATE_WEB_LISTEN" default:":8080"`
	WebTokenFile string `arg:"--web-token-file,env:APPSET_GATE_WEB_TOKEN_FILE" help:"file that contains the bearer token ArgoCD authenticates with"`

	StateDir       string `arg:"--state-dir,env:APPSET_GATE_STATE_DIR" help:"directory for the file-backed state store; ignored when DATABASE_URL is set"`
	StateDirCreate bool   `arg:"--state-dir-create" help:"create the state directory if it is missing"`

	GithubTokenFile string        `arg:"--github-token-file,env:GITHUB_TOKEN_FILE" help:"file that contains the GitHub access token; falls back to GITHUB_TOKEN"`
	GithubBaseUrl   string        `arg:"--github-base-url,env:GITHUB_BASE_URL" help:"GitHub Enterprise base URL"`
	ProviderTimeout time.Duration `arg:"--provider-timeout,env:APPSET_GATE_PROVIDER_TIMEOUT" default:"30s" help:"bound on one CI-status lookup"`

	LogDb bool `arg:"--log-db"`
}

func (cmd *StartCmd) Run(logger *zerolog.Logger) error {
	instance, err := NewInstance(cmd, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	return instance.Run(context.Background())
}

type InstanceOpts interface {
	NewStateRepository(*zerolog.Logger) (repository.StateRepository, *pgxpool.Pool, error)
	NewGithubClient(*zerolog.Logger) (*github.Client, error)
	GetProviderTimeout() time.Duration
	GetWebOpts() InstanceWebOpts
}

type InstanceWebOpts struct {
	ListenAddr string
	TokenFile  string
}

func (cmd StartCmd) NewStateRepository(logger *zerolog.Logger) (repository.StateRepository, *pgxpool.Pool, error) {
	if config.HasDb() {
		db, err := config.DBConnection(logger, cmd.LogDb)
		if err != nil {
			return nil, nil, err
		}
		stateRepository, err := persistence.NewPostgresStateRepository(context.Background(), db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return stateRepository, db, nil
	}

	dir := cmd.StateDir
	createMissing := cmd.StateDirCreate
	if dir == "" {
		// An unconfigured directory is ours to create.
		dir = filepath.Join(xdg.StateHome, "appset-gate")
		createMissing = true
	}
	stateRepository, err := persistence.NewFileStateRepository(dir, createMissing)
	return stateRepository, nil, err
}

func (cmd StartCmd) NewGithubClient(logger *zerolog.Logger) (*github.Client, error) {
	return config.NewGithubClient(cmd.GithubTokenFile, cmd.GithubBaseUrl, logger)
}

func (cmd StartCmd) GetProviderTimeout() time.Duration {
	return cmd.ProviderTimeout
}

func (cmd StartCmd) GetWebOpts() InstanceWebOpts {
	return InstanceWebOpts{
		ListenAddr: cmd.WebListen,
		TokenFile:  cmd.WebTokenFile,
	}
}

func NewInstance(opts InstanceOpts, logger *zerolog.Logger) (Instance, error) {
	instance := Instance{logger: logger}

	stateRepository, db, err := opts.NewStateRepository(logger)
	if err != nil {
		return instance, err
	}
	instance.db = db

	githubClient, err := opts.NewGithubClient(logger)
	if err != nil {
		return instance, err
	}

	stateService := service.NewStateService(stateRepository, logger)
	checkService := service.NewGithubCheckService(githubClient, logger)
	decisionService := service.NewDecisionService(stateService, checkService, opts.GetProviderTimeout(), logger)

	webOpts := opts.GetWebOpts()
	cfg, err := config.NewWebConfig(webOpts.ListenAddr, webOpts.TokenFile)
	if err != nil {
		return instance, err
	}
	instance.Web = &web.Web{
		Config:          cfg,
		Logger:          logger.With().Str("component", "Web").Logger(),
		DecisionService: decisionService,
	}

	return instance, nil
}

type Instance struct {
	Web *web.Web

	logger *zerolog.Logger
	db     *pgxpool.Pool
}

func (self Instance) Close() {
	if self.db != nil {
		self.db.Close()
	}
}

func (self Instance) Run(ctx context.Context) error {
	self.logger.Info().Msg("Starting components")

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: self.logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	if err := supervisor.Add(self.Web.Start); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}

	<-ctx.Done()
	return nil
}
