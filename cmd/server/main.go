package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/lookup"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/storage"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const (
	commandUseName                   = "server"
	commandShortDescription          = "Run the reseller CTA server"
	commandLongDescription           = "Serve the reseller lookup API, the widget runtime and pages with the reseller widget injected"
	missingConfigurationMessage      = "missing required configuration"
	invalidConfigurationMessage      = "invalid configuration"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logFieldAddress                  = "addr"
	logFieldUpstream                 = "upstream"
	flagNameApplicationAddress       = "app-addr"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagNameAdminBearerToken         = "admin-bearer-token"
	flagNameWidgetConfig             = "widget-config"
	flagNameUpstreamURL              = "upstream-url"
	flagNameLookupEndpoint           = "lookup-endpoint"
	flagNameLookupTimeout            = "lookup-timeout"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageDatabaseDataSourceName  = "SQLite data source name for reseller storage"
	flagUsageAdminBearerToken        = "bearer token required for admin API access; the admin API is disabled when empty"
	flagUsageWidgetConfig            = "path to a YAML or JSON file with a widget section of overrides"
	flagUsageUpstreamURL             = "host site to reverse-proxy with the widget injected into HTML pages"
	flagUsageLookupEndpoint          = "reseller lookup endpoint base; overrides the widget config endpoint"
	flagUsageLookupTimeout           = "timeout for one reseller lookup"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyWidgetConfig       = "WIDGET_CONFIG"
	environmentKeyUpstreamURL        = "UPSTREAM_URL"
	environmentKeyLookupEndpoint     = "LOOKUP_ENDPOINT"
	environmentKeyLookupTimeout      = "LOOKUP_TIMEOUT"
	defaultApplicationAddress        = ":8080"
	defaultLookupTimeout             = lookup.DefaultTimeout
	demoResellerLimit                = 5
	loggerContextOpenDatabase        = "open_db"
	loggerContextAutoMigrate         = "migrate"
	loggerContextServer              = "server"
	loggerContextDemoResellers       = "demo_resellers"
	readHeaderTimeoutSeconds         = 5
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDataSourceName string
	AdminBearerToken       string
	WidgetConfigPath       string
	UpstreamURL            string
	LookupEndpoint         string
	LookupTimeout          time.Duration
}

// DatabaseOpener opens a database connection using the provided data source name.
type DatabaseOpener func(string) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      openSQLiteDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

func openSQLiteDatabase(dataSourceName string) (*gorm.DB, error) {
	return storage.OpenDatabase(storage.Config{DriverName: storage.DriverNameSQLite, DataSourceName: dataSourceName})
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyAdminBearerToken, flagName: flagNameAdminBearerToken},
	{environmentKey: environmentKeyWidgetConfig, flagName: flagNameWidgetConfig},
	{environmentKey: environmentKeyUpstreamURL, flagName: flagNameUpstreamURL},
	{environmentKey: environmentKeyLookupEndpoint, flagName: flagNameLookupEndpoint},
	{environmentKey: environmentKeyLookupTimeout, flagName: flagNameLookupTimeout},
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, "")
	application.configurationLoader.SetDefault(environmentKeyAdminBearerToken, "")
	application.configurationLoader.SetDefault(environmentKeyWidgetConfig, "")
	application.configurationLoader.SetDefault(environmentKeyUpstreamURL, "")
	application.configurationLoader.SetDefault(environmentKeyLookupEndpoint, "")
	application.configurationLoader.SetDefault(environmentKeyLookupTimeout, defaultLookupTimeout)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameAdminBearerToken, "", flagUsageAdminBearerToken)
	commandFlags.String(flagNameWidgetConfig, "", flagUsageWidgetConfig)
	commandFlags.String(flagNameUpstreamURL, "", flagUsageUpstreamURL)
	commandFlags.String(flagNameLookupEndpoint, "", flagUsageLookupEndpoint)
	commandFlags.Duration(flagNameLookupTimeout, defaultLookupTimeout, flagUsageLookupTimeout)

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range flagBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSourceName); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	return ServerConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		AdminBearerToken:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyAdminBearerToken)),
		WidgetConfigPath:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyWidgetConfig)),
		UpstreamURL:            strings.TrimSpace(application.configurationLoader.GetString(environmentKeyUpstreamURL)),
		LookupEndpoint:         strings.TrimSpace(application.configurationLoader.GetString(environmentKeyLookupEndpoint)),
		LookupTimeout:          application.configurationLoader.GetDuration(environmentKeyLookupTimeout),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	upstreamURL, upstreamErr := parseUpstreamURL(serverConfig.UpstreamURL)
	if upstreamErr != nil {
		return upstreamErr
	}

	overrides, overridesErr := loadWidgetOverrides(serverConfig.WidgetConfigPath)
	if overridesErr != nil {
		return fmt.Errorf("%s: %w", invalidConfigurationMessage, overridesErr)
	}
	if serverConfig.LookupEndpoint != "" {
		overrides[widget.KeyEndpoint] = serverConfig.LookupEndpoint
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(serverConfig.DatabaseDataSourceName)
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	repository := storage.NewResellerRepository(database)
	lookupTimeout := serverConfig.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	lookupClient := lookup.NewClient(&http.Client{Timeout: lookupTimeout}, logger, lookup.DefaultCacheTTL)
	injector := httpapi.NewWidgetInjector(widget.Resolve(overrides), lookupClient, logger, httpapi.DefaultWidgetScriptURL, lookupTimeout)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	registerPublicRoutes(router,
		httpapi.NewResellerLookupHandlers(repository, logger),
		httpapi.NewPublicJavaScriptHandlers(logger),
		httpapi.NewWidgetPageHandlers(injector, logger, demoResellerIDs(repository, logger)),
	)
	registerAdminRoutes(router, httpapi.NewResellerAdminHandlers(repository, logger), serverConfig.AdminBearerToken)
	if upstreamURL != nil {
		registerProxyRoute(router, httpapi.NewInjectingProxy(upstreamURL, injector, logger))
		logger.Info("proxy_enabled", zap.String(logFieldUpstream, upstreamURL.String()))
	}

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal(loggerContextServer, zap.Error(serveErr))
	}

	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func parseUpstreamURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, nil
	}
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%s: %s %q", invalidConfigurationMessage, flagNameUpstreamURL, rawURL)
	}
	return parsed, nil
}

// demoResellerIDs picks the first stored resellers for the demo page navigation.
func demoResellerIDs(repository *storage.ResellerRepository, logger *zap.Logger) []string {
	resellers, listErr := repository.List(context.Background())
	if listErr != nil {
		logger.Warn(loggerContextDemoResellers, zap.Error(listErr))
		return nil
	}
	identifiers := make([]string, 0, demoResellerLimit)
	for _, reseller := range resellers {
		if len(identifiers) == demoResellerLimit {
			break
		}
		identifiers = append(identifiers, strconv.FormatUint(reseller.ID, 10))
	}
	return identifiers
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
