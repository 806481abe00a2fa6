package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/internal/infrastructure/blocksat"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Datadir           string
	HTTPPort          uint32
	LogLevel          uint32
	Network           domain.Network
	DbType            string
	SatelliteURL      string
	SwapURL           string
	EsploraURL        string
	WalletType        string
	BitcoindHost      string
	BitcoindUser      string
	BitcoindPassword  string
	LndURL            string
	StartBidRate      uint64
	MaxBidRate        uint64
	ReserveRatio      decimal.Decimal
	RefundAddressType ports.AddressType
	ReconcileInterval time.Duration
	SentryDSN         string
}

var (
	Datadir           = "DATADIR"
	HTTPPort          = "HTTP_PORT"
	LogLevel          = "LOG_LEVEL"
	Network           = "NETWORK"
	DbType            = "DB_TYPE"
	SatelliteURL      = "SATELLITE_URL"
	SwapURL           = "SWAP_URL"
	EsploraURL        = "ESPLORA_URL"
	WalletType        = "WALLET_TYPE"
	BitcoindHost      = "BITCOIND_HOST"
	BitcoindUser      = "BITCOIND_USER"
	BitcoindPassword  = "BITCOIND_PASSWORD"
	LndURL            = "LND_URL"
	StartBidRate      = "START_BID_RATE"
	MaxBidRate        = "MAX_BID_RATE"
	ReserveRatio      = "RESERVE_RATIO"
	RefundAddressType = "REFUND_ADDRESS_TYPE"
	ReconcileInterval = "RECONCILE_INTERVAL"
	SentryDSN         = "SENTRY_DSN"

	defaultDatadir           = appDatadir("satsub", false)
	defaultHTTPPort          = 7070
	defaultLogLevel          = 4
	defaultNetwork           = string(domain.NetworkTestnet)
	defaultDbType            = "badger"
	defaultWalletType        = "bitcoind"
	defaultBitcoindHost      = "localhost:18332"
	defaultStartBidRate      = domain.DefaultStartBidRate
	defaultMaxBidRate        = domain.DefaultMaxBidRate
	defaultReserveRatio      = "0.02"
	defaultRefundAddressType = string(ports.AddressLegacy)
	defaultReconcileInterval = 10 * time.Minute

	supportedDbTypes     = map[string]struct{}{"badger": {}, "sqlite": {}}
	supportedWalletTypes = map[string]struct{}{"bitcoind": {}, "lnd": {}}

	defaultEsploraURLs = map[domain.Network]string{
		domain.NetworkTestnet: "https://blockstream.info/testnet/api",
		domain.NetworkMainnet: "https://blockstream.info/api",
	}
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("SATSUB")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(HTTPPort, defaultHTTPPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(WalletType, defaultWalletType)
	viper.SetDefault(BitcoindHost, defaultBitcoindHost)
	viper.SetDefault(StartBidRate, defaultStartBidRate)
	viper.SetDefault(MaxBidRate, defaultMaxBidRate)
	viper.SetDefault(ReserveRatio, defaultReserveRatio)
	viper.SetDefault(RefundAddressType, defaultRefundAddressType)
	viper.SetDefault(ReconcileInterval, defaultReconcileInterval)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	network, err := domain.ParseNetwork(viper.GetString(Network))
	if err != nil {
		return nil, err
	}
	reserveRatio, err := decimal.NewFromString(viper.GetString(ReserveRatio))
	if err != nil {
		return nil, fmt.Errorf("invalid reserve ratio: %s", err)
	}
	addrType, err := ports.ParseAddressType(viper.GetString(RefundAddressType))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Datadir:           cleanAndExpandPath(viper.GetString(Datadir)),
		HTTPPort:          viper.GetUint32(HTTPPort),
		LogLevel:          viper.GetUint32(LogLevel),
		Network:           network,
		DbType:            viper.GetString(DbType),
		SatelliteURL:      viper.GetString(SatelliteURL),
		SwapURL:           viper.GetString(SwapURL),
		EsploraURL:        viper.GetString(EsploraURL),
		WalletType:        viper.GetString(WalletType),
		BitcoindHost:      viper.GetString(BitcoindHost),
		BitcoindUser:      viper.GetString(BitcoindUser),
		BitcoindPassword:  viper.GetString(BitcoindPassword),
		LndURL:            viper.GetString(LndURL),
		StartBidRate:      viper.GetUint64(StartBidRate),
		MaxBidRate:        viper.GetUint64(MaxBidRate),
		ReserveRatio:      reserveRatio,
		RefundAddressType: addrType,
		ReconcileInterval: viper.GetDuration(ReconcileInterval),
		SentryDSN:         viper.GetString(SentryDSN),
	}
	if len(config.SatelliteURL) == 0 {
		config.SatelliteURL = blocksat.DefaultURL(network)
	}
	if len(config.EsploraURL) == 0 {
		config.EsploraURL = defaultEsploraURLs[network]
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, ok := supportedDbTypes[c.DbType]; !ok {
		return fmt.Errorf("unsupported db type %s, must be one of badger, sqlite", c.DbType)
	}
	if _, ok := supportedWalletTypes[c.WalletType]; !ok {
		return fmt.Errorf("unsupported wallet type %s, must be one of bitcoind, lnd", c.WalletType)
	}
	if len(c.SwapURL) == 0 {
		return fmt.Errorf("missing swap server url")
	}
	if c.WalletType == "lnd" && len(c.LndURL) == 0 {
		return fmt.Errorf("missing lndconnect url for lnd wallet")
	}
	if c.StartBidRate == 0 {
		return fmt.Errorf("start bid rate must be greater than zero")
	}
	if c.StartBidRate > c.MaxBidRate {
		return fmt.Errorf(
			"start bid rate %d must not exceed max bid rate %d", c.StartBidRate, c.MaxBidRate,
		)
	}
	if c.ReserveRatio.IsNegative() {
		return fmt.Errorf("reserve ratio must not be negative")
	}
	return nil
}

// AppConfig returns the tunables of the order saga, anything not set by the
// env keeps its default value.
func (c *Config) AppConfig() application.Config {
	cfg := application.DefaultConfig()
	cfg.Network = c.Network
	cfg.StartBidRate = c.StartBidRate
	cfg.MaxBidRate = c.MaxBidRate
	cfg.ReserveRatio = decimal.NewNullDecimal(c.ReserveRatio)
	cfg.RefundAddressType = c.RefundAddressType
	if c.ReconcileInterval > 0 {
		cfg.ReconcileInterval = c.ReconcileInterval
	}
	return cfg
}

func (c *Config) DbDir() string {
	return filepath.Join(c.Datadir, "db")
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// appDataDir returns an operating system specific directory to be used for
// storing application data for an application.  See AppDataDir for more
// details.  This unexported version takes an operating system argument
// primarily to enable the testing package to properly test the function by
// forcing an operating system that is not the currently one.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	// The caller really shouldn't prepend the appName with a period, but
	// if they do, handle it gracefully by trimming it.
	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	// Get the OS specific home directory via the Go standard lib.
	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}

	// Fall back to standard HOME environment variable that works
	// for most POSIX OSes if the directory from the Go standard
	// lib failed.
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	goos := runtime.GOOS
	switch goos {
	// Attempt to use the LOCALAPPDATA or APPDATA environment variable on
	// Windows.
	case "windows":
		// Windows XP and before didn't have a LOCALAPPDATA, so fallback
		// to regular APPDATA when LOCALAPPDATA is not set.
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}

		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}

	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library",
				"Application Support", appNameUpper)
		}

	case "plan9":
		if homeDir != "" {
			return filepath.Join(homeDir, appNameLower)
		}

	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	// Fall back to the current directory if all else fails.
	return "."
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
