package util

import (
	"context"
	"github.com/ValentinKolb/lmstore/lib/common"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/ValentinKolb/lmstore/lib/store/fstore"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var log = logger.GetLogger(common.LoggerCmd)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the store configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "root"
	cmd.PersistentFlags().String(key, common.DefaultRootDir, WrapString("Root directory of the store, every layer is kept in its own sub directory"))

	key = "flush-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultFlushInterval, WrapString("How often pending changes are written to disk"))

	key = "expire-after-access"
	cmd.PersistentFlags().Duration(key, common.DefaultExpireAfterAccess, WrapString("How long an unused layer without pending changes stays in memory"))

	key = "max-rw-attempts"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum attempts for reading or writing a metadata file (reserved, not enforced)"))

	key = "wait-after-rename"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Wait time after renaming a metadata file (reserved, not enforced)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, common.DefaultLogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("lms")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() common.StoreConfig {
	return common.StoreConfig{
		RootDir:           viper.GetString("root"),
		FlushInterval:     viper.GetDuration("flush-interval"),
		ExpireAfterAccess: viper.GetDuration("expire-after-access"),
		MaxRWAttempts:     viper.GetInt("max-rw-attempts"),
		WaitAfterRename:   viper.GetDuration("wait-after-rename"),
		LogLevel:          viper.GetString("log-level"),
	}
}

// OpenStore initializes the loggers and opens the configured store
func OpenStore() (store.IStore, error) {
	config := GetStoreConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, err
	}

	s, err := fstore.NewFileStore(config)
	if err != nil {
		return nil, err
	}
	log.Debugf("opened store with configuration:\n%s", config.String())
	return s, nil
}

// WithStore opens the configured store, runs fn and closes the store again.
// Close runs the final flush, its error is returned if fn succeeded.
func WithStore(fn func(s store.IStore) error) (err error) {
	s, err := OpenStore()
	if err != nil {
		return err
	}

	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	return fn(s)
}

// ShutdownContext returns a context that is cancelled on SIGINT or SIGTERM.
// Long running commands stop their work when it is done and return normally, so the
// store is closed (and flushed) by WithStore. The returned stop function releases the
// signal handler.
func ShutdownContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
