package commands

import (
	"fmt"
	"time"

	zwave "github.com/cpchain-network/gozwave"
	"github.com/cpchain-network/gozwave/internal/logging"
	"github.com/cpchain-network/gozwave/serial"
	"github.com/spf13/viper"

	// Registers the bundled command-class handlers on import.
	_ "github.com/cpchain-network/gozwave/cc"
)

// openDriver opens the serial port and Driver named by the persistent
// flags/config, waiting up to readyTimeout for the init handshake to
// finish before returning.
func openDriver(readyTimeout time.Duration) (*zwave.Driver, error) {
	port, err := serial.Open(viper.GetString("port"), serial.Options{Baud: viper.GetInt("baud")})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	logger := zwave.NewLogger(logging.Config{
		Level: logging.ParseLevel(viper.GetString("log-level")),
		JSON:  viper.GetBool("log-json"),
	})

	opts := []zwave.Option{zwave.WithLogger(logger)}
	if cacheURL := viper.GetString("cache"); cacheURL != "" {
		cache, err := zwave.OpenConfigCache(cacheURL)
		if err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("open config cache: %w", err)
		}
		opts = append(opts, zwave.WithConfigCache(cache))
	}

	driver := zwave.Open(port, opts...)

	ready := make(chan struct{}, 1)
	driver.Notify(func(n zwave.Notification) {
		if n.Type == zwave.NotifyDriverReady {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})

	select {
	case <-ready:
	case <-time.After(readyTimeout):
		return driver, fmt.Errorf("timed out waiting for controller init handshake")
	}
	return driver, nil
}
