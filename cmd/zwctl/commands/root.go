// Package commands implements the zwctl CLI's subcommands.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zwctl",
	Short: "Operate a Z-Wave controller over a serial port",
	Long: `zwctl opens a Z-Wave controller attached over a serial port and lets
you inspect its node table, watch traffic statistics, and drive
controller-administration sequences like adding or removing a node.

Use "zwctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.zwctl.yaml)")
	rootCmd.PersistentFlags().String("port", "/dev/ttyACM0", "serial device path")
	rootCmd.PersistentFlags().Int("baud", 115200, "serial baud rate")
	rootCmd.PersistentFlags().String("cache", "", "config-cache URL (file:///..., azblob://, azqueue://, aztable://)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit JSON log lines instead of text")

	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("baud", rootCmd.PersistentFlags().Lookup("baud"))
	_ = viper.BindPFlag("cache", rootCmd.PersistentFlags().Lookup("cache"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-json", rootCmd.PersistentFlags().Lookup("log-json"))

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(controllerCmd)
}

func initConfig() {
	viper.SetEnvPrefix("ZWCTL")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".zwctl")
		viper.AddConfigPath("$HOME")
	}
	_ = viper.ReadInConfig()
}
