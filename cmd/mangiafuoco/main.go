package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mangiafuoco",
	Short: "Run map/reduce prompt workflows over data sources",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("MANGIAFUOCO")
	viper.AutomaticEnv()
	_ = viper.BindEnv("openai-api-key", "OPENAI_API_KEY")

	rootCmd.AddCommand(newRunCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
