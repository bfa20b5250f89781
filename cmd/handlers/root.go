package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/store"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spectra",
		Short: "Spectra compares how newspapers around the world cover the same story.",
		Long: `Spectra crawls newspaper category pages worldwide, translates and embeds
their headlines, mines the day's dominant topics and analyzes how each
country's coverage sits on the topic's axis of debate.

The pipeline stages run as separate subcommands so each can be scheduled
independently:

  sync       load the newspaper registry into the database
  crawl      collect article links from category pages
  translate  translate headlines into English
  embed      embed translated headlines for semantic search
  topics     cluster recent headlines into daily topics
  precompute run spectrum analysis for freshly mined topics
  relations  extract which country each headline is about
  pipeline   run translate, embed, topics and precompute in order
  serve      expose the query API over HTTP`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.spectra.yaml)")

	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewCrawlCmd())
	rootCmd.AddCommand(NewTranslateCmd())
	rootCmd.AddCommand(NewEmbedCmd())
	rootCmd.AddCommand(NewTopicsCmd())
	rootCmd.AddCommand(NewPrecomputeCmd())
	rootCmd.AddCommand(NewRelationsCmd())
	rootCmd.AddCommand(NewPipelineCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// connectStore opens the database from configuration.
func connectStore() (*store.Store, error) {
	url := config.Get().Database.URL
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return store.Connect(url)
}
