package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agilefinance/boletoflow/internal/db"
)

var (
	cfgFile    string
	dsn        string
	timeout    time.Duration
	outputJSON bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boletoctl",
	Short: "boletoctl - operate the boletoflow task queue",
	Long: `boletoctl is a command line tool for operating the boletoflow
asynchronous task queue.

You can use it to enqueue tasks, inspect the queue and its execution
logs, read queue metrics, and reset boletos stuck in the error state so
they can be re-issued.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.boletoctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres connection string (falls back to DATABASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "command timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	// Bind flags to viper
	viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".boletoctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if !rootCmd.PersistentFlags().Changed("dsn") {
		if s := viper.GetString("dsn"); s != "" {
			dsn = s
		} else if s := os.Getenv("DATABASE_URL"); s != "" {
			dsn = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
}

// connect opens a pool for the duration of one command.
func connect() (context.Context, *pgxpool.Pool, func(), error) {
	if dsn == "" {
		return nil, nil, nil, fmt.Errorf("no DSN configured (use --dsn or DATABASE_URL)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.Connect(ctx, dsn, 2)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	cleanup := func() {
		pool.Close()
		cancel()
	}
	return ctx, pool, cleanup, nil
}

// printOutput prints the response in the requested format
func printOutput(v interface{}) {
	if outputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%+v\n", v)
}
