package main

import (
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		// Credentials stay out of terminal scrollback.
		if shown.Loader.FTPPassword != "" {
			shown.Loader.FTPPassword = "***"
		}
		if shown.Store.DatabaseURL != "" {
			shown.Store.DatabaseURL = redactDSN(shown.Store.DatabaseURL)
		}

		data, err := yaml.Marshal(shown)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		fmt.Print(string(data))
		return nil
	},
}

// redactDSN masks the password component of a connection string.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
