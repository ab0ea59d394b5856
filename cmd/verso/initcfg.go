package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/versobook/verso/internal/config"
	"github.com/versobook/verso/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the verso home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}
		if dir.ConfigExists() && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dir.ConfigPath())
		}

		if err := config.WriteDefault(dir.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", dir.ConfigPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
