package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/yomu-app/koe/internal/config"
)

var configPrint bool

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the koe config file",
	Long:    paragraph(fmt.Sprintf("\n%s the koe config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("koe config\nkoe config --config path/to/config.yml\nkoe config --print"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configPrint {
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}

		path := configFile
		if path == "" {
			path = cfg.File
		}
		if path == "" {
			var err error
			if path, err = config.DefaultFile(); err != nil {
				return err
			}
		}
		if err := config.EnsureFile(path); err != nil {
			return err
		}

		c, err := editor.Cmd("koe", path)
		if err != nil {
			return fmt.Errorf("no editor for %s: %w", path, err)
		}
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr()
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor exited: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), faint("config: "+path))
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configPrint, "print", false, "print the effective configuration instead of editing")
}
