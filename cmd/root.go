package cmd

import (
	"video-uploader/config"

	"github.com/spf13/cobra"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-uploader",
		Short: "record, upload and sync videos",
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(upload(config))
	return rootCmd
}
