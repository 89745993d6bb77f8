package cmd

import (
	"errors"
	"fmt"
	"video-uploader/config"
	server2 "video-uploader/server"

	"github.com/spf13/cobra"
)

func upload(config *config.Config) *cobra.Command {
	var file, title, token string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "record a local video file and upload it",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := server2.RunUpload(config, file, title, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.ID, res.Status)
			if res.Error != "" {
				return errors.New(res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path of the local video file")
	cmd.Flags().StringVar(&title, "title", "", "video title")
	cmd.Flags().StringVar(&token, "token", "", "signed session token")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
