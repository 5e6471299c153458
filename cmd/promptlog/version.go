package main

import (
	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var outputFormat string
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := version.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			s, err := version.Get().Render(f)
			if err != nil {
				return err
			}
			a.printf("%s\n", s)
			return nil
		},
	}
	versionCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "输出格式 (text, json, short)")
	return versionCmd
}
