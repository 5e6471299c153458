package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/telemetry"
)

func newFeedbackCmd(a *app) *cobra.Command {
	var (
		fb     telemetry.Feedback
		rating float64
	)
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "为一次已记录的调用提交反馈",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rating") {
				if rating < 0 || rating > 1 {
					return errors.New("--rating must be between 0 and 1")
				}
				fb.Rating = &rating
			}

			sender, err := telemetry.NewHTTPSender(
				telemetry.WithEndpoints(telemetry.Endpoints{
					ReportingURL: a.settings.ReportingURL,
					FeedbackURL:  a.settings.FeedbackURL,
					APIPrefix:    a.settings.APIPrefix,
				}),
				telemetry.WithDefaultAPIKey(a.settings.APIKey),
				telemetry.WithSenderLogger(a.logger),
			)
			if err != nil {
				return err
			}
			if err := sender.SendFeedback(cmd.Context(), fb); err != nil {
				return err
			}
			a.printf("feedback sent for %s\n", fb.FeedbackKey)
			return nil
		},
	}
	f := feedbackCmd.Flags()
	f.StringVarP(&fb.FeedbackKey, "key", "k", "", "调用返回的 feedback key")
	f.Float64VarP(&rating, "rating", "r", 0, "评分，0 到 1")
	f.StringVar(&fb.BetterResponse, "better", "", "更好的回答")
	f.BoolVar(&fb.IsDeleted, "deleted", false, "撤销之前的反馈")
	_ = feedbackCmd.MarkFlagRequired("key")
	return feedbackCmd
}
