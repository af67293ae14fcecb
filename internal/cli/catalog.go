package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"quiz-portal/internal/api"
	"quiz-portal/internal/config"
	"quiz-portal/internal/domain"
	"github.com/spf13/cobra"
)

// NewCatalogCmd prints the quiz catalog as the API reports it.
func NewCatalogCmd(configPath *string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List quizzes available on the quiz API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			client := api.New(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second)).WithToken(token)
			quizzes, err := client.ListQuizzes(cmd.Context())
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), quizzes)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token to list quizzes as a signed-in user")
	return cmd
}

func printCatalog(w io.Writer, quizzes []domain.Quiz) error {
	if len(quizzes) == 0 {
		_, err := fmt.Fprintln(w, "no quiz available")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTITLE\tQUESTIONS\tSECONDS")
	for _, q := range quizzes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", q.Slug, q.Title, q.QuestionCount, q.TimePerQuestionSeconds)
	}
	return tw.Flush()
}
