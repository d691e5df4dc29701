package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/answer-detector/services/resolver"
)

// classifyOutput is one line of classify output
type classifyOutput struct {
	Model      string  `json:"model,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Result     string  `json:"result,omitempty"`
	Question   string  `json:"question"`
	TimeTaken  int64   `json:"timeTaken,omitempty"`
	Attempts   int     `json:"attempts,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func newClassifyCmd(flags *rootFlags) *cobra.Command {
	var partial bool

	cmd := &cobra.Command{
		Use:   "classify [question...]",
		Short: "Classify questions and print the results as JSON",
		Long: `Classify resolves each question against the classifier chain and prints
the results as a JSON array. Without arguments the default questions are
used. The command fails if any question cannot be classified, unless
--partial is set, in which case failures are reported per question.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(ctx) }()

			questions := args
			if len(questions) == 0 {
				questions = deps.Config.Questions
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")

			if partial {
				items := deps.Resolver.ResolveBatchPartial(ctx, questions)
				output := make([]classifyOutput, len(items))
				failed := 0
				for i, item := range items {
					if item.Err != nil {
						failed++
						output[i] = classifyOutput{Question: item.Question, Error: item.Err.Error()}
						continue
					}
					output[i] = toClassifyOutput(item.Outcome)
				}
				if err := encoder.Encode(output); err != nil {
					return err
				}
				if failed == len(items) && failed > 0 {
					return fmt.Errorf("%d of %d questions failed", failed, len(items))
				}
				return nil
			}

			outcomes, err := deps.Resolver.ResolveBatch(ctx, questions)
			if err != nil {
				var detail string
				if resErr := asResolutionError(err); resErr != nil {
					detail = resErr.Detail()
				} else {
					detail = err.Error()
				}
				return fmt.Errorf("classification failed: %s", detail)
			}

			output := make([]classifyOutput, len(outcomes))
			for i, outcome := range outcomes {
				output[i] = toClassifyOutput(outcome)
			}
			return encoder.Encode(output)
		},
	}

	cmd.Flags().BoolVar(&partial, "partial", false, "report failures per question instead of failing the run")
	return cmd
}

func toClassifyOutput(outcome *resolver.Outcome) classifyOutput {
	return classifyOutput{
		Model:      outcome.Model,
		Confidence: outcome.Confidence,
		Result:     string(outcome.Result),
		Question:   outcome.Question,
		TimeTaken:  outcome.TimeTakenMs(),
		Attempts:   outcome.Attempts,
	}
}

func asResolutionError(err error) *resolver.ResolutionError {
	var resErr *resolver.ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}
	return nil
}
