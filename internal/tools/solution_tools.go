package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

type StoredSolutionsInput struct {
	Subreddit string `json:"subreddit"`
	Limit     int    `json:"limit"`
}

// StoredSolutionsOutput mirrors the /stored_solutions envelope; store errors
// are reported in it instead of failing the agent step.
type StoredSolutionsOutput struct {
	Success   bool                         `json:"success"`
	Solutions []models.ExceptionalSolution `json:"solutions"`
	Count     int                          `json:"count"`
	Error     string                       `json:"error,omitempty"`
}

func NewStoredSolutionsTool(store storage.SolutionStore) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.Tool_StoredSolutions,
			Desc: "List exceptional solutions found in earlier analyses, best scored first.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"subreddit": {
					Type:     "string",
					Desc:     "Only return solutions from this subreddit (without r/ prefix). Empty for all.",
					Required: false,
				},
				"limit": {
					Type:     "integer",
					Desc:     "Number of solutions to return (1-100, default: 10)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input StoredSolutionsInput) (*StoredSolutionsOutput, error) {
			subreddit := dataflows.NormalizeSubreddit(input.Subreddit)
			solutions, err := store.QuerySolutions(ctx, subreddit, input.Limit)
			if err != nil {
				log.WithError(err).Warn("get_stored_solutions failed")
				return &StoredSolutionsOutput{Success: false, Solutions: []models.ExceptionalSolution{}, Error: err.Error()}, nil
			}
			return &StoredSolutionsOutput{Success: true, Solutions: solutions, Count: len(solutions)}, nil
		},
	)
}
