package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/processing"
	"github.com/dyike/PainRadar/models"
)

type PainScoreInput struct {
	Frequency    int     `json:"frequency"`
	AvgUpvotes   float64 `json:"avg_upvotes"`
	AvgComments  float64 `json:"avg_comments"`
	AvgIntensity float64 `json:"avg_intensity"`
}

func NewPainScoreTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.Tool_PainScore,
			Desc: "Compute the pain score of a recurring problem: 0.4*frequency + 0.2*avg_upvotes + 0.1*avg_comments + 0.3*avg_intensity, rounded to two decimals.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"frequency": {
					Type:     "integer",
					Desc:     "How many posts or comments mention the problem",
					Required: true,
				},
				"avg_upvotes": {
					Type:     "number",
					Desc:     "Average upvote score of those posts and comments",
					Required: true,
				},
				"avg_comments": {
					Type:     "number",
					Desc:     "Average number of comments of the posts concerned",
					Required: true,
				},
				"avg_intensity": {
					Type:     "number",
					Desc:     "Average emotional intensity from 1 to 10",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input PainScoreInput) (models.PainScore, error) {
			return processing.Score(input.Frequency, input.AvgUpvotes, input.AvgComments, input.AvgIntensity)
		},
	)
}
