package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

type CheckSubredditInput struct {
	SubredditName string `json:"subreddit_name"`
}

// NewCheckSubredditTool lets the assistant verify a community before it
// suggests analysing it.
func NewCheckSubredditTool(source dataflows.RedditSource) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.Tool_CheckSubreddit,
			Desc: "Check whether a subreddit exists and is publicly accessible. Returns its title, subscriber count and description.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"subreddit_name": {
					Type:     "string",
					Desc:     "The subreddit name, with or without the r/ prefix",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input CheckSubredditInput) (models.SubredditSnapshot, error) {
			snapshot := source.CheckExists(ctx, input.SubredditName)
			log.WithFields(log.Fields{
				"subreddit": snapshot.Name,
				"exists":    snapshot.Exists,
			}).Debug("check_subreddit_exists")
			return snapshot, nil
		},
	)
}
