package tools

import (
	"github.com/cloudwego/eino/components/tool"

	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

// AssistantTools is the tool set of the conversational assistant.
func AssistantTools(source dataflows.RedditSource, store storage.SolutionStore) []tool.BaseTool {
	return []tool.BaseTool{
		NewCheckSubredditTool(source),
		NewStoredSolutionsTool(store),
		NewPainScoreTool(),
	}
}
