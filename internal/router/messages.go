package router

import (
	"fmt"
	"strings"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
)

const sortHelp = `Sort criteria:
- top: the best scored posts over a period
- new: the most recent posts
- hot: recent posts that are popular right now
- best: the most relevant posts
- rising: recent posts gaining traction quickly`

func notFoundText(name string, snapshot models.SubredditSnapshot) string {
	text := fmt.Sprintf("r/%s does not exist or is not accessible.", name)
	if snapshot.Error != "" {
		text += " (" + snapshot.Error + ")"
	}
	return text + " Please check the name and try another subreddit."
}

func askParams(s *session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "r/%s is available. Before I start, tell me:\n", s.params.Subreddit)
	if !s.given.posts {
		fmt.Fprintf(&b, "- how many posts to analyse (default %d, at most %d)\n", consts.DefaultNumPosts, consts.MaxPosts)
	}
	if !s.given.comments {
		fmt.Fprintf(&b, "- how many comments per post (default %d, at most %d)\n", consts.DefaultCommentsLimit, consts.MaxComments)
	}
	if !s.given.sort {
		fmt.Fprintf(&b, "- the sort criteria (default %s)\n", consts.DefaultSort)
	}
	if !s.given.time && (!s.given.sort || s.params.SortCriteria == consts.Sort_Top) {
		fmt.Fprintf(&b, "- the period for top posts: hour, day, week, month, year or all (default %s)\n", consts.DefaultTimeFilter)
	}
	b.WriteString("\n")
	if !s.given.sort {
		b.WriteString(sortHelp)
		b.WriteString("\n\n")
	}
	b.WriteString(`Reply with your choices, or say "defaults" to start right away with the default values.`)
	return b.String()
}

func stageLabel(stage string) string {
	switch stage {
	case consts.ScrapeStage:
		return "scraping"
	case consts.PainAnalysisStage:
		return "pain analysis"
	case consts.RecommendStage:
		return "recommendation"
	case consts.ReportStage:
		return "report generation"
	case "":
		return "the workflow"
	default:
		return stage
	}
}
