package consts

const (
	// 工作流阶段节点
	ScrapeStage       = "scrape"
	PainAnalysisStage = "pain_analysis"
	RecommendStage    = "recommendation"
	ReportStage       = "report_generation"

	WorkflowGraph  = "subreddit_analysis"
	AssistantGraph = "router_assistant"
)

const (
	Agent_Router      = "Router"
	Agent_Scraper     = "Scraper"
	Agent_PainAnalyst = "Pain Analyst"
	Agent_Recommender = "Recommender"
	Agent_Reporter    = "Report Writer"
)

// Tool names exposed to the conversational assistant.
const (
	Tool_CheckSubreddit  = "check_subreddit_exists"
	Tool_StoredSolutions = "get_stored_solutions"
	Tool_PainScore       = "calculate_pain_score"
)
