package consts

// RouterState is the position of a session in the conversation state machine.
type RouterState string

const (
	State_Idle             RouterState = "idle"
	State_CollectingParams RouterState = "collecting_params"
	State_Confirmed        RouterState = "confirmed"
	State_AwaitingWorkflow RouterState = "awaiting_workflow"
	State_Presenting       RouterState = "presenting"
)

// Sort criteria accepted by the Reddit listing endpoints.
const (
	Sort_Top    = "top"
	Sort_New    = "new"
	Sort_Hot    = "hot"
	Sort_Best   = "best"
	Sort_Rising = "rising"
)

// Time windows, only meaningful with Sort_Top.
const (
	Time_Hour  = "hour"
	Time_Day   = "day"
	Time_Week  = "week"
	Time_Month = "month"
	Time_Year  = "year"
	Time_All   = "all"
)

// 默认分析参数
const (
	DefaultNumPosts      = 5
	DefaultCommentsLimit = 5
	DefaultSort          = Sort_Top
	DefaultTimeFilter    = Time_Month

	MaxPosts    = 50
	MaxComments = 50

	// Comments scoring above this are persisted as exceptional solutions.
	ExceptionalScoreThreshold = 10
)

var SortCriteria = []string{Sort_Top, Sort_New, Sort_Hot, Sort_Best, Sort_Rising}

var TimeFilters = []string{Time_Hour, Time_Day, Time_Week, Time_Month, Time_Year, Time_All}
