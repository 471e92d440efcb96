package cli

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

func validateSubreddit(val interface{}) error {
	name := dataflows.NormalizeSubreddit(fmt.Sprint(val))
	if name == "" {
		return errors.New("subreddit name cannot be empty")
	}
	if !dataflows.ValidSubredditName(name) {
		return errors.New("use 2-21 letters, digits or underscores")
	}
	return nil
}

func rangeValidator(max int) survey.Validator {
	return func(val interface{}) error {
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(val)))
		if err != nil {
			return errors.New("enter a whole number")
		}
		if n < 1 || n > max {
			return fmt.Errorf("enter a number between 1 and %d", max)
		}
		return nil
	}
}

// PromptForSubreddit asks for the community to analyze
func PromptForSubreddit() (string, error) {
	var name string
	prompt := &survey.Input{
		Message: "Which subreddit should be analyzed (e.g. startups, r/smallbusiness)?",
		Help:    "The r/ prefix is optional",
	}
	if err := survey.AskOne(prompt, &name, survey.WithValidator(validateSubreddit)); err != nil {
		return "", err
	}
	return dataflows.NormalizeSubreddit(name), nil
}

func promptNumber(message, help string, def, max int) (int, error) {
	var raw string
	prompt := &survey.Input{
		Message: message,
		Help:    help,
		Default: strconv.Itoa(def),
	}
	if err := survey.AskOne(prompt, &raw, survey.WithValidator(rangeValidator(max))); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(raw))
}

// PromptForParams completes params interactively. Values already set are
// offered as defaults.
func PromptForParams(p models.AnalysisParams) (models.AnalysisParams, error) {
	var err error
	if p.Subreddit == "" {
		if p.Subreddit, err = PromptForSubreddit(); err != nil {
			return p, err
		}
	}
	if p.NumPosts, err = promptNumber("How many posts?", "Posts fetched from the listing", withDefault(p.NumPosts, consts.DefaultNumPosts), consts.MaxPosts); err != nil {
		return p, err
	}
	if p.CommentsLimit, err = promptNumber("How many comments per post?", "Top-level comments read per post", withDefault(p.CommentsLimit, consts.DefaultCommentsLimit), consts.MaxComments); err != nil {
		return p, err
	}

	sort := p.SortCriteria
	if !slices.Contains(consts.SortCriteria, sort) {
		sort = consts.DefaultSort
	}
	if err := survey.AskOne(&survey.Select{
		Message: "Sort posts by:",
		Options: consts.SortCriteria,
		Default: sort,
	}, &p.SortCriteria); err != nil {
		return p, err
	}

	p.TimeFilter = ""
	if p.SortCriteria == consts.Sort_Top {
		p.TimeFilter = consts.DefaultTimeFilter
		if err := survey.AskOne(&survey.Select{
			Message: "Time window:",
			Options: consts.TimeFilters,
			Default: consts.DefaultTimeFilter,
		}, &p.TimeFilter); err != nil {
			return p, err
		}
	}
	return p, nil
}

// PromptForConfirmation asks for a yes/no answer
func PromptForConfirmation(message string, def bool) (bool, error) {
	var confirmed bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &confirmed)
	return confirmed, err
}

// PromptForMessage reads one chat line
func PromptForMessage() (string, error) {
	var msg string
	err := survey.AskOne(&survey.Input{Message: "You:"}, &msg)
	return strings.TrimSpace(msg), err
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
