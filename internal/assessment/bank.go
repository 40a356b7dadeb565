package assessment

import "github.com/jonathan/candidate-intake/internal/types"

// behavioralBank is served when no generated questions are requested.
var behavioralBank = []types.Question{
	{
		Question: "A teammate keeps missing deadlines that block your work. What do you do first?",
		BasedOn:  "Teamwork",
		Options: []string{
			"Talk to them privately to understand what is going on",
			"Raise it with the manager straight away",
			"Quietly pick up the slack yourself",
			"Re-plan your own work around the delays",
		},
	},
	{
		Question: "You are offered a role at another company for slightly more pay. How do you respond?",
		BasedOn:  "Loyalty",
		Options: []string{
			"Stay, growth here matters more than a small raise",
			"Discuss the offer openly with your manager",
			"Take it, compensation is the deciding factor",
			"Consider it only if the new role teaches you more",
		},
	},
	{
		Question: "A project you own is about to miss its launch date. What is your move?",
		BasedOn:  "Ownership",
		Options: []string{
			"Cut scope to ship the core on time",
			"Tell stakeholders early and propose a new date",
			"Work extra hours to hit the original date",
			"Ask for more people on the project",
		},
	},
	{
		Question: "A customer is upset about a decision you believe was correct. How do you handle it?",
		BasedOn:  "Emotional intelligence",
		Options: []string{
			"Listen first, then explain the reasoning",
			"Escalate to someone more senior",
			"Offer a concession to keep them happy",
			"Restate the policy and move on",
		},
	},
	{
		Question: "Your team hits its quarterly goal early. What do you do with the remaining time?",
		BasedOn:  "Results focus",
		Options: []string{
			"Set a stretch goal and keep pushing",
			"Pay down technical debt",
			"Help another team reach their goal",
			"Take a breather to avoid burnout",
		},
	},
}

// DefaultBehavioralQuestions returns a copy of the built-in question bank.
func DefaultBehavioralQuestions() *types.QuestionSet {
	questions := make([]types.Question, len(behavioralBank))
	for i, q := range behavioralBank {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	return &types.QuestionSet{Questions: questions}
}
