package intent

import "fmt"

var closePhrases = []string{
	"close the ticket",
	"close this ticket",
	"please close the ticket",
	"please close this ticket",
	"you can close the ticket",
	"you can close this ticket",
	"we can close the ticket",
	"we can close this ticket",
	"i'm done here",
	"im done here",
	"i'm done with this",
	"im done with this",
	"that's all i needed",
	"thats all i needed",
	"that's all for now",
	"thats all for now",
	"thanks, close this",
	"thank you, close this",
	"thanks close this",
	"thank you close this",
}

var stopPhrases = []string{
	"stop talking",
	"can you stop responding",
	"stop responding",
	"please stop",
	"you can stop",
	"shut up",
}

var resumePhrases = []string{
	"you can reply now",
	"ai reply",
	"continue",
	"keep going",
	"@bot",
}

var humanRequestPhrases = []string{
	"i want support from staff",
	"i don't want ai",
	"can i get a real person",
	"i would like support",
	"human support",
	"real person",
	"staff help",
	"actual staff",
}

var disrespectPhrases = []string{
	"stupid",
	"dumb",
	"useless",
	"trash",
	"garbage",
	"idiot",
	"fuck",
	"shit",
	"ass",
	"bitch",
}

func defaultTopics(r Redirects) []Topic {
	return []Topic{
		{
			Name:     "game_questions",
			Keywords: []string{"how to play", "game help", "what is", "how does", "game question"},
			Redirect: fmt.Sprintf("Please ask game questions in <#%s> or <#%s>.", r.FAQChannelID, r.InfoChannelID),
		},
		{
			Name:     "suggestions",
			Keywords: []string{"suggest", "suggestion", "feature request", "add this"},
			Redirect: fmt.Sprintf("Please submit suggestions in <#%s>.", r.SuggestionsChannelID),
		},
		{
			Name:     "role_requests",
			Keywords: []string{"give me", "can i have", "role request", "staff role", "tester role", "helper role", "moderator"},
			Redirect: "Role requests cannot be processed through tickets. Please contact server administrators directly.",
		},
	}
}
