package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	return NewClassifier(Redirects{FAQChannelID: "111", InfoChannelID: "222", SuggestionsChannelID: "333"})
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := newTestClassifier()

	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"close", "Thanks, that's all I needed", CloseRequest},
		{"close beats stop", "please stop, you can close this ticket", CloseRequest},
		{"stop", "Please stop responding", Stop},
		{"stop beats resume", "shut up and keep going", Stop},
		{"resume", "you can reply now", Resume},
		{"resume beats human", "keep going, real person later", Resume},
		{"human", "Can I get a real person please", HumanRequest},
		{"human beats topic", "I want support from staff, can i have help", HumanRequest},
		{"topic", "I have a suggestion for the map", DisallowedTopic},
		{"topic beats disrespect", "what is this garbage", DisallowedTopic},
		{"disrespect", "stupid bot", DisrespectWarning},
		{"plain", "My payment didn't go through", None},
		{"casual thanks is not close", "ok thanks", None},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text, 0, 1).Intent)
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := newTestClassifier()
	assert.Equal(t, Stop, c.Classify("SHUT UP", 0, 1).Intent)
	assert.Equal(t, CloseRequest, c.Classify("Close The Ticket", 0, 1).Intent)
}

func TestClassifyDisrespectEscalatesAtMax(t *testing.T) {
	c := newTestClassifier()

	assert.Equal(t, DisrespectWarning, c.Classify("you are useless", 0, 1).Intent)
	assert.Equal(t, DisrespectEscalate, c.Classify("you are useless", 1, 1).Intent)
	assert.Equal(t, DisrespectEscalate, c.Classify("you are useless", 3, 1).Intent)
	assert.Equal(t, DisrespectWarning, c.Classify("you are useless", 1, 2).Intent)
}

func TestClassifyDisallowedTopicRedirects(t *testing.T) {
	c := newTestClassifier()

	game := c.Classify("how to play ranked?", 0, 1)
	require.Equal(t, DisallowedTopic, game.Intent)
	assert.Equal(t, "game_questions", game.Topic)
	assert.Contains(t, game.Redirect, "<#111>")
	assert.Contains(t, game.Redirect, "<#222>")

	suggestion := c.Classify("feature request: dark mode", 0, 1)
	require.Equal(t, DisallowedTopic, suggestion.Intent)
	assert.Contains(t, suggestion.Redirect, "<#333>")

	role := c.Classify("give me the tester role", 0, 1)
	require.Equal(t, DisallowedTopic, role.Intent)
	assert.Equal(t, "role_requests", role.Topic)
	assert.Equal(t, "Role requests cannot be processed through tickets. Please contact server administrators directly.", role.Redirect)
}

func TestIsResume(t *testing.T) {
	c := newTestClassifier()
	assert.True(t, c.IsResume("OK you can reply now"))
	assert.True(t, c.IsResume("please continue"))
	assert.False(t, c.IsResume("hello again"))
}
