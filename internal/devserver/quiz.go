package devserver

// Built-in quiz used when the dev server starts a game. Content is arbitrary;
// the point is exercising every phase push the protocol defines.

type Question struct {
	Text         string
	Options      []string
	Correct      int
	TimeLimitSec int
	Explanation  string
}

type Section struct {
	Title     string
	Questions []Question
}

type Quiz struct {
	Title       string
	Description string
	Sections    []Section
}

func DefaultQuiz() Quiz {
	return Quiz{
		Title:       "Beanbag Warm-up",
		Description: "A short quiz to make sure everything works",
		Sections: []Section{
			{
				Title: "General Knowledge",
				Questions: []Question{
					{
						Text:         "Which planet is known as the Red Planet?",
						Options:      []string{"Venus", "Mars", "Jupiter", "Mercury"},
						Correct:      1,
						TimeLimitSec: 20,
						Explanation:  "Iron oxide on the surface gives Mars its colour.",
					},
					{
						Text:         "How many continents are there?",
						Options:      []string{"Five", "Six", "Seven", "Eight"},
						Correct:      2,
						TimeLimitSec: 15,
						Explanation:  "Seven, by the most common convention.",
					},
				},
			},
			{
				Title: "Numbers",
				Questions: []Question{
					{
						Text:         "What is 9 x 7?",
						Options:      []string{"56", "63", "72", "81"},
						Correct:      1,
						TimeLimitSec: 10,
						Explanation:  "9 x 7 = 63.",
					},
				},
			},
		},
	}
}
