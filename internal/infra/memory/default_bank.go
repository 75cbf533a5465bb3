package memory

import "trivia-room-service/internal/domain"

// DefaultBankID names the built-in question bank.
const DefaultBankID = "default"

// DefaultQuestions returns a fresh copy of the built-in general knowledge bank.
func DefaultQuestions() []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{Text: "What is the capital of France?", Options: [4]string{"London", "Berlin", "Paris", "Madrid"}, CorrectOption: 2},
		{Text: "Which planet is known as the Red Planet?", Options: [4]string{"Mars", "Venus", "Jupiter", "Saturn"}, CorrectOption: 0},
		{Text: "Who painted the Mona Lisa?", Options: [4]string{"Van Gogh", "Da Vinci", "Picasso", "Rembrandt"}, CorrectOption: 1},
		{Text: "What is the largest ocean on Earth?", Options: [4]string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectOption: 3},
		{Text: "In which year did World War II end?", Options: [4]string{"1943", "1944", "1945", "1946"}, CorrectOption: 2},
		{Text: "What is the chemical symbol for gold?", Options: [4]string{"Go", "Gd", "Au", "Ag"}, CorrectOption: 2},
		{Text: "Which country is home to the kangaroo?", Options: [4]string{"New Zealand", "South Africa", "Australia", "Brazil"}, CorrectOption: 2},
		{Text: "What is the largest planet in our solar system?", Options: [4]string{"Earth", "Mars", "Jupiter", "Saturn"}, CorrectOption: 2},
		{Text: "Who wrote 'Romeo and Juliet'?", Options: [4]string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectOption: 1},
		{Text: "What is the main ingredient in guacamole?", Options: [4]string{"Tomato", "Avocado", "Onion", "Lemon"}, CorrectOption: 1},
	}
}

// DefaultQuestionLoader serves the built-in bank under DefaultBankID.
func DefaultQuestionLoader() *StaticQuestionLoader {
	return NewStaticQuestionLoader(map[string][]domain.QuestionRecord{
		DefaultBankID: DefaultQuestions(),
	})
}
