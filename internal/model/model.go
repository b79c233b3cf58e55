package model

// All lists every table owned by the service, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Document{},
		&Chunk{},
		&Embedding{},
		&ChatSession{},
		&ChatMessage{},
		&QuizBlueprint{},
		&QuizItem{},
		&QuizAttempt{},
		&TopicMastery{},
	}
}
