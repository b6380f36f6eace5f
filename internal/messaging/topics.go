package messaging

// Topic constants for the round collection and analysis pipeline
const (
	// Round collection flow
	TopicRounds     = "games.rounds"      // feed gateway → collectord
	TopicRoundsDead = "games.rounds.dead" // collectord → operator triage

	// Analysis flow
	TopicAnalysisRuns = "analysis.runs" // seedaudit → downstream consumers
)
